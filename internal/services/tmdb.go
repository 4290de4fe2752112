// The Movie Database implementation of [Catalog]
//
// Response types based on https://developer.themoviedb.org/reference
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

const (
	tmdbBaseURL  = "https://api.themoviedb.org/3"
	tmdbImageURL = "https://image.tmdb.org/t/p/w500"
	tmdbWebURL   = "https://www.themoviedb.org"
)

type tmdbGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TMDBMovie represents a movie in list and detail responses.
type TMDBMovie struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	PosterPath  string      `json:"poster_path"`
	VoteAverage float64     `json:"vote_average"`
	ReleaseDate string      `json:"release_date"`
	Overview    string      `json:"overview"`
	Genres      []tmdbGenre `json:"genres"` // details only
}

// TMDBSeason represents one season of a TV show.
type TMDBSeason struct {
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	Name         string `json:"name"`
}

// TMDBShow represents a TV show in list and detail responses.
type TMDBShow struct {
	ID              int          `json:"id"`
	Name            string       `json:"name"`
	PosterPath      string       `json:"poster_path"`
	VoteAverage     float64      `json:"vote_average"`
	FirstAirDate    string       `json:"first_air_date"`
	Overview        string       `json:"overview"`
	Genres          []tmdbGenre  `json:"genres"`
	NumberOfSeasons int          `json:"number_of_seasons"`
	Seasons         []TMDBSeason `json:"seasons"`
}

// TMDBPage is a paginated list response.
type TMDBPage[T any] struct {
	Page         int `json:"page"`
	Results      []T `json:"results"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
}

// TMDBService implements [Catalog] for movies or TV shows.
type TMDBService struct {
	client *client
	kind   models.ContentType
}

// NewTMDBService creates a TMDB catalog serving movies or shows.
func NewTMDBService(apiKey string, kind models.ContentType, opts Options) (*TMDBService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: tmdb api_key", shared.ErrMissingCredentials)
	}
	if kind != models.ContentMovie && kind != models.ContentShow {
		return nil, fmt.Errorf("%w: tmdb does not serve %q", shared.ErrInvalidContentType, kind)
	}

	c := newClient("TMDB", tmdbBaseURL, opts)
	c.query.Set("api_key", apiKey)
	c.query.Set("language", "en-US")
	return &TMDBService{client: c, kind: kind}, nil
}

func (s *TMDBService) Name() string                    { return "TMDB" }
func (s *TMDBService) ContentType() models.ContentType { return s.kind }

// segment is the TMDB path segment for the configured kind.
func (s *TMDBService) segment() string {
	if s.kind == models.ContentShow {
		return "tv"
	}
	return "movie"
}

// Popular retrieves /movie/popular or /tv/popular.
func (s *TMDBService) Popular(ctx context.Context, page int) (*models.Page, error) {
	query := url.Values{"page": {strconv.Itoa(normalizePage(page))}}
	return s.list(ctx, "/"+s.segment()+"/popular", query)
}

// Search retrieves /search/movie or /search/tv.
func (s *TMDBService) Search(ctx context.Context, q string, page int) (*models.Page, error) {
	query := url.Values{
		"query":         {q},
		"page":          {strconv.Itoa(normalizePage(page))},
		"include_adult": {"false"},
	}
	return s.list(ctx, "/search/"+s.segment(), query)
}

// Details retrieves /movie/{id} or /tv/{id}; shows include their season list.
func (s *TMDBService) Details(ctx context.Context, id string) (models.Content, error) {
	if _, err := strconv.Atoi(id); err != nil {
		return nil, fmt.Errorf("%w: tmdb id %q", shared.ErrInvalidArgument, id)
	}
	endpoint := "/" + s.segment() + "/" + id

	if s.kind == models.ContentShow {
		var show TMDBShow
		if err := s.client.get(ctx, endpoint, nil, &show); err != nil {
			return nil, err
		}
		return tmdbShowToContent(show), nil
	}

	var movie TMDBMovie
	if err := s.client.get(ctx, endpoint, nil, &movie); err != nil {
		return nil, err
	}
	return tmdbMovieToContent(movie), nil
}

func (s *TMDBService) list(ctx context.Context, endpoint string, query url.Values) (*models.Page, error) {
	if s.kind == models.ContentShow {
		var resp TMDBPage[TMDBShow]
		if err := s.client.get(ctx, endpoint, query, &resp); err != nil {
			return nil, err
		}
		items := make([]models.Content, 0, len(resp.Results))
		for _, show := range resp.Results {
			items = append(items, tmdbShowToContent(show))
		}
		return tmdbPage(resp.Page, resp.TotalPages, items), nil
	}

	var resp TMDBPage[TMDBMovie]
	if err := s.client.get(ctx, endpoint, query, &resp); err != nil {
		return nil, err
	}
	items := make([]models.Content, 0, len(resp.Results))
	for _, movie := range resp.Results {
		items = append(items, tmdbMovieToContent(movie))
	}
	return tmdbPage(resp.Page, resp.TotalPages, items), nil
}

func tmdbPage(page, totalPages int, items []models.Content) *models.Page {
	return &models.Page{
		Items:      items,
		Page:       page,
		TotalPages: totalPages,
		HasMore:    len(items) > 0 && page < totalPages,
	}
}

func tmdbPoster(path string) string {
	if path == "" {
		return ""
	}
	return tmdbImageURL + path
}

func genreNames(genres []tmdbGenre) []string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return names
}

func tmdbMovieToContent(m TMDBMovie) models.Content {
	id := strconv.Itoa(m.ID)
	return models.Normalize(&models.Movie{Base: models.Base{
		ID:        id,
		Title:     m.Title,
		PosterURL: tmdbPoster(m.PosterPath),
		Rating:    m.VoteAverage,
		Year:      parseYear(m.ReleaseDate),
		Summary:   m.Overview,
		Genres:    genreNames(m.Genres),
		WebURL:    tmdbWebURL + "/movie/" + id,
	}})
}

func tmdbShowToContent(s TMDBShow) models.Content {
	id := strconv.Itoa(s.ID)
	show := &models.Show{
		Base: models.Base{
			ID:        id,
			Title:     s.Name,
			PosterURL: tmdbPoster(s.PosterPath),
			Rating:    s.VoteAverage,
			Year:      parseYear(s.FirstAirDate),
			Summary:   s.Overview,
			Genres:    genreNames(s.Genres),
			WebURL:    tmdbWebURL + "/tv/" + id,
		},
		NumberOfSeasons: s.NumberOfSeasons,
	}

	for _, se := range s.Seasons {
		// season 0 holds specials
		if se.SeasonNumber < 1 {
			continue
		}
		name := se.Name
		if name == "" {
			name = fmt.Sprintf("Season %d", se.SeasonNumber)
		}
		show.Seasons = append(show.Seasons, models.Season{
			SeasonNumber: se.SeasonNumber,
			EpisodeCount: se.EpisodeCount,
			Name:         name,
		})
	}
	return models.Normalize(show)
}
