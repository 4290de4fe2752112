// MyAnimeList implementation of [Catalog]
//
// Response types based on https://myanimelist.net/apiconfig/references/api/v2
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
	malBaseURL  = "https://api.myanimelist.net/v2"
	malWebURL   = "https://myanimelist.net/anime/"
	malPageSize = 24
	malFields   = "id,title,main_picture,mean,start_date,synopsis,genres,num_episodes,studios"
)

type malPicture struct {
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type malNamed struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MALAnime is the anime node returned by list and detail endpoints.
type MALAnime struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	MainPicture *malPicture `json:"main_picture"`
	Mean        float64     `json:"mean"`
	StartDate   string      `json:"start_date"`
	Synopsis    string      `json:"synopsis"`
	Genres      []malNamed  `json:"genres"`
	NumEpisodes int         `json:"num_episodes"` // 0 while airing or unknown
	Studios     []malNamed  `json:"studios"`
}

// MALList is the paginated envelope used by ranking and search.
type MALList struct {
	Data []struct {
		Node MALAnime `json:"node"`
	} `json:"data"`
	Paging struct {
		Previous string `json:"previous"`
		Next     string `json:"next"`
	} `json:"paging"`
}

// MALService implements [Catalog] for anime.
type MALService struct {
	client *client
}

// NewMALService creates an anime catalog authenticated with a MyAnimeList client id.
func NewMALService(clientID string, opts Options) (*MALService, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: mal client_id", shared.ErrMissingCredentials)
	}

	c := newClient("MyAnimeList", malBaseURL, opts)
	c.header.Set("X-MAL-CLIENT-ID", clientID)
	return &MALService{client: c}, nil
}

func (s *MALService) Name() string                    { return "MyAnimeList" }
func (s *MALService) ContentType() models.ContentType { return models.ContentAnime }

// Popular retrieves the all-time ranking.
func (s *MALService) Popular(ctx context.Context, page int) (*models.Page, error) {
	query := malPageQuery(page)
	query.Set("ranking_type", "all")
	return s.list(ctx, "/anime/ranking", query, page)
}

// Search retrieves /anime?q=.
func (s *MALService) Search(ctx context.Context, q string, page int) (*models.Page, error) {
	query := malPageQuery(page)
	query.Set("q", q)
	return s.list(ctx, "/anime", query, page)
}

// Details retrieves /anime/{id}.
func (s *MALService) Details(ctx context.Context, id string) (models.Content, error) {
	if _, err := strconv.Atoi(id); err != nil {
		return nil, fmt.Errorf("%w: mal id %q", shared.ErrInvalidArgument, id)
	}

	var anime MALAnime
	query := url.Values{"fields": {malFields}}
	if err := s.client.get(ctx, "/anime/"+id, query, &anime); err != nil {
		return nil, err
	}
	return malToContent(anime), nil
}

func (s *MALService) list(ctx context.Context, endpoint string, query url.Values, page int) (*models.Page, error) {
	var resp MALList
	if err := s.client.get(ctx, endpoint, query, &resp); err != nil {
		return nil, err
	}

	items := make([]models.Content, 0, len(resp.Data))
	for _, d := range resp.Data {
		items = append(items, malToContent(d.Node))
	}

	return &models.Page{
		Items:   items,
		Page:    normalizePage(page),
		HasMore: len(items) > 0 && resp.Paging.Next != "",
	}, nil
}

func malPageQuery(page int) url.Values {
	return url.Values{
		"limit":  {strconv.Itoa(malPageSize)},
		"offset": {strconv.Itoa((normalizePage(page) - 1) * malPageSize)},
		"fields": {malFields},
	}
}

func malToContent(a MALAnime) models.Content {
	id := strconv.Itoa(a.ID)
	anime := &models.Anime{Base: models.Base{
		ID:      id,
		Title:   a.Title,
		Rating:  a.Mean,
		Year:    parseYear(a.StartDate),
		Summary: a.Synopsis,
		WebURL:  malWebURL + id,
	}}

	if a.MainPicture != nil {
		anime.PosterURL = a.MainPicture.Medium
	}
	for _, g := range a.Genres {
		anime.Genres = append(anime.Genres, g.Name)
	}
	for _, st := range a.Studios {
		anime.Studios = append(anime.Studios, st.Name)
	}
	if a.NumEpisodes > 0 {
		episodes := a.NumEpisodes
		anime.Episodes = &episodes
	}
	return models.Normalize(anime)
}
