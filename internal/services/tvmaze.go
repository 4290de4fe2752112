// TVmaze implementation of [Catalog]
//
// Response types based on https://www.tvmaze.com/api
package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

const tvmazeBaseURL = "https://api.tvmaze.com"

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// TVMazeShow represents a show resource.
type TVMazeShow struct {
	ID        int      `json:"id"`
	URL       string   `json:"url"`
	Name      string   `json:"name"`
	Genres    []string `json:"genres"`
	Status    string   `json:"status"`
	Premiered string   `json:"premiered"`
	Summary   string   `json:"summary"`
	Rating    struct {
		Average *float64 `json:"average"`
	} `json:"rating"`
	Image *struct {
		Medium   string `json:"medium"`
		Original string `json:"original"`
	} `json:"image"`
}

// TVMazeSeason represents an entry of /shows/{id}/seasons.
type TVMazeSeason struct {
	ID           int    `json:"id"`
	Number       int    `json:"number"`
	Name         string `json:"name"`
	EpisodeOrder *int   `json:"episodeOrder"`
}

// TVMazeService implements [Catalog] for shows. TVmaze needs no credentials.
type TVMazeService struct {
	client *client
}

// NewTVMazeService creates a TVmaze show catalog.
func NewTVMazeService(opts Options) *TVMazeService {
	return &TVMazeService{client: newClient("TVmaze", tvmazeBaseURL, opts)}
}

func (s *TVMazeService) Name() string                    { return "TVmaze" }
func (s *TVMazeService) ContentType() models.ContentType { return models.ContentShow }

// Popular pages through the show index. TVmaze pages are 0-indexed and answer 404 past the end.
func (s *TVMazeService) Popular(ctx context.Context, page int) (*models.Page, error) {
	page = normalizePage(page)
	query := url.Values{"page": {strconv.Itoa(page - 1)}}

	var shows []TVMazeShow
	if err := s.client.get(ctx, "/shows", query, &shows); err != nil {
		var upstream *shared.UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
			return &models.Page{Items: []models.Content{}, Page: page}, nil
		}
		return nil, err
	}

	items := make([]models.Content, 0, len(shows))
	for _, show := range shows {
		items = append(items, tvmazeToContent(show))
	}
	return &models.Page{Items: items, Page: page, HasMore: len(items) > 0}, nil
}

// Search queries /search/shows, which returns a single unpaginated batch.
func (s *TVMazeService) Search(ctx context.Context, q string, page int) (*models.Page, error) {
	page = normalizePage(page)
	if page > 1 {
		return &models.Page{Items: []models.Content{}, Page: page}, nil
	}

	var results []struct {
		Score float64    `json:"score"`
		Show  TVMazeShow `json:"show"`
	}
	if err := s.client.get(ctx, "/search/shows", url.Values{"q": {q}}, &results); err != nil {
		return nil, err
	}

	items := make([]models.Content, 0, len(results))
	for _, r := range results {
		items = append(items, tvmazeToContent(r.Show))
	}
	return &models.Page{Items: items, Page: 1, TotalPages: 1}, nil
}

// Details retrieves /shows/{id} and its season list.
func (s *TVMazeService) Details(ctx context.Context, id string) (models.Content, error) {
	if _, err := strconv.Atoi(id); err != nil {
		return nil, fmt.Errorf("%w: tvmaze id %q", shared.ErrInvalidArgument, id)
	}

	var show TVMazeShow
	if err := s.client.get(ctx, "/shows/"+id, nil, &show); err != nil {
		return nil, err
	}

	var seasons []TVMazeSeason
	if err := s.client.get(ctx, "/shows/"+id+"/seasons", nil, &seasons); err != nil {
		return nil, err
	}

	content := tvmazeToContent(show).(*models.Show)
	for _, se := range seasons {
		name := se.Name
		if name == "" {
			name = fmt.Sprintf("Season %d", se.Number)
		}
		count := 0
		if se.EpisodeOrder != nil {
			count = *se.EpisodeOrder
		}
		content.Seasons = append(content.Seasons, models.Season{SeasonNumber: se.Number, EpisodeCount: count, Name: name})
	}
	content.NumberOfSeasons = len(content.Seasons)
	return content, nil
}

func tvmazeToContent(s TVMazeShow) models.Content {
	show := &models.Show{Base: models.Base{
		ID:      strconv.Itoa(s.ID),
		Title:   s.Name,
		Year:    parseYear(s.Premiered),
		Summary: stripHTML(s.Summary),
		Genres:  s.Genres,
		WebURL:  s.URL,
	}}
	if s.Rating.Average != nil {
		show.Rating = *s.Rating.Average
	}
	if s.Image != nil {
		show.PosterURL = s.Image.Medium
	}
	return models.Normalize(show)
}

func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTag.ReplaceAllString(s, "")))
}
