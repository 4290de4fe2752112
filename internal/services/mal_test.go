package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

func TestMALService(t *testing.T) {
	t.Run("Missing Client ID", func(t *testing.T) {
		if _, err := NewMALService(" ", Options{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Popular uses ranking with offset", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/anime/ranking" {
				t.Errorf("expected path /anime/ranking, got %s", r.URL.Path)
			}
			if r.Header.Get("X-MAL-CLIENT-ID") != "client" {
				t.Errorf("expected X-MAL-CLIENT-ID header")
			}
			q := r.URL.Query()
			if q.Get("ranking_type") != "all" || q.Get("limit") != "24" || q.Get("offset") != "24" {
				t.Errorf("unexpected query %v", q)
			}

			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"node": map[string]any{
						"id": 5114, "title": "Fullmetal Alchemist: Brotherhood",
						"main_picture": map[string]any{"medium": "https://cdn.myanimelist.net/m.jpg"},
						"mean": 9.1, "start_date": "2009-04-05", "num_episodes": 64,
						"studios": []map[string]any{{"id": 4, "name": "Bones"}},
					}},
					{"node": map[string]any{"id": 1, "title": "Airing", "num_episodes": 0}},
				},
				"paging": map[string]any{"next": "https://api.myanimelist.net/v2/anime/ranking?offset=48"},
			})
		}))
		defer server.Close()

		svc, err := NewMALService("client", Options{BaseURL: server.URL})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		page, err := svc.Popular(context.Background(), 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !page.HasMore || page.TotalPages != 0 {
			t.Errorf("expected more pages without totals, got %+v", page)
		}

		fma := page.Items[0].(*models.Anime)
		if fma.Episodes == nil || *fma.Episodes != 64 || fma.Studios[0] != "Bones" {
			t.Errorf("unexpected anime %+v", fma)
		}
		if fma.WebURL != "https://myanimelist.net/anime/5114" {
			t.Errorf("unexpected web url %s", fma.WebURL)
		}

		airing := page.Items[1].(*models.Anime)
		if airing.Episodes != nil {
			t.Error("expected unknown episode count to stay nil")
		}
		if airing.PosterURL != models.PlaceholderPoster {
			t.Errorf("expected placeholder, got %s", airing.PosterURL)
		}
	})

	t.Run("Search stops without next page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/anime" || r.URL.Query().Get("q") != "bebop" {
				t.Errorf("unexpected request %s", r.URL)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data":   []map[string]any{{"node": map[string]any{"id": 1, "title": "Cowboy Bebop"}}},
				"paging": map[string]any{},
			})
		}))
		defer server.Close()

		svc, _ := NewMALService("client", Options{BaseURL: server.URL})
		page, err := svc.Search(context.Background(), "bebop", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if page.HasMore {
			t.Error("expected no more pages")
		}
	})
}
