package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

func TestWatchStatusService(t *testing.T) {
	t.Run("sends bearer token and resolves identity", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"userId": "u1"})
		}))
		defer server.Close()

		svc := NewWatchStatusService("tok", Options{BaseURL: server.URL})
		id, err := svc.Identity(context.Background())
		if err != nil || id != "u1" {
			t.Fatalf("expected u1, got %q, %v", id, err)
		}

		anon := NewWatchStatusService("", Options{BaseURL: server.URL})
		if _, err := anon.Identity(context.Background()); !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})

	t.Run("Get and Put", func(t *testing.T) {
		var body models.StatusEntry
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/users/u1/watch-status/show/1399" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			switch r.Method {
			case http.MethodGet:
				w.Write([]byte(`{"status":"currently_watching","lastSeason":2,"lastEpisode":4}`))
			case http.MethodPut:
				json.NewDecoder(r.Body).Decode(&body)
				w.Write([]byte(`{"success":true}`))
			}
		}))
		defer server.Close()

		svc := NewWatchStatusService("tok", Options{BaseURL: server.URL})
		entry, err := svc.Get(context.Background(), "u1", models.ContentShow, "1399")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entry.Progress() != (models.WatchProgress{Season: 2, Episode: 4}) {
			t.Errorf("unexpected progress %+v", entry.Progress())
		}

		progress := models.WatchProgress{Season: 3, Episode: 1}
		if err := svc.Put(context.Background(), "u1", models.ContentShow, "1399", models.NewStatusEntry(models.StatusCurrentlyWatching, &progress)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if body.Status != models.StatusCurrentlyWatching || *body.LastSeason != 3 {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("Put is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		svc := NewWatchStatusService("tok", Options{BaseURL: server.URL})
		err := svc.Put(context.Background(), "u1", models.ContentMovie, "603", models.StatusEntry{Status: models.StatusWatched})
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected upstream error, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected one call, got %d", calls.Load())
		}
	})

	t.Run("Batch", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.URL.Path != "/users/u1/watch-status/batch" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if ids := r.URL.Query()["contentIds"]; len(ids) != 2 {
				t.Errorf("expected repeated contentIds, got %v", ids)
			}
			w.Write([]byte(`{"603":"watched"}`))
		}))
		defer server.Close()

		svc := NewWatchStatusService("tok", Options{BaseURL: server.URL})

		empty, err := svc.Batch(context.Background(), "u1", models.ContentMovie, nil)
		if err != nil || len(empty) != 0 || empty == nil {
			t.Fatalf("expected empty non-nil map, got %v, %v", empty, err)
		}
		if calls.Load() != 0 {
			t.Fatal("empty batch should not issue a request")
		}

		statuses, err := svc.Batch(context.Background(), "u1", models.ContentMovie, []string{"603", "604"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if statuses["603"] != models.StatusWatched || statuses["604"] != models.StatusNone {
			t.Errorf("unexpected statuses %v", statuses)
		}
	})

	t.Run("All and ByStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/users/u1/watch-status/all":
				w.Write([]byte(`{"movies":{"watched":[{"type":"movie","id":"603","title":"The Matrix","posterUrl":"/p.jpg","rating":8}]}}`))
			case "/users/u1/watch-status/movie":
				if r.URL.Query().Get("status") != "watched" {
					t.Errorf("expected status query")
				}
				w.Write([]byte(`{"movies":[{"type":"movie","id":"603","title":"The Matrix","posterUrl":"/p.jpg","rating":8}]}`))
			}
		}))
		defer server.Close()

		svc := NewWatchStatusService("tok", Options{BaseURL: server.URL})
		agg, err := svc.All(context.Background(), "u1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(agg.Items(models.ContentMovie, models.StatusWatched)) != 1 {
			t.Errorf("expected one watched movie, got %v", agg)
		}
		if agg.Items(models.ContentAnime, models.StatusRewatch) == nil {
			t.Error("expected prefilled empty lists")
		}

		items, err := svc.ByStatus(context.Background(), "u1", models.ContentMovie, models.StatusWatched)
		if err != nil || len(items) != 1 || items[0].Info().Title != "The Matrix" {
			t.Errorf("unexpected items %v, %v", items, err)
		}
	})
}
