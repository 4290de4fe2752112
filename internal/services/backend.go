package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"golang.org/x/oauth2"
)

// WatchStatusService is the client for the watch-status backend REST contract.
//
// Requests carry the configured bearer token through an [oauth2.Transport]. Reads and
// writes are attempted once: the tracker owns retry and rollback policy.
type WatchStatusService struct {
	client *client
	token  string
}

// NewWatchStatusService creates a backend client. An empty token sends unauthenticated
// requests, which the backend answers with 401 ([shared.ErrAuthRequired]).
func NewWatchStatusService(token string, opts Options) *WatchStatusService {
	if token != "" {
		var base http.RoundTripper
		if opts.HTTPClient != nil {
			base = opts.HTTPClient.Transport
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		opts.HTTPClient = &http.Client{Transport: &oauth2.Transport{Source: src, Base: base}}
	}
	return &WatchStatusService{client: newClient("watchx backend", "http://localhost:5000", opts), token: token}
}

// NewWatchStatusServiceFromConfig wires the backend section of config.
func NewWatchStatusServiceFromConfig(config *shared.Config, opts Options) *WatchStatusService {
	opts.BaseURL = config.Backend.URL
	if opts.Timeout <= 0 {
		opts.Timeout = config.Backend.Timeout.Duration
	}
	return NewWatchStatusService(config.Backend.Token, opts)
}

func (s *WatchStatusService) Name() string { return "watchx backend" }

// Identity resolves the user id behind the configured token via GET /api/auth.
func (s *WatchStatusService) Identity(ctx context.Context) (string, error) {
	var resp struct {
		UserID string `json:"userId"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/api/auth", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.UserID == "" {
		return "", shared.ErrAuthRequired
	}
	return resp.UserID, nil
}

// Get retrieves one status record. Untracked content reports [models.StatusNone].
func (s *WatchStatusService) Get(ctx context.Context, userID string, t models.ContentType, id string) (models.StatusEntry, error) {
	var entry models.StatusEntry
	if err := s.client.do(ctx, http.MethodGet, statusPath(userID, string(t), id), nil, nil, &entry); err != nil {
		return models.StatusEntry{Status: models.StatusNone}, err
	}
	if !entry.Status.Valid() {
		return models.StatusEntry{Status: models.StatusNone}, fmt.Errorf("%w: backend returned %q", shared.ErrInvalidStatus, entry.Status)
	}
	return entry, nil
}

// Put writes a status. [models.StatusNone] clears the record.
func (s *WatchStatusService) Put(ctx context.Context, userID string, t models.ContentType, id string, entry models.StatusEntry) error {
	if !entry.Status.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidStatus, entry.Status)
	}
	return s.client.do(ctx, http.MethodPut, statusPath(userID, string(t), id), nil, entry, nil)
}

// All retrieves the dashboard aggregate.
func (s *WatchStatusService) All(ctx context.Context, userID string) (models.ContentByStatus, error) {
	agg := models.NewContentByStatus()
	if err := s.client.do(ctx, http.MethodGet, statusPath(userID, "all"), nil, nil, &agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// Batch retrieves statuses for many items of one type. An empty id list returns an
// empty map without a request.
func (s *WatchStatusService) Batch(ctx context.Context, userID string, t models.ContentType, ids []string) (map[string]models.WatchStatus, error) {
	if len(ids) == 0 {
		return map[string]models.WatchStatus{}, nil
	}

	query := url.Values{"contentType": {string(t)}, "contentIds": ids}
	statuses := make(map[string]models.WatchStatus, len(ids))
	if err := s.client.do(ctx, http.MethodGet, statusPath(userID, "batch"), query, nil, &statuses); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := statuses[id]; !ok {
			statuses[id] = models.StatusNone
		}
	}
	return statuses, nil
}

// ByStatus lists hydrated content of type t filed under status. The backend answers
// {"movies": [...]} keyed by the plural type name.
func (s *WatchStatusService) ByStatus(ctx context.Context, userID string, t models.ContentType, status models.WatchStatus) ([]models.Content, error) {
	var resp map[string][]json.RawMessage
	query := url.Values{"status": {string(status)}}
	if err := s.client.do(ctx, http.MethodGet, statusPath(userID, string(t)), query, nil, &resp); err != nil {
		return nil, err
	}

	items := make([]models.Content, 0, len(resp[t.Plural()]))
	for _, raw := range resp[t.Plural()] {
		c, err := models.UnmarshalContent(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s item: %w", t, err)
		}
		items = append(items, c)
	}
	return items, nil
}

// EventsURL returns the websocket URL and headers for userID's change stream.
func (s *WatchStatusService) EventsURL(userID string) (string, http.Header) {
	u := s.client.baseURL + statusPath(userID, "events")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	return u, header
}

func statusPath(userID string, segments ...string) string {
	parts := []string{"/users", url.PathEscape(userID), "watch-status"}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}
