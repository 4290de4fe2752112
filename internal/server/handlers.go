package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/repositories"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tasks"
)

const maxBodyBytes = 1 << 16

// WatchStatusHandler serves the /users/{userId}/watch-status endpoints.
type WatchStatusHandler struct {
	users   *repositories.UserRepository
	records *repositories.WatchStatusRepository
	engine  *tasks.Engine
	hub     *Hub
	hydrate tasks.HydrateOpts
	secret  []byte
	logger  *log.Logger
}

// Register adds the watch-status routes. Everything but /health requires a bearer token;
// user-scoped routes also require the token's user to match {userId}.
func (h *WatchStatusHandler) Register(r Router) {
	auth := AuthMiddleware(h.secret)

	r.Handle(http.MethodGet, "/health", http.HandlerFunc(h.health))
	r.Handle(http.MethodGet, "/api/auth", http.HandlerFunc(h.identity), auth)

	base := "/users/{userId}/watch-status"
	r.Handle(http.MethodGet, base+"/all", http.HandlerFunc(h.all), auth, OwnerMiddleware)
	r.Handle(http.MethodGet, base+"/batch", http.HandlerFunc(h.batch), auth, OwnerMiddleware)
	r.Handle(http.MethodGet, base+"/events", http.HandlerFunc(h.hub.ServeWS), auth, OwnerMiddleware)
	r.Handle(http.MethodGet, base+"/{contentType}", http.HandlerFunc(h.byStatus), auth, OwnerMiddleware)
	r.Handle(http.MethodGet, base+"/{contentType}/{contentId}", http.HandlerFunc(h.get), auth, OwnerMiddleware)
	r.Handle(http.MethodPut, base+"/{contentType}/{contentId}", http.HandlerFunc(h.put), auth, OwnerMiddleware)
}

func (h *WatchStatusHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identity resolves the token to its user.
func (h *WatchStatusHandler) identity(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	user, err := h.users.Get(claims.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, shared.ErrAuthRequired)
			return
		}
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": user.ID(), "name": user.Name()})
}

func pathContentType(r *http.Request) (models.ContentType, error) {
	t := models.ContentType(r.PathValue("contentType"))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidContentType, r.PathValue("contentType"))
	}
	return t, nil
}

// get answers 200 with {status: "none"} for untracked content.
func (h *WatchStatusHandler) get(w http.ResponseWriter, r *http.Request) {
	t, err := pathContentType(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	record, err := h.records.Find(r.PathValue("userId"), t, r.PathValue("contentId"))
	if errors.Is(err, shared.ErrRecordNotFound) {
		writeJSON(w, http.StatusOK, models.StatusEntry{Status: models.StatusNone})
		return
	}
	if err != nil {
		h.internalError(w, err)
		return
	}

	entry := models.StatusEntry{
		Status:      record.Status(),
		LastSeason:  record.LastSeason(),
		LastEpisode: record.LastEpisode(),
	}
	writeJSON(w, http.StatusOK, entry)
}

// put upserts the record, or deletes it for status none, then notifies event streams.
func (h *WatchStatusHandler) put(w http.ResponseWriter, r *http.Request) {
	t, err := pathContentType(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Status      string `json:"status"`
		LastSeason  *int   `json:"lastSeason"`
		LastEpisode *int   `json:"lastEpisode"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	status, err := models.ParseWatchStatus(body.Status)
	if err != nil || strings.TrimSpace(body.Status) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", shared.ErrInvalidStatus, body.Status))
		return
	}

	userID, contentID := r.PathValue("userId"), r.PathValue("contentId")
	if status == models.StatusNone {
		if _, err := h.records.Remove(userID, t, contentID); err != nil {
			h.internalError(w, err)
			return
		}
	} else {
		record := models.NewWatchStatusRecord(userID, t, contentID, status)
		if status == models.StatusCurrentlyWatching && t.HasProgress() {
			record.SetProgress(body.LastSeason, body.LastEpisode)
		}
		if err := record.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
		if err := h.records.Upsert(record); err != nil {
			h.internalError(w, err)
			return
		}
	}

	h.hub.Publish(models.StatusEvent{UserID: userID, ContentType: t, ContentID: contentID, Status: status})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
}

// batch answers {contentId: status} for every requested id, including untracked ones.
// contentIds may repeat or be comma separated.
func (h *WatchStatusHandler) batch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	t := models.ContentType(query.Get("contentType"))
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", shared.ErrInvalidContentType, query.Get("contentType")))
		return
	}

	var ids []string
	seen := make(map[string]bool)
	for _, v := range query["contentIds"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	statuses, err := h.records.Statuses(r.PathValue("userId"), t, ids)
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// all hydrates every record of the user into the dashboard aggregate.
func (h *WatchStatusHandler) all(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Dashboard(r.Context(), nil, h.records, r.PathValue("userId"), h.hydrate)
	if err != nil {
		h.hydrateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Aggregate)
}

// byStatus answers {"<plural type>": [content...]} for one status.
func (h *WatchStatusHandler) byStatus(w http.ResponseWriter, r *http.Request) {
	t, err := pathContentType(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := models.ParseWatchStatus(r.URL.Query().Get("status"))
	if err != nil || !status.Tracked() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", shared.ErrInvalidStatus, r.URL.Query().Get("status")))
		return
	}

	records, err := h.records.List(map[string]any{
		"user_id":      r.PathValue("userId"),
		"content_type": t,
		"status":       status,
	})
	if err != nil {
		h.internalError(w, err)
		return
	}

	result, err := h.engine.Hydrate(r.Context(), nil, records, h.hydrate)
	if err != nil {
		h.hydrateError(w, err)
		return
	}

	items := result.Aggregate.Items(t, status)
	raw := make([]json.RawMessage, 0, len(items))
	for _, c := range items {
		data, err := models.MarshalContent(c)
		if err != nil {
			h.internalError(w, err)
			return
		}
		raw = append(raw, data)
	}
	writeJSON(w, http.StatusOK, map[string][]json.RawMessage{t.Plural(): raw})
}

func (h *WatchStatusHandler) hydrateError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrServiceUnavailable) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	h.internalError(w, err)
}

func (h *WatchStatusHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
}
