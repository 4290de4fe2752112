package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/gorilla/websocket"
)

const reconnectDelay = 2 * time.Second

// Listen subscribes to the backend's event stream at wsURL and invalidates the item and
// dashboard keys for every change it receives. It reconnects after failures and
// returns when ctx is cancelled.
func (s *Store) Listen(ctx context.Context, wsURL string, header http.Header) error {
	for {
		err := s.listenOnce(ctx, wsURL, header)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("event stream disconnected", "url", wsURL, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context, wsURL string, header http.Header) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.logger.Debug("event stream connected", "url", wsURL)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event models.StatusEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn("malformed status event", "error", err)
			continue
		}
		s.Apply(event)
	}
}

// Apply invalidates the keys affected by a remote change. Events for other users are ignored.
func (s *Store) Apply(event models.StatusEvent) {
	if event.UserID != s.userID || !event.ContentType.Valid() {
		return
	}
	s.Invalidate(s.Key(event.ContentType, event.ContentID), DashboardKey(s.userID))
}
