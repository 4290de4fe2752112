package models

import (
	"fmt"
	"strings"
)

// WatchStatus is a user's relationship to a content item.
type WatchStatus string

const (
	StatusNone              WatchStatus = "none"
	StatusCurrentlyWatching WatchStatus = "currently_watching"
	StatusWatchLater        WatchStatus = "watch_later"
	StatusWatched           WatchStatus = "watched"
	StatusRewatch           WatchStatus = "rewatch"
)

// Statuses returns the tracked statuses, excluding [StatusNone].
func Statuses() []WatchStatus {
	return []WatchStatus{StatusCurrentlyWatching, StatusWatchLater, StatusWatched, StatusRewatch}
}

// AllStatuses returns every status including [StatusNone].
func AllStatuses() []WatchStatus {
	return append(Statuses(), StatusNone)
}

// ParseWatchStatus accepts the wire value; an empty string parses as [StatusNone].
func ParseWatchStatus(s string) (WatchStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusNone, nil
	}
	st := WatchStatus(strings.ReplaceAll(s, "-", "_"))
	if !st.Valid() {
		return "", fmt.Errorf("invalid watch status %q", s)
	}
	return st, nil
}

func (s WatchStatus) Valid() bool {
	switch s {
	case StatusNone, StatusCurrentlyWatching, StatusWatchLater, StatusWatched, StatusRewatch:
		return true
	}
	return false
}

// Tracked reports whether s represents a stored relationship.
func (s WatchStatus) Tracked() bool {
	return s != StatusNone && s.Valid()
}

// Label is the user-facing name of the status.
func (s WatchStatus) Label() string {
	switch s {
	case StatusCurrentlyWatching:
		return "Currently Watching"
	case StatusWatchLater:
		return "Watch Later"
	case StatusWatched:
		return "Watched"
	case StatusRewatch:
		return "Rewatch"
	default:
		return "Set Status"
	}
}

func (s WatchStatus) String() string { return string(s) }

// WatchProgress points at the next season/episode to watch. Both values are 1-based.
type WatchProgress struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// DefaultProgress is season 1, episode 1.
func DefaultProgress() WatchProgress {
	return WatchProgress{Season: 1, Episode: 1}
}

// WithSeason moves to season and resets the episode to 1.
func (p WatchProgress) WithSeason(season int) WatchProgress {
	if season == p.Season {
		return p
	}
	return WatchProgress{Season: max(season, 1), Episode: 1}
}

// WithEpisode keeps the season and replaces the episode.
func (p WatchProgress) WithEpisode(episode int) WatchProgress {
	return WatchProgress{Season: p.Season, Episode: max(episode, 1)}
}

// Clamp raises values below 1 and caps them against c when season or episode data is known.
// Unknown counts leave the value as-is.
func (p WatchProgress) Clamp(c Content) WatchProgress {
	p.Season = max(p.Season, 1)
	p.Episode = max(p.Episode, 1)
	if c == nil {
		return p
	}

	return Match(c,
		func(*Movie) WatchProgress { return p },
		func(s *Show) WatchProgress {
			if n := s.SeasonCount(); n > 0 && p.Season > n {
				p.Season = n
			}
			if n, ok := s.EpisodeCount(p.Season); ok && p.Episode > n {
				p.Episode = n
			}
			return p
		},
		func(a *Anime) WatchProgress {
			if a.Episodes != nil && *a.Episodes > 0 && p.Episode > *a.Episodes {
				p.Episode = *a.Episodes
			}
			return p
		},
	)
}

// StatusEntry is the wire shape of a single watch-status read or write.
type StatusEntry struct {
	Status      WatchStatus `json:"status"`
	LastSeason  *int        `json:"lastSeason,omitempty"`
	LastEpisode *int        `json:"lastEpisode,omitempty"`
}

// NewStatusEntry builds an entry; progress is attached only for currently_watching.
func NewStatusEntry(status WatchStatus, progress *WatchProgress) StatusEntry {
	e := StatusEntry{Status: status}
	if status == StatusCurrentlyWatching && progress != nil {
		season, episode := progress.Season, progress.Episode
		e.LastSeason, e.LastEpisode = &season, &episode
	}
	return e
}

// Progress returns the entry's progress, defaulting missing parts to 1/1.
func (e StatusEntry) Progress() WatchProgress {
	p := DefaultProgress()
	if e.LastSeason != nil && *e.LastSeason > 0 {
		p.Season = *e.LastSeason
	}
	if e.LastEpisode != nil && *e.LastEpisode > 0 {
		p.Episode = *e.LastEpisode
	}
	return p
}

// StatusEvent is pushed to event subscribers after a watch-status record changes.
type StatusEvent struct {
	UserID      string      `json:"userId"`
	ContentType ContentType `json:"contentType"`
	ContentID   string      `json:"contentId"`
	Status      WatchStatus `json:"status"`
}
