package models

import (
	"fmt"
	"time"
)

// WatchStatusRecord is the stored tuple (user, content type, content id, status, progress).
// [StatusNone] is never stored: clearing a status deletes the record.
type WatchStatusRecord struct {
	id          string
	userID      string
	contentType ContentType
	contentID   string
	status      WatchStatus
	lastSeason  *int
	lastEpisode *int
	createdAt   time.Time
	updatedAt   time.Time
}

// NewWatchStatusRecord creates a record with timestamps set to now.
func NewWatchStatusRecord(userID string, contentType ContentType, contentID string, status WatchStatus) *WatchStatusRecord {
	now := time.Now()
	return &WatchStatusRecord{
		userID:      userID,
		contentType: contentType,
		contentID:   contentID,
		status:      status,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (r *WatchStatusRecord) ID() string               { return r.id }
func (r *WatchStatusRecord) UserID() string           { return r.userID }
func (r *WatchStatusRecord) ContentType() ContentType { return r.contentType }
func (r *WatchStatusRecord) ContentID() string        { return r.contentID }
func (r *WatchStatusRecord) Status() WatchStatus      { return r.status }
func (r *WatchStatusRecord) LastSeason() *int         { return r.lastSeason }
func (r *WatchStatusRecord) LastEpisode() *int        { return r.lastEpisode }
func (r *WatchStatusRecord) CreatedAt() time.Time     { return r.createdAt }
func (r *WatchStatusRecord) UpdatedAt() time.Time     { return r.updatedAt }

func (r *WatchStatusRecord) SetID(id string)          { r.id = id }
func (r *WatchStatusRecord) SetStatus(s WatchStatus)  { r.status = s }
func (r *WatchStatusRecord) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *WatchStatusRecord) SetUpdatedAt(t time.Time) { r.updatedAt = t }

// SetProgress records season/episode; nil values clear them.
func (r *WatchStatusRecord) SetProgress(season, episode *int) {
	r.lastSeason = season
	r.lastEpisode = episode
}

// Progress returns the stored progress, defaulting missing parts to 1.
func (r *WatchStatusRecord) Progress() WatchProgress {
	p := DefaultProgress()
	if r.lastSeason != nil {
		p.Season = *r.lastSeason
	}
	if r.lastEpisode != nil {
		p.Episode = *r.lastEpisode
	}
	return p
}

func (r *WatchStatusRecord) Validate() error {
	if r.userID == "" {
		return fmt.Errorf("user id is required")
	}
	if !r.contentType.Valid() {
		return fmt.Errorf("invalid content type %q", r.contentType)
	}
	if r.contentID == "" {
		return fmt.Errorf("content id is required")
	}
	if !r.status.Tracked() {
		return fmt.Errorf("status %q cannot be stored", r.status)
	}
	if r.lastSeason != nil && *r.lastSeason < 1 {
		return fmt.Errorf("season must be at least 1")
	}
	if r.lastEpisode != nil && *r.lastEpisode < 1 {
		return fmt.Errorf("episode must be at least 1")
	}
	return nil
}
