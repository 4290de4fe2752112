package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

const watchStatusColumns = `id, user_id, content_type, content_id, status, last_season, last_episode, created_at, updated_at`

// WatchStatusRepository implements [models.Repository] for [models.WatchStatusRecord] persistence.
//
// Rows are unique per (user, content type, content id). Clearing a status deletes the row,
// so [models.StatusNone] is never stored.
type WatchStatusRepository struct {
	db *sql.DB
}

// NewWatchStatusRepository creates a new [WatchStatusRepository] with the given database connection
func NewWatchStatusRepository(db *sql.DB) *WatchStatusRepository {
	return &WatchStatusRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchStatus(row rowScanner) (*models.WatchStatusRecord, error) {
	var (
		id          string
		userID      string
		contentType string
		contentID   string
		status      string
		lastSeason  sql.NullInt64
		lastEpisode sql.NullInt64
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := row.Scan(&id, &userID, &contentType, &contentID, &status, &lastSeason, &lastEpisode, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	record := models.NewWatchStatusRecord(userID, models.ContentType(contentType), contentID, models.WatchStatus(status))
	record.SetID(id)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updatedAt)
	record.SetProgress(nullIntPtr(lastSeason), nullIntPtr(lastEpisode))
	return record, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func intArg(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

// Create inserts a new record with a generated ID. It fails if the item is already tracked.
func (r *WatchStatusRepository) Create(record *models.WatchStatusRecord) error {
	record.SetID(shared.GenerateID())
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO watch_status (` + watchStatusColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		record.ID(), record.UserID(), record.ContentType(), record.ContentID(), record.Status(),
		intArg(record.LastSeason()), intArg(record.LastEpisode()), record.CreatedAt(), record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert watch status: %w", err)
	}
	return nil
}

// Get retrieves a record by ID
func (r *WatchStatusRepository) Get(id string) (*models.WatchStatusRecord, error) {
	query := `SELECT ` + watchStatusColumns + ` FROM watch_status WHERE id = ?`

	record, err := scanWatchStatus(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch status: %w", err)
	}
	return record, nil
}

// Find retrieves the record for one content item of a user.
func (r *WatchStatusRepository) Find(userID string, contentType models.ContentType, contentID string) (*models.WatchStatusRecord, error) {
	query := `
		SELECT ` + watchStatusColumns + `
		FROM watch_status
		WHERE user_id = ? AND content_type = ? AND content_id = ?
	`

	record, err := scanWatchStatus(r.db.QueryRow(query, userID, contentType, contentID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", shared.ErrRecordNotFound, contentType, contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch status: %w", err)
	}
	return record, nil
}

// Update modifies status and progress of an existing record
func (r *WatchStatusRepository) Update(record *models.WatchStatusRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		UPDATE watch_status
		SET status = ?, last_season = ?, last_episode = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, record.Status(), intArg(record.LastSeason()), intArg(record.LastEpisode()), now, record.ID())
	if err != nil {
		return fmt.Errorf("failed to update watch status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRecordNotFound, record.ID())
	}
	return nil
}

// Upsert stores the record, replacing status and progress when the item is already tracked.
// The record's ID and CreatedAt are set from the stored row.
func (r *WatchStatusRepository) Upsert(record *models.WatchStatusRecord) error {
	if record.ID() == "" {
		record.SetID(shared.GenerateID())
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		INSERT INTO watch_status (` + watchStatusColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, content_type, content_id) DO UPDATE SET
			status = excluded.status,
			last_season = excluded.last_season,
			last_episode = excluded.last_episode,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		record.ID(), record.UserID(), record.ContentType(), record.ContentID(), record.Status(),
		intArg(record.LastSeason()), intArg(record.LastEpisode()), record.CreatedAt(), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert watch status: %w", err)
	}

	stored, err := r.Find(record.UserID(), record.ContentType(), record.ContentID())
	if err != nil {
		return err
	}
	record.SetID(stored.ID())
	record.SetCreatedAt(stored.CreatedAt())
	return nil
}

// Delete removes a record by ID
func (r *WatchStatusRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM watch_status WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete watch status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	return nil
}

// Remove deletes the record for one content item and reports whether one existed.
func (r *WatchStatusRepository) Remove(userID string, contentType models.ContentType, contentID string) (bool, error) {
	query := `DELETE FROM watch_status WHERE user_id = ? AND content_type = ? AND content_id = ?`

	result, err := r.db.Exec(query, userID, contentType, contentID)
	if err != nil {
		return false, fmt.Errorf("failed to delete watch status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// List retrieves records matching criteria, most recently updated first.
//
// Supported criteria: "user_id", "content_type" and "status" (strings or their typed equivalents).
func (r *WatchStatusRepository) List(criteria map[string]any) ([]*models.WatchStatusRecord, error) {
	query := `SELECT ` + watchStatusColumns + ` FROM watch_status WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if ct := criterion(criteria, "content_type"); ct != "" {
		query += " AND content_type = ?"
		args = append(args, ct)
	}
	if status := criterion(criteria, "status"); status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY updated_at DESC, id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch statuses: %w", err)
	}
	defer rows.Close()

	var records []*models.WatchStatusRecord
	for rows.Next() {
		record, err := scanWatchStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watch status: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

func criterion(criteria map[string]any, key string) string {
	switch v := criteria[key].(type) {
	case string:
		return v
	case models.ContentType:
		return string(v)
	case models.WatchStatus:
		return string(v)
	default:
		return ""
	}
}

// ListByUser returns every record of userID.
func (r *WatchStatusRepository) ListByUser(userID string) ([]*models.WatchStatusRecord, error) {
	return r.List(map[string]any{"user_id": userID})
}

// Statuses returns the status of each id for userID; untracked ids map to [models.StatusNone].
// An empty ids slice returns an empty map without querying.
func (r *WatchStatusRepository) Statuses(userID string, contentType models.ContentType, ids []string) (map[string]models.WatchStatus, error) {
	out := make(map[string]models.WatchStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, userID, contentType)
	for _, id := range ids {
		out[id] = models.StatusNone
		args = append(args, id)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `
		SELECT content_id, status
		FROM watch_status
		WHERE user_id = ? AND content_type = ? AND content_id IN (` + placeholders + `)
	`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan watch status: %w", err)
		}
		out[id] = models.WatchStatus(status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
