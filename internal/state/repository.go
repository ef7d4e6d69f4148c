// Package state persists the agent's durable bookkeeping: recent projects,
// resume positions, and the config key/value table that holds the API token
// and device identity.
package state

import (
	"context"
	"database/sql"
	"time"
)

type RecentProject struct {
	Path           string    `json:"path"`
	DisplayName    string    `json:"display_name"`
	LastOpenedAt   time.Time `json:"last_opened_at"`
	LastPositionMs int64     `json:"last_position_ms"`
	DurationMs     int64     `json:"duration_ms"`
}

type Repository interface {
	TouchRecent(ctx context.Context, path, displayName string) error
	ListRecent(ctx context.Context, limit int) ([]*RecentProject, error)
	RemoveRecent(ctx context.Context, path string) error
	LastPosition(ctx context.Context, path string) (int64, error)
	SetLastPosition(ctx context.Context, path string, positionMs, durationMs int64) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// TouchRecent records that a project was opened now, keeping any stored
// resume position from earlier sessions.
func (r *SQLiteRepository) TouchRecent(ctx context.Context, path, displayName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recent_projects (path, display_name, last_opened_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			display_name = excluded.display_name,
			last_opened_at = excluded.last_opened_at
	`, path, displayName, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]*RecentProject, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT path, display_name, last_opened_at, last_position_ms, duration_ms
		FROM recent_projects ORDER BY last_opened_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*RecentProject
	for rows.Next() {
		var p RecentProject
		var openedAt string
		if err := rows.Scan(&p.Path, &p.DisplayName, &openedAt, &p.LastPositionMs, &p.DurationMs); err != nil {
			return nil, err
		}
		p.LastOpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) RemoveRecent(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM recent_projects WHERE path = ?", path)
	return err
}

// LastPosition returns the stored resume position for a project, or 0 when
// the project has never been tracked.
func (r *SQLiteRepository) LastPosition(ctx context.Context, path string) (int64, error) {
	var position int64
	err := r.db.QueryRowContext(ctx,
		"SELECT last_position_ms FROM recent_projects WHERE path = ?", path,
	).Scan(&position)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return position, err
}

func (r *SQLiteRepository) SetLastPosition(ctx context.Context, path string, positionMs, durationMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recent_projects SET last_position_ms = ?, duration_ms = ? WHERE path = ?
	`, positionMs, durationMs, path)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
