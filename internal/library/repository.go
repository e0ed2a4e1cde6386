package library

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	ListEntries(ctx context.Context, limit int) ([]*Entry, error)
	UpdateEntry(ctx context.Context, e *Entry) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = `id, title, project, status, path, duration_s, size_bytes, failure, error, created_at, updated_at`

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Title, nullString(e.Project), e.Status, nullString(e.Path),
		e.DurationSeconds, e.SizeBytes, nullString(e.Failure), nullString(e.Error),
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM exports WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM exports ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, path = ?, duration_s = ?, size_bytes = ?,
			failure = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, e.Status, nullString(e.Path), e.DurationSeconds, e.SizeBytes,
		nullString(e.Failure), nullString(e.Error), e.UpdatedAt.Format(time.RFC3339), e.ID)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var project, path, failure, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.Title, &project, &e.Status, &path, &e.DurationSeconds,
		&e.SizeBytes, &failure, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.Project = project.String
	e.Path = path.String
	e.Failure = failure.String
	e.Error = errMsg.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
