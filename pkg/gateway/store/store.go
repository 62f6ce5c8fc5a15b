// Package store persists the question bank, categories, and interview
// history in postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Category groups question bank entries.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Question is one question bank entry.
type Question struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	Prompt     string    `json:"prompt"`
	Difficulty string    `json:"difficulty,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Interview is one persisted interview: its transcript and coaching
// summary.
type Interview struct {
	ID         int64           `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	Transcript []realtime.Turn `json:"transcript"`
	Summary    string          `json:"summary,omitempty"`
}

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending goose migrations. It opens its own database/sql
// connection because goose drives the stdlib interface.
func Migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// ListCategories returns all categories by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(description, ''), created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category and returns it.
func (s *Store) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	var c Category
	err := s.pool.QueryRow(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2)
		 RETURNING id, name, COALESCE(description, ''), created_at`,
		name, description,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	return c, err
}

// UpdateCategory renames a category.
func (s *Store) UpdateCategory(ctx context.Context, id int64, name, description string) (Category, error) {
	var c Category
	err := s.pool.QueryRow(ctx,
		`UPDATE categories SET name = $2, description = $3 WHERE id = $1
		 RETURNING id, name, COALESCE(description, ''), created_at`,
		id, name, description,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

// DeleteCategory removes a category and its questions.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQuestions returns the question bank, optionally scoped to one
// category by name.
func (s *Store) ListQuestions(ctx context.Context, category string) ([]Question, error) {
	query := `SELECT q.id, q.category_id, q.prompt, COALESCE(q.difficulty, ''), q.created_at
	          FROM questions q`
	args := []any{}
	if category != "" {
		query += ` JOIN categories c ON c.id = q.category_id WHERE c.name = $1`
		args = append(args, category)
	}
	query += ` ORDER BY q.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.CategoryID, &q.Prompt, &q.Difficulty, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SaveInterview persists a finished interview and returns its row.
func (s *Store) SaveInterview(ctx context.Context, transcript []realtime.Turn, summary string) (Interview, error) {
	payload, err := json.Marshal(transcript)
	if err != nil {
		return Interview{}, err
	}

	iv := Interview{Transcript: transcript, Summary: summary}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO interviews (transcript, summary) VALUES ($1, $2)
		 RETURNING id, started_at`,
		payload, summary,
	).Scan(&iv.ID, &iv.StartedAt)
	return iv, err
}

// ListInterviews returns interview history, newest first.
func (s *Store) ListInterviews(ctx context.Context, limit int) ([]Interview, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, transcript, COALESCE(summary, '')
		 FROM interviews ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		var iv Interview
		var payload []byte
		if err := rows.Scan(&iv.ID, &iv.StartedAt, &payload, &iv.Summary); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &iv.Transcript); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// GetInterview returns one interview by ID.
func (s *Store) GetInterview(ctx context.Context, id int64) (Interview, error) {
	var iv Interview
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, started_at, transcript, COALESCE(summary, '')
		 FROM interviews WHERE id = $1`, id,
	).Scan(&iv.ID, &iv.StartedAt, &payload, &iv.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return Interview{}, ErrNotFound
	}
	if err != nil {
		return Interview{}, err
	}
	if err := json.Unmarshal(payload, &iv.Transcript); err != nil {
		return Interview{}, err
	}
	return iv, nil
}
