// Package postgres implements store.Store on PostgreSQL with pgvector
// embedding storage. Migrations are embedded and applied on startup.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/store"
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db *sql.DB
}

// New opens a connection pool, verifies connectivity and applies pending
// migrations.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// NextPersonID atomically increments the person counter and returns the
// minted identifier.
func (s *Store) NextPersonID(ctx context.Context) (string, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"UPDATE person_counter SET counter = counter + 1 WHERE id = 1 RETURNING counter",
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("increment person counter: %w", err)
	}
	return fmt.Sprintf("person%d", n), nil
}

// RegisterPerson creates the people row and stores the first embedding in
// one transaction.
func (s *Store) RegisterPerson(ctx context.Context, personID string, embedding []float32, ts time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO people (person_id, first_seen, last_seen, visit_count)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (person_id) DO NOTHING
	`, personID, ts)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (person_id, embedding, created_at)
		VALUES ($1, $2::vector, $3)
	`, personID, pgvector.NewVector(embedding), ts)
	if err != nil {
		return fmt.Errorf("insert first embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateLastSeen refreshes the person's last-seen timestamp.
func (s *Store) UpdateLastSeen(ctx context.Context, personID string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE people SET last_seen = $1 WHERE person_id = $2", ts, personID)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

// RecordVisit appends an entry or exit fact.
func (s *Store) RecordVisit(ctx context.Context, personID string, action store.VisitAction, ts time.Time, evidencePath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO visit_records (person_id, action, ts, evidence_path)
		VALUES ($1, $2, $3, $4)
	`, personID, string(action), ts, evidencePath)
	if err != nil {
		return fmt.Errorf("insert visit record: %w", err)
	}

	if action == store.ActionEntry {
		_, err = tx.ExecContext(ctx, `
			UPDATE people SET visit_count = visit_count + 1, last_seen = $1
			WHERE person_id = $2
		`, ts, personID)
		if err != nil {
			return fmt.Errorf("bump visit count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertEmbedding stores an additional embedding for the person.
func (s *Store) InsertEmbedding(ctx context.Context, personID string, embedding []float32, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (person_id, embedding, created_at)
		VALUES ($1, $2::vector, $3)
	`, personID, pgvector.NewVector(embedding), ts)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// AllEmbeddings returns every stored embedding in insertion order.
func (s *Store) AllEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT person_id, embedding, created_at FROM embeddings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []store.StoredEmbedding
	for rows.Next() {
		var e store.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.PersonID, &vec, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Vector = vec.Slice()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// RecentEmbeddings returns up to limit embeddings for the person, newest
// first.
func (s *Store) RecentEmbeddings(ctx context.Context, personID string, limit int) ([][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT embedding FROM embeddings
		WHERE person_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent embeddings: %w", err)
	}
	defer rows.Close()

	var out [][]float32
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out = append(out, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent embeddings: %w", err)
	}
	return out, nil
}

// CountPeople returns the number of known people.
func (s *Store) CountPeople(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM people").Scan(&n); err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return n, nil
}

// CountVisits returns the number of visit records with the given action.
func (s *Store) CountVisits(ctx context.Context, action store.VisitAction) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM visit_records WHERE action = $1", string(action)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// People returns every known person ordered by first appearance.
func (s *Store) People(ctx context.Context) ([]store.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, display_name, first_seen, last_seen, visit_count
		FROM people
		ORDER BY first_seen
	`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var out []store.Person
	for rows.Next() {
		var p store.Person
		if err := rows.Scan(&p.PersonID, &p.DisplayName, &p.FirstSeen, &p.LastSeen, &p.VisitCount); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return out, nil
}

// Visits returns up to limit visit records, newest first.
func (s *Store) Visits(ctx context.Context, limit int) ([]store.VisitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, action, ts, evidence_path
		FROM visit_records
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var out []store.VisitRecord
	for rows.Next() {
		var v store.VisitRecord
		var action string
		if err := rows.Scan(&v.PersonID, &action, &v.Timestamp, &v.EvidencePath); err != nil {
			return nil, fmt.Errorf("scan visit record: %w", err)
		}
		v.Action = store.VisitAction(action)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visits: %w", err)
	}
	return out, nil
}

// SetPersonName labels a person with a display name.
func (s *Store) SetPersonName(ctx context.Context, personID string, name string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE people SET display_name = $1 WHERE person_id = $2", name, personID)
	if err != nil {
		return fmt.Errorf("set person name: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("person %s not found", personID)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
