// Package mariadb implements store.Store on MySQL/MariaDB. Embeddings are
// stored as JSON float lists since MariaDB has no native vector type; the
// in-memory gallery does the similarity math.
package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-tracker/internal/store"
)

// Store is a MariaDB-backed store.Store.
type Store struct {
	db *sql.DB
}

// New opens a connection pool, verifies connectivity and creates the schema.
// The DSN needs parseTime=true so DATETIME columns scan into time.Time.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS people (
			person_id    VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			first_seen   DATETIME(6) NOT NULL,
			last_seen    DATETIME(6) NOT NULL,
			visit_count  INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			id             BIGINT AUTO_INCREMENT PRIMARY KEY,
			person_id      VARCHAR(64) NOT NULL,
			embedding_json MEDIUMBLOB NOT NULL,
			created_at     DATETIME(6) NOT NULL,
			INDEX embeddings_person_id_idx (person_id)
		)`,
		`CREATE TABLE IF NOT EXISTS visit_records (
			id            BIGINT AUTO_INCREMENT PRIMARY KEY,
			person_id     VARCHAR(64) NOT NULL,
			action        VARCHAR(16) NOT NULL,
			ts            DATETIME(6) NOT NULL,
			evidence_path TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS person_counter (
			id      INT PRIMARY KEY,
			counter INT NOT NULL
		)`,
		`INSERT IGNORE INTO person_counter (id, counter) VALUES (1, 0)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
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
// minted identifier. MySQL has no UPDATE ... RETURNING, so the increment and
// read share a transaction with a locking read.
func (s *Store) NextPersonID(ctx context.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE person_counter SET counter = counter + 1 WHERE id = 1"); err != nil {
		return "", fmt.Errorf("increment person counter: %w", err)
	}

	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT counter FROM person_counter WHERE id = 1 FOR UPDATE").Scan(&n); err != nil {
		return "", fmt.Errorf("read person counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return fmt.Sprintf("person%d", n), nil
}

// RegisterPerson creates the people row and stores the first embedding in
// one transaction.
func (s *Store) RegisterPerson(ctx context.Context, personID string, embedding []float32, ts time.Time) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT IGNORE INTO people (person_id, first_seen, last_seen, visit_count)
		VALUES (?, ?, ?, 0)
	`, personID, ts, ts)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (person_id, embedding_json, created_at)
		VALUES (?, ?, ?)
	`, personID, data, ts)
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
		"UPDATE people SET last_seen = ? WHERE person_id = ?", ts, personID)
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
		VALUES (?, ?, ?, ?)
	`, personID, string(action), ts, evidencePath)
	if err != nil {
		return fmt.Errorf("insert visit record: %w", err)
	}

	if action == store.ActionEntry {
		_, err = tx.ExecContext(ctx, `
			UPDATE people SET visit_count = visit_count + 1, last_seen = ?
			WHERE person_id = ?
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
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embeddings (person_id, embedding_json, created_at)
		VALUES (?, ?, ?)
	`, personID, data, ts)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// AllEmbeddings returns every stored embedding in insertion order.
func (s *Store) AllEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT person_id, embedding_json, created_at FROM embeddings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []store.StoredEmbedding
	for rows.Next() {
		var e store.StoredEmbedding
		var data []byte
		if err := rows.Scan(&e.PersonID, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if err := json.Unmarshal(data, &e.Vector); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
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
		SELECT embedding_json FROM embeddings
		WHERE person_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent embeddings: %w", err)
	}
	defer rows.Close()

	var out [][]float32
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal(data, &vec); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
		out = append(out, vec)
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
		"SELECT COUNT(*) FROM visit_records WHERE action = ?", string(action)).Scan(&n)
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
		LIMIT ?
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

// SetPersonName labels a person with a display name. Existence is verified
// first since MySQL reports zero affected rows for unchanged data.
func (s *Store) SetPersonName(ctx context.Context, personID string, name string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM people WHERE person_id = ?", personID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("person %s not found", personID)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE people SET display_name = ? WHERE person_id = ?", name, personID); err != nil {
		return fmt.Errorf("set person name: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
