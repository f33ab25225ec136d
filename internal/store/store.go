// Package store defines the persistence contract for people, embeddings,
// and visit events, shared by the PostgreSQL, MariaDB, and mock backends.
package store

import (
	"context"
	"time"
)

// Store is the durable backend for the tracking pipeline. All calls are
// synchronous and fallible with no internal retry; callers decide whether a
// failure aborts the current detection's resolution or the whole run.
type Store interface {
	// NextPersonID atomically increments the person counter and mints a new
	// identifier of the form "person<N>". Identifiers are never reused.
	NextPersonID(ctx context.Context) (string, error)

	// RegisterPerson creates the person row with a zero visit count and
	// stores their first embedding. The entry record that follows a
	// registration accounts for the first visit.
	RegisterPerson(ctx context.Context, personID string, embedding []float32, ts time.Time) error

	// UpdateLastSeen refreshes the person's last-seen timestamp.
	UpdateLastSeen(ctx context.Context, personID string, ts time.Time) error

	// RecordVisit appends an entry/exit fact. An entry additionally bumps
	// the person's visit count and last-seen timestamp, so visit_count is
	// the number of recorded entries. evidencePath may be empty.
	RecordVisit(ctx context.Context, personID string, action VisitAction, ts time.Time, evidencePath string) error

	// InsertEmbedding stores an additional embedding for a known person.
	InsertEmbedding(ctx context.Context, personID string, embedding []float32, ts time.Time) error

	// AllEmbeddings returns every (personID, vector) pair across all people.
	AllEmbeddings(ctx context.Context) ([]StoredEmbedding, error)

	// RecentEmbeddings returns up to limit embeddings for a person,
	// most recent first.
	RecentEmbeddings(ctx context.Context, personID string, limit int) ([][]float32, error)

	// CountPeople returns the number of distinct known people.
	CountPeople(ctx context.Context) (int, error)

	// CountVisits returns the number of visit records with the given action.
	CountVisits(ctx context.Context, action VisitAction) (int, error)

	// People returns all known people.
	People(ctx context.Context) ([]Person, error)

	// Visits returns up to limit recent visit records, newest first.
	Visits(ctx context.Context, limit int) ([]VisitRecord, error)

	// SetPersonName assigns a human-friendly display name to a person.
	SetPersonName(ctx context.Context, personID string, name string) error

	// Close releases the backend's resources.
	Close() error
}
