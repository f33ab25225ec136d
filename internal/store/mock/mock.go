// Package mock provides an in-memory store.Store for testing, with
// per-method error injection.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-tracker/internal/store"
)

// Store is an in-memory implementation of store.Store. The zero value is
// not usable; create instances with New.
type Store struct {
	mu         sync.RWMutex
	counter    int
	people     map[string]*store.Person
	peopleIDs  []string // insertion order
	embeddings []store.StoredEmbedding
	visits     []store.VisitRecord

	// Error injection
	NextPersonIDError     error
	RegisterPersonError   error
	UpdateLastSeenError   error
	RecordVisitError      error
	InsertEmbeddingError  error
	AllEmbeddingsError    error
	RecentEmbeddingsError error
	CountError            error
	SetPersonNameError    error
}

// New creates an empty mock store.
func New() *Store {
	return &Store{people: make(map[string]*store.Person)}
}

func (m *Store) NextPersonID(ctx context.Context) (string, error) {
	if m.NextPersonIDError != nil {
		return "", m.NextPersonIDError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("person%d", m.counter), nil
}

func (m *Store) RegisterPerson(ctx context.Context, personID string, embedding []float32, ts time.Time) error {
	if m.RegisterPersonError != nil {
		return m.RegisterPersonError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[personID]; !ok {
		m.people[personID] = &store.Person{
			PersonID: personID, FirstSeen: ts, LastSeen: ts,
		}
		m.peopleIDs = append(m.peopleIDs, personID)
	}
	m.embeddings = append(m.embeddings, store.StoredEmbedding{
		PersonID: personID, Vector: embedding, CreatedAt: ts,
	})
	return nil
}

func (m *Store) UpdateLastSeen(ctx context.Context, personID string, ts time.Time) error {
	if m.UpdateLastSeenError != nil {
		return m.UpdateLastSeenError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.people[personID]; ok {
		p.LastSeen = ts
	}
	return nil
}

func (m *Store) RecordVisit(ctx context.Context, personID string, action store.VisitAction, ts time.Time, evidencePath string) error {
	if m.RecordVisitError != nil {
		return m.RecordVisitError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, store.VisitRecord{
		PersonID: personID, Action: action, Timestamp: ts, EvidencePath: evidencePath,
	})
	if action == store.ActionEntry {
		if p, ok := m.people[personID]; ok {
			p.VisitCount++
			p.LastSeen = ts
		}
	}
	return nil
}

func (m *Store) InsertEmbedding(ctx context.Context, personID string, embedding []float32, ts time.Time) error {
	if m.InsertEmbeddingError != nil {
		return m.InsertEmbeddingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = append(m.embeddings, store.StoredEmbedding{
		PersonID: personID, Vector: embedding, CreatedAt: ts,
	})
	return nil
}

func (m *Store) AllEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	if m.AllEmbeddingsError != nil {
		return nil, m.AllEmbeddingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.StoredEmbedding, len(m.embeddings))
	copy(out, m.embeddings)
	return out, nil
}

func (m *Store) RecentEmbeddings(ctx context.Context, personID string, limit int) ([][]float32, error) {
	if m.RecentEmbeddingsError != nil {
		return nil, m.RecentEmbeddingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out [][]float32
	// Newest first.
	for i := len(m.embeddings) - 1; i >= 0 && len(out) < limit; i-- {
		if m.embeddings[i].PersonID == personID {
			out = append(out, m.embeddings[i].Vector)
		}
	}
	return out, nil
}

func (m *Store) CountPeople(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.people), nil
}

func (m *Store) CountVisits(ctx context.Context, action store.VisitAction) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, v := range m.visits {
		if v.Action == action {
			n++
		}
	}
	return n, nil
}

func (m *Store) People(ctx context.Context) ([]store.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Person, 0, len(m.peopleIDs))
	for _, id := range m.peopleIDs {
		out = append(out, *m.people[id])
	}
	return out, nil
}

func (m *Store) Visits(ctx context.Context, limit int) ([]store.VisitRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []store.VisitRecord
	for i := len(m.visits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.visits[i])
	}
	return out, nil
}

func (m *Store) SetPersonName(ctx context.Context, personID string, name string) error {
	if m.SetPersonNameError != nil {
		return m.SetPersonNameError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[personID]
	if !ok {
		return fmt.Errorf("person %s not found", personID)
	}
	p.DisplayName = name
	return nil
}

func (m *Store) Close() error { return nil }

// VisitRecords returns a copy of all recorded visits, oldest first.
// Test helper, not part of store.Store.
func (m *Store) VisitRecords() []store.VisitRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.VisitRecord, len(m.visits))
	copy(out, m.visits)
	return out
}

// EmbeddingCount returns the number of stored embeddings. Test helper.
func (m *Store) EmbeddingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings)
}
