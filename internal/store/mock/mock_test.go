package mock

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/face-tracker/internal/store"
)

func TestVisitCountTracksEntries(t *testing.T) {
	m := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := m.RegisterPerson(ctx, "person1", []float32{1}, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	people, _ := m.People(ctx)
	if people[0].VisitCount != 0 {
		t.Errorf("expected visit count 0 after registration, got %d", people[0].VisitCount)
	}

	if err := m.RecordVisit(ctx, "person1", store.ActionEntry, now, ""); err != nil {
		t.Fatalf("record entry failed: %v", err)
	}
	people, _ = m.People(ctx)
	if people[0].VisitCount != 1 {
		t.Errorf("expected visit count 1 after entry, got %d", people[0].VisitCount)
	}

	// Neither exits nor last-seen refreshes count as visits.
	if err := m.RecordVisit(ctx, "person1", store.ActionExit, now.Add(time.Minute), ""); err != nil {
		t.Fatalf("record exit failed: %v", err)
	}
	if err := m.UpdateLastSeen(ctx, "person1", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("update last seen failed: %v", err)
	}
	people, _ = m.People(ctx)
	if people[0].VisitCount != 1 {
		t.Errorf("expected visit count still 1, got %d", people[0].VisitCount)
	}

	if err := m.RecordVisit(ctx, "person1", store.ActionEntry, now.Add(3*time.Minute), ""); err != nil {
		t.Fatalf("record re-entry failed: %v", err)
	}
	people, _ = m.People(ctx)
	if people[0].VisitCount != 2 {
		t.Errorf("expected visit count 2 after re-entry, got %d", people[0].VisitCount)
	}
	if !people[0].LastSeen.Equal(now.Add(3 * time.Minute)) {
		t.Errorf("expected entry to refresh last seen, got %v", people[0].LastSeen)
	}
}
