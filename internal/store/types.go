package store

import "time"

// VisitAction is the lifecycle fact type recorded for a person.
type VisitAction string

const (
	ActionEntry VisitAction = "entry"
	ActionExit  VisitAction = "exit"
)

// Person represents a known person and their visit aggregates.
type Person struct {
	PersonID    string    `json:"person_id"`
	DisplayName string    `json:"display_name,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	VisitCount  int       `json:"visit_count"`
}

// VisitRecord is an immutable entry/exit fact. Append-only; never mutated
// or deleted by the pipeline.
type VisitRecord struct {
	PersonID     string      `json:"person_id"`
	Action       VisitAction `json:"action"`
	Timestamp    time.Time   `json:"timestamp"`
	EvidencePath string      `json:"evidence_path,omitempty"`
}

// StoredEmbedding is a persisted appearance embedding owned by a person.
type StoredEmbedding struct {
	PersonID  string
	Vector    []float32
	CreatedAt time.Time
}
