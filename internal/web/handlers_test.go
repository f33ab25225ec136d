package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/geometry"
	"github.com/kozaktomas/face-tracker/internal/store"
	"github.com/kozaktomas/face-tracker/internal/store/mock"
	"github.com/kozaktomas/face-tracker/internal/track"
)

func newTestServer(st store.Store, tracker *track.Tracker) *Server {
	cfg := &config.WebConfig{Host: "127.0.0.1", Port: 0}
	return NewServer(cfg, st, tracker, nil, nil, nil)
}

func doRequest(t *testing.T, s *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(mock.New(), nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("unexpected health response %v", resp)
	}
}

func TestHandleStats(t *testing.T) {
	st := mock.New()
	ctx := context.Background()
	_ = st.RegisterPerson(ctx, "person1", []float32{1}, time.Now())
	_ = st.RecordVisit(ctx, "person1", store.ActionEntry, time.Now(), "")
	_ = st.RecordVisit(ctx, "person1", store.ActionExit, time.Now(), "")
	_ = st.RecordVisit(ctx, "person1", store.ActionEntry, time.Now(), "")

	s := newTestServer(st, nil)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["people"] != 1 || resp["entries"] != 2 || resp["exits"] != 1 {
		t.Errorf("unexpected stats %v", resp)
	}
}

func TestHandlePeople_NameFilter(t *testing.T) {
	st := mock.New()
	ctx := context.Background()
	_ = st.RegisterPerson(ctx, "person1", []float32{1}, time.Now())
	_ = st.RegisterPerson(ctx, "person2", []float32{1}, time.Now())
	_ = st.SetPersonName(ctx, "person1", "Jiří Novák")

	s := newTestServer(st, nil)

	// Diacritic-insensitive lookup.
	rec := doRequest(t, s, http.MethodGet, "/api/v1/people?name=jiri+novak", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		People []store.Person `json:"people"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Count != 1 || resp.People[0].PersonID != "person1" {
		t.Errorf("expected normalized name match for person1, got %+v", resp)
	}
}

func TestHandleVisits_Limit(t *testing.T) {
	st := mock.New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = st.RecordVisit(ctx, "person1", store.ActionEntry, time.Now(), "")
	}

	s := newTestServer(st, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/visits?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 visits, got %d", resp.Count)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/v1/visits?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid limit, got %d", rec.Code)
	}
}

func TestHandleLive(t *testing.T) {
	t.Run("inactive without tracker", func(t *testing.T) {
		s := newTestServer(mock.New(), nil)
		rec := doRequest(t, s, http.MethodGet, "/api/v1/live", "")

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if resp["active"] != false {
			t.Errorf("expected inactive live view, got %v", resp)
		}
	})

	t.Run("tracked set with tracker", func(t *testing.T) {
		tr := track.NewTracker()
		tr.Register("person1", geometry.Box{X: 10, Y: 10, W: 40, H: 40}, nil, 0.9, 3)

		s := newTestServer(mock.New(), tr)
		rec := doRequest(t, s, http.MethodGet, "/api/v1/live", "")

		var resp struct {
			Active  bool               `json:"active"`
			Tracked []track.PersonView `json:"tracked"`
			InFrame int                `json:"in_frame"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !resp.Active || len(resp.Tracked) != 1 || resp.InFrame != 1 {
			t.Errorf("unexpected live view %+v", resp)
		}
	})
}

func TestHandleSetName(t *testing.T) {
	st := mock.New()
	_ = st.RegisterPerson(context.Background(), "person1", []float32{1}, time.Now())
	s := newTestServer(st, nil)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/people/person1/name", `{"name":"Jan Novák"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	people, _ := st.People(context.Background())
	if people[0].DisplayName != "Jan Novák" {
		t.Errorf("display name not persisted: %+v", people[0])
	}

	if rec := doRequest(t, s, http.MethodPut, "/api/v1/people/nope/name", `{"name":"X"}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown person, got %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPut, "/api/v1/people/person1/name", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty name, got %d", rec.Code)
	}
}

func TestEventHub(t *testing.T) {
	h := NewEventHub()
	ch := h.AddListener()

	rec := store.VisitRecord{PersonID: "person1", Action: store.ActionEntry}
	h.Publish(rec)

	select {
	case got := <-ch:
		if got.PersonID != "person1" {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	h.RemoveListener(ch)
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after RemoveListener")
	}
}

func TestHandleEvents_StreamsRecords(t *testing.T) {
	s := newTestServer(mock.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.Router().ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler time to register its listener, then publish and
	// disconnect.
	time.Sleep(50 * time.Millisecond)
	s.Hub().Publish(store.VisitRecord{PersonID: "person1", Action: store.ActionEntry})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SSE handler did not stop on disconnect")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: entry") || !strings.Contains(body, "person1") {
		t.Errorf("expected SSE entry event in stream, got: %q", body)
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jiří", "jiri"},
		{"jan-novak", "jan novak"},
		{"ANNA", "anna"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizePersonName(tt.in); got != tt.want {
			t.Errorf("normalizePersonName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
