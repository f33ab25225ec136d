package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-tracker/internal/store"
)

// defaultVisitLimit caps the visit history response when no limit is given.
const defaultVisitLimit = 50

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	people, err := s.store.CountPeople(ctx)
	if err != nil {
		s.logger.Error("count people failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	entries, err := s.store.CountVisits(ctx, store.ActionEntry)
	if err != nil {
		s.logger.Error("count entries failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	exits, err := s.store.CountVisits(ctx, store.ActionExit)
	if err != nil {
		s.logger.Error("count exits failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"people":  people,
		"entries": entries,
		"exits":   exits,
	})
}

// handlePeople lists known people. The optional name parameter filters by
// display name, compared diacritic-insensitively so "jiri" finds "Jiří".
func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.store.People(r.Context())
	if err != nil {
		s.logger.Error("load people failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load people")
		return
	}

	if name := r.URL.Query().Get("name"); name != "" {
		want := normalizePersonName(name)
		filtered := people[:0]
		for _, p := range people {
			if normalizePersonName(p.DisplayName) == want {
				filtered = append(filtered, p)
			}
		}
		people = filtered
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"people": people,
		"count":  len(people),
	})
}

func (s *Server) handleVisits(w http.ResponseWriter, r *http.Request) {
	limit := defaultVisitLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	visits, err := s.store.Visits(r.Context(), limit)
	if err != nil {
		s.logger.Error("load visits failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load visits")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"visits": visits,
		"count":  len(visits),
	})
}

// handleLive reports the current tracked set and run progress. Without an
// active run in this process it reports active=false.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		respondJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}

	resp := map[string]any{
		"active":   true,
		"tracked":  s.tracker.Snapshot(),
		"in_frame": s.tracker.InFrameCount(),
	}
	if s.progress != nil {
		resp["progress"] = s.progress.Snapshot()
	}
	respondJSON(w, http.StatusOK, resp)
}

type setNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")
	if personID == "" {
		respondError(w, http.StatusBadRequest, "missing person ID")
		return
	}

	var req setNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SetPersonName(r.Context(), personID, req.Name); err != nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"person_id": personID,
		"name":      req.Name,
	})
}

// handleEvents streams entry/exit records as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.hub.AddListener()
	defer s.hub.RemoveListener(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, string(rec.Action), rec)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = w.Write(jsonData)
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
