package model

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 64, 64))
}

func TestClient_Detect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("expected multipart form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"faces_count": 2,
			"faces": [
				{"face_index": 0, "bbox": [100, 100, 150, 150], "det_score": 0.92},
				{"face_index": 1, "bbox": [-5, 10, 40, 60], "det_score": 0.71}
			],
			"model": "yolov8n-face"
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	detections, err := client.Detect(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}

	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}

	first := detections[0]
	if first.Box.X != 100 || first.Box.Y != 100 || first.Box.W != 50 || first.Box.H != 50 {
		t.Errorf("unexpected first box %+v", first.Box)
	}
	if first.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", first.Confidence)
	}

	// Negative coordinates are clamped to zero.
	second := detections[1]
	if second.Box.X != 0 {
		t.Errorf("expected clamped x 0, got %d", second.Box.X)
	}
}

func TestClient_Embed_PicksHighestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"faces_count": 2,
			"faces": [
				{"face_index": 0, "bbox": [0, 0, 10, 10], "det_score": 0.4, "embedding": [0.1, 0.2], "dim": 2},
				{"face_index": 1, "bbox": [20, 20, 40, 40], "det_score": 0.9, "embedding": [0.5, 0.6], "dim": 2}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	emb, err := client.Embed(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if emb == nil {
		t.Fatal("expected embedding, got nil")
	}
	if emb[0] != 0.5 || emb[1] != 0.6 {
		t.Errorf("expected highest-score face embedding, got %v", emb)
	}
}

func TestClient_Embed_NoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces_count": 0, "faces": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	emb, err := client.Embed(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if emb != nil {
		t.Errorf("expected nil embedding for empty crop, got %v", emb)
	}
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.Detect(context.Background(), testFrame()); err == nil {
		t.Error("expected error for 500 response")
	}
	if _, err := client.Embed(context.Background(), testFrame()); err == nil {
		t.Error("expected error for 500 response")
	}
}
