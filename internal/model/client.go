package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/face-tracker/internal/geometry"
)

const defaultModelURL = "http://localhost:8000"

// Client talks to the face model server over HTTP. The server exposes
// /detect for full-frame face detection and /embed/face for embedding
// extraction from a crop.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new model client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultModelURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// detectionResponse is the /detect payload: one entry per detected face.
type detectionResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
	Embedding []float32 `json:"embedding,omitempty"`
	Dim       int       `json:"dim,omitempty"`
}

// postMultipartImage encodes the image as JPEG, wraps it in a multipart form
// and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, img image.Image) ([]byte, error) {
	var imgBuf bytes.Buffer
	if err := jpeg.Encode(&imgBuf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imgBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Detect finds faces in a full frame.
func (c *Client) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	body, err := c.postMultipartImage(ctx, "/detect", frame)
	if err != nil {
		return nil, err
	}

	var detResp detectionResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	detections := make([]Detection, 0, len(detResp.Faces))
	for _, f := range detResp.Faces {
		if len(f.BBox) != 4 {
			continue
		}
		x1, y1 := int(f.BBox[0]), int(f.BBox[1])
		x2, y2 := int(f.BBox[2]), int(f.BBox[3])
		x1, y1 = max(0, x1), max(0, y1)
		detections = append(detections, Detection{
			Box:        geometry.Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1},
			Confidence: f.DetScore,
		})
	}
	return detections, nil
}

// Embed computes an appearance embedding for a face crop. When the server
// finds several faces in the crop, the one with the highest detection score
// wins. Returns (nil, nil) when the crop contains no confident face.
func (c *Client) Embed(ctx context.Context, crop image.Image) ([]float32, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", crop)
	if err != nil {
		return nil, err
	}

	var faceResp detectionResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var best *faceDetection
	for i := range faceResp.Faces {
		f := &faceResp.Faces[i]
		if len(f.Embedding) == 0 {
			continue
		}
		if best == nil || f.DetScore > best.DetScore {
			best = f
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.Embedding, nil
}
