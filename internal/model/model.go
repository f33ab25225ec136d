// Package model defines the capability interfaces for the external face
// detection and embedding models, plus an HTTP client speaking to an
// InsightFace-style model server.
package model

import (
	"context"
	"image"

	"github.com/kozaktomas/face-tracker/internal/geometry"
)

// Detection is one detected face in a frame. Ephemeral; not retained
// beyond the current frame.
type Detection struct {
	Box        geometry.Box
	Confidence float64
}

// Detector finds faces in a full frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)
}

// Embedder computes an appearance embedding for a face crop.
// Returns (nil, nil) when no confident face is found in the crop;
// absence is not an error.
type Embedder interface {
	Embed(ctx context.Context, crop image.Image) ([]float32, error)
}
