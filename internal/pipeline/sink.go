package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-tracker/internal/geometry"
	"github.com/kozaktomas/face-tracker/internal/track"
)

// FrameSink receives each processed frame together with the tracked set.
type FrameSink interface {
	Render(frame image.Image, tracked []track.PersonView, frameIndex int) error
}

// NopSink discards frames.
type NopSink struct{}

func (NopSink) Render(image.Image, []track.PersonView, int) error { return nil }

var inFrameColor = color.RGBA{G: 200, A: 255}
var coastingColor = color.RGBA{R: 200, G: 200, A: 255}

// JPEGSink writes annotated frames as numbered JPEG files. Tracked people
// matched in the frame get a green box, coasting tracks a yellow one at
// their last known position.
type JPEGSink struct {
	dir string
}

// NewJPEGSink creates the output directory and a sink writing into it.
func NewJPEGSink(dir string) (*JPEGSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JPEGSink{dir: dir}, nil
}

func (s *JPEGSink) Render(frame image.Image, tracked []track.PersonView, frameIndex int) error {
	annotated := image.NewRGBA(frame.Bounds())
	draw.Draw(annotated, annotated.Bounds(), frame, frame.Bounds().Min, draw.Src)

	for _, p := range tracked {
		if p.CurrentBox != nil {
			drawBox(annotated, *p.CurrentBox, inFrameColor)
		} else {
			drawBox(annotated, p.LastKnownBox, coastingColor)
		}
	}

	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.jpg", frameIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output frame: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, annotated, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("encode output frame: %w", err)
	}
	return nil
}

// drawBox paints a 2 px rectangle outline, clipped to the image.
func drawBox(img *image.RGBA, box geometry.Box, c color.RGBA) {
	r := image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < 2; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, clampY(r.Min.Y+t, img), c)
			img.SetRGBA(x, clampY(r.Max.Y-1-t, img), c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetRGBA(clampX(r.Min.X+t, img), y, c)
			img.SetRGBA(clampX(r.Max.X-1-t, img), y, c)
		}
	}
}

func clampX(x int, img *image.RGBA) int {
	b := img.Bounds()
	if x < b.Min.X {
		return b.Min.X
	}
	if x >= b.Max.X {
		return b.Max.X - 1
	}
	return x
}

func clampY(y int, img *image.RGBA) int {
	b := img.Bounds()
	if y < b.Min.Y {
		return b.Min.Y
	}
	if y >= b.Max.Y {
		return b.Max.Y - 1
	}
	return y
}
