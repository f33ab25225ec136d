// Package evidence captures face crops for entry/exit events, organized as
// logs/{category}/{YYYY-MM-DD}/HHMMSS_<uid>.jpg.
package evidence

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"github.com/kozaktomas/face-tracker/internal/geometry"
)

// maxCropEdge bounds the longer edge of saved evidence crops; anything
// larger is downscaled before encoding.
const maxCropEdge = 320

// Saver writes evidence crops under a logs folder. A disabled Saver writes
// nothing and returns empty paths.
type Saver struct {
	logsFolder string
	enabled    bool
}

// NewSaver creates an evidence saver rooted at logsFolder.
func NewSaver(logsFolder string, enabled bool) *Saver {
	return &Saver{logsFolder: logsFolder, enabled: enabled}
}

// Crop extracts the region of the frame covered by the box as an
// independent image. Returns nil when the box has no area inside the frame.
func Crop(frame image.Image, box geometry.Box) image.Image {
	bounds := frame.Bounds()
	r := image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H).Intersect(bounds)
	if r.Empty() {
		return nil
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(out, out.Bounds(), frame, r.Min, xdraw.Src)
	return out
}

// Save writes the crop as a JPEG under the category directory and returns
// the file path. With saving disabled it returns ("", nil).
func (s *Saver) Save(img image.Image, category string) (string, error) {
	if !s.enabled || img == nil {
		return "", nil
	}

	img = shrink(img)

	now := time.Now()
	dir := filepath.Join(s.logsFolder, category, now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create evidence dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.jpg", now.Format("150405"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create evidence file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("encode evidence crop: %w", err)
	}
	return path, nil
}

// shrink downscales the image so its longer edge fits maxCropEdge.
func shrink(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if longest <= maxCropEdge {
		return img
	}

	scale := float64(maxCropEdge) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
