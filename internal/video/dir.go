package video

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSource reads still frames from a directory in lexical filename order.
type DirSource struct {
	paths []string
	pos   int
}

// OpenDir creates a source over the jpeg/png files in dir. maxFrames <= 0
// means all frames.
func OpenDir(dir string, maxFrames int) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}
	sort.Strings(paths)

	if maxFrames > 0 && len(paths) > maxFrames {
		paths = paths[:maxFrames]
	}
	return &DirSource{paths: paths}, nil
}

func (d *DirSource) Next() (image.Image, error) {
	if d.pos >= len(d.paths) {
		return nil, io.EOF
	}
	path := d.paths[d.pos]
	d.pos++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

func (d *DirSource) TotalFrames() int { return len(d.paths) }

func (d *DirSource) Close() error { return nil }
