// Package video provides frame sources for the processing pipeline: a
// directory of still frames for tests and offline runs, and an ffmpeg-backed
// decoder for video files and streams.
package video

import (
	"fmt"
	"image"
	"os"
)

// fallbackTotalFrames is used for progress reporting when the source cannot
// report its length (live streams, containers without frame metadata).
const fallbackTotalFrames = 1000

// FrameSource yields decoded frames in presentation order. Next returns
// io.EOF when the source is exhausted.
type FrameSource interface {
	Next() (image.Image, error)
	TotalFrames() int
	Close() error
}

// Open creates a frame source for the given path. A directory is treated as
// a sequence of still frames; anything else is handed to ffmpeg.
func Open(path string, maxFrames int) (FrameSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open video source %s: %w", path, err)
	}
	if info.IsDir() {
		return OpenDir(path, maxFrames)
	}
	return OpenFFmpeg(path, maxFrames)
}
