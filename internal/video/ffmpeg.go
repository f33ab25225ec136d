package video

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegSource decodes frames by piping a video file or stream through
// ffmpeg as an MJPEG sequence.
type FFmpegSource struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	reader  *bufio.Reader
	total   int
	decoded int
	max     int
}

// probeStream is the subset of ffprobe stream output needed to size the run.
type probeStream struct {
	CodecType    string `json:"codec_type"`
	NBFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// OpenFFmpeg starts an ffmpeg decode of the given path. Requires ffmpeg
// (and ffprobe for frame counting) on PATH. maxFrames <= 0 means all frames.
func OpenFFmpeg(path string, maxFrames int) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}

	total := probeTotalFrames(path)
	if maxFrames > 0 && (total == 0 || maxFrames < total) {
		total = maxFrames
	}
	if total == 0 {
		total = fallbackTotalFrames
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"-",
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &FFmpegSource{
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 1<<20),
		total:  total,
		max:    maxFrames,
	}, nil
}

func (s *FFmpegSource) Next() (image.Image, error) {
	if s.max > 0 && s.decoded >= s.max {
		return nil, io.EOF
	}

	img, err := jpeg.Decode(s.reader)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode frame %d: %w", s.decoded, err)
	}
	s.decoded++
	return img, nil
}

func (s *FFmpegSource) TotalFrames() int { return s.total }

// Close terminates the decoder. Safe to call before the stream is drained.
func (s *FFmpegSource) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

// probeTotalFrames asks ffprobe for the video stream's frame count, deriving
// it from duration and frame rate when the container does not record it.
// Returns 0 when nothing usable is available.
func probeTotalFrames(path string) int {
	out, err := exec.CommandContext(context.Background(), "ffprobe",
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json", "--", path).Output()
	if err != nil {
		return 0
	}

	var result probeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return 0
	}
	return framesFromProbe(result)
}

func framesFromProbe(result probeResult) int {
	for _, s := range result.Streams {
		if !strings.EqualFold(s.CodecType, "video") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s.NBFrames)); err == nil && n > 0 {
			return n
		}

		fps := parseFrameRate(s.AvgFrameRate)
		dur := parseSeconds(s.Duration)
		if dur == 0 {
			dur = parseSeconds(result.Format.Duration)
		}
		if fps > 0 && dur > 0 {
			return int(math.Round(fps * dur))
		}
	}
	return 0
}

// parseFrameRate parses ffprobe's rational frame rate form, e.g. "30000/1001".
func parseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
