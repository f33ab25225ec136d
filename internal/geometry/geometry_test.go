package geometry

import (
	"math"
	"testing"
)

func TestCenterDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        Box
		b        Box
		expected float64
	}{
		{
			name:     "identical boxes",
			a:        Box{X: 100, Y: 100, W: 50, H: 50},
			b:        Box{X: 100, Y: 100, W: 50, H: 50},
			expected: 0,
		},
		{
			name:     "horizontal shift",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 30, Y: 0, W: 10, H: 10},
			expected: 30,
		},
		{
			name:     "diagonal shift",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 3, Y: 4, W: 10, H: 10},
			expected: 5,
		},
		{
			name:     "different sizes same center",
			a:        Box{X: 0, Y: 0, W: 100, H: 100},
			b:        Box{X: 25, Y: 25, W: 50, H: 50},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CenterDistance(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("CenterDistance(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        Box
		b        Box
		expected float64
	}{
		{
			name:     "identical boxes",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 0, Y: 0, W: 10, H: 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 20, Y: 20, W: 10, H: 10},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 5, Y: 5, W: 10, H: 10},
			expected: 25.0 / 175.0,
		},
		{
			name:     "one inside other",
			a:        Box{X: 0, Y: 0, W: 20, H: 20},
			b:        Box{X: 5, Y: 5, W: 10, H: 10},
			expected: 100.0 / 400.0,
		},
		{
			name:     "zero area box",
			a:        Box{X: 0, Y: 0, W: 0, H: 0},
			b:        Box{X: 0, Y: 0, W: 10, H: 10},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IoU(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("IoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		name     string
		box      Box
		pad      int
		frameW   int
		frameH   int
		expected Box
	}{
		{
			name:     "interior box",
			box:      Box{X: 100, Y: 100, W: 50, H: 50},
			pad:      10,
			frameW:   640,
			frameH:   480,
			expected: Box{X: 90, Y: 90, W: 70, H: 70},
		},
		{
			name:     "clamped at origin",
			box:      Box{X: 5, Y: 5, W: 50, H: 50},
			pad:      10,
			frameW:   640,
			frameH:   480,
			expected: Box{X: 0, Y: 0, W: 65, H: 65},
		},
		{
			name:     "clamped at frame edge",
			box:      Box{X: 600, Y: 440, W: 50, H: 50},
			pad:      10,
			frameW:   640,
			frameH:   480,
			expected: Box{X: 590, Y: 430, W: 50, H: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.box.Pad(tt.pad, tt.frameW, tt.frameH)
			if result != tt.expected {
				t.Errorf("Pad() = %v, want %v", result, tt.expected)
			}
		})
	}
}
