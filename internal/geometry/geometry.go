package geometry

import "math"

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Point is a 2D point in pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Center returns the center point of the box.
func (b Box) Center() Point {
	return Point{
		X: float64(b.X) + float64(b.W)/2,
		Y: float64(b.Y) + float64(b.H)/2,
	}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// CenterDistance returns the Euclidean distance between the centers of two boxes.
func CenterDistance(a, b Box) float64 {
	return Distance(a.Center(), b.Center())
}

// IoU calculates Intersection over Union between two boxes.
// Returns 0 when the boxes don't overlap or either has a non-positive area.
func IoU(a, b Box) float64 {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.W, b.X+b.W)
	y2 := min(a.Y+a.H, b.Y+b.H)

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := float64(x2-x1) * float64(y2-y1)

	areaA := float64(a.W) * float64(a.H)
	areaB := float64(b.W) * float64(b.H)
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// Pad grows the box by pad pixels on every side and clamps the result to the
// frame bounds [0, frameW) x [0, frameH).
func (b Box) Pad(pad, frameW, frameH int) Box {
	x1 := max(0, b.X-pad)
	y1 := max(0, b.Y-pad)
	x2 := min(frameW, b.X+b.W+pad)
	y2 := min(frameH, b.Y+b.H+pad)
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}
