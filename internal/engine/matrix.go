package engine

import (
	"math"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/raster"
)

// Matrix2D represents a 2D affine transformation matrix.
// Layout: [a, b, c, d, e, f] representing:
// | a  c  e |
// | b  d  f |
// | 0  0  1 |
//
// Where:
// - a, d = scale
// - b, c = skew/rotation
// - e, f = translation
type Matrix2D [6]float64

// Point is a world- or local-space position.
type Point = raster.Point

// Identity returns the identity matrix.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale returns a scale matrix.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Rotate returns a rotation matrix (angle in radians).
func Rotate(radians float64) Matrix2D {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return Matrix2D{cos, sin, -sin, cos, 0, 0}
}

// Shear returns a shear matrix: x' = x + shx*y, y' = shy*x + y.
func Shear(shx, shy float64) Matrix2D {
	return Matrix2D{1, shy, shx, 1, 0, 0}
}

// Multiply multiplies this matrix by another: result = m * other
// This applies 'other' first, then 'm'.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],        // a
		m[1]*other[0] + m[3]*other[1],        // b
		m[0]*other[2] + m[2]*other[3],        // c
		m[1]*other[2] + m[3]*other[3],        // d
		m[0]*other[4] + m[2]*other[5] + m[4], // e
		m[1]*other[4] + m[3]*other[5] + m[5], // f
	}
}

// TransformPoint applies the matrix to a point.
func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// TransformPoints applies the matrix to every point and returns a new slice.
func (m Matrix2D) TransformPoints(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i].X, out[i].Y = m.TransformPoint(p.X, p.Y)
	}
	return out
}

// Determinant returns the determinant of the matrix.
func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of the matrix, or Identity if not invertible.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if det == 0 {
		return Identity()
	}

	invDet := 1.0 / det
	return Matrix2D{
		m[3] * invDet,
		-m[1] * invDet,
		-m[2] * invDet,
		m[0] * invDet,
		(m[2]*m[5] - m[3]*m[4]) * invDet,
		(m[1]*m[4] - m[0]*m[5]) * invDet,
	}
}

// Translation returns (e, f).
func (m Matrix2D) Translation() (float64, float64) {
	return m[4], m[5]
}

// WithoutTranslation returns m with e and f zeroed.
func (m Matrix2D) WithoutTranslation() Matrix2D {
	m[4], m[5] = 0, 0
	return m
}

// RotationAngle is the angle of the first column, atan2(b, a).
func (m Matrix2D) RotationAngle() float64 {
	return math.Atan2(m[1], m[0])
}

// ColumnScales returns the lengths of the two basis columns.
func (m Matrix2D) ColumnScales() (float64, float64) {
	return math.Hypot(m[0], m[1]), math.Hypot(m[2], m[3])
}

// ToDocument converts to the document's matrix value.
func (m Matrix2D) ToDocument() document.Matrix {
	return document.Matrix(m)
}

// ToSlice returns the matrix as a float64 slice for JSON serialization.
func (m Matrix2D) ToSlice() []float64 {
	return []float64{m[0], m[1], m[2], m[3], m[4], m[5]}
}

// IsIdentity checks if this is the identity matrix (within epsilon).
func (m Matrix2D) IsIdentity() bool {
	const eps = 1e-10
	return math.Abs(m[0]-1) < eps &&
		math.Abs(m[1]) < eps &&
		math.Abs(m[2]) < eps &&
		math.Abs(m[3]-1) < eps &&
		math.Abs(m[4]) < eps &&
		math.Abs(m[5]) < eps
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoundsOf returns the bounding box of pts. ok is false for an empty set.
func BoundsOf(pts []Point) (r Rect, ok bool) {
	if len(pts) == 0 {
		return Rect{}, false
	}
	f := raster.FrameOf(pts)
	return Rect{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}, true
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Min returns the top-left corner.
func (r Rect) Min() (float64, float64) {
	return r.X, r.Y
}

// Frame converts the rect to a raster frame.
func (r Rect) Frame() raster.Frame {
	return raster.Frame{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
