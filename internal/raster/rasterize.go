package raster

import "math"

// DefaultSize is the rasterize resolution used when none is given.
const DefaultSize = 64

// edgeEpsilon keeps horizontal edges from dividing by zero.
const edgeEpsilon = 1e-9

// FrameOf returns the bounding frame of pts.
func FrameOf(pts []Point) Frame {
	if len(pts) == 0 {
		return Frame{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Frame{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Rasterize samples the closed polygon pts on a width x height grid
// spanning frame. A sample is 255 when its pixel centre is inside the
// polygon under the even-odd rule, else 0.
func Rasterize(pts []Point, frame Frame, width, height int) *Raster {
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}
	r := New(width, height, frame)
	if len(pts) < 3 {
		return r
	}

	stepX := frame.Width / float64(width)
	stepY := frame.Height / float64(height)
	for y := 0; y < height; y++ {
		sy := frame.Y + (float64(y)+0.5)*stepY
		for x := 0; x < width; x++ {
			sx := frame.X + (float64(x)+0.5)*stepX
			if ContainsEvenOdd(pts, sx, sy) {
				r.Pix[y*width+x] = 255
			}
		}
	}
	return r
}

// ContainsEvenOdd reports whether (x, y) lies inside the closed polygon
// pts using the even-odd rule.
func ContainsEvenOdd(pts []Point, x, y float64) bool {
	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > y) == (b.Y > y) {
			continue
		}
		dy := b.Y - a.Y
		if math.Abs(dy) < edgeEpsilon {
			dy = edgeEpsilon
		}
		if x < (b.X-a.X)*(y-a.Y)/dy+a.X {
			inside = !inside
		}
	}
	return inside
}
