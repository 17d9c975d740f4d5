package raster

import (
	"bytes"
	"image/png"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, x1, y1 float64) []Point {
	return []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func circle(r float64, n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{r * math.Cos(a), r * math.Sin(a)}
	}
	return pts
}

// bruteMorph is the direct square-window scan the separable passes must match.
func bruteMorph(src *Raster, radius int, pick func(a, b uint8) uint8) *Raster {
	out := src.Clone()
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			v := src.At(x, y)
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if src.In(x+dx, y+dy) {
						v = pick(v, src.At(x+dx, y+dy))
					}
				}
			}
			out.Set(x, y, v)
		}
	}
	return out
}

func randomRaster(w, h int, seed uint64) *Raster {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r := New(w, h, Frame{Width: float64(w), Height: float64(h)})
	for i := range r.Pix {
		r.Pix[i] = uint8(rng.IntN(256))
	}
	return r
}

func TestNewAndAccessors(t *testing.T) {
	r := New(3, 2, Frame{})
	assert.Equal(t, ChannelAlpha, r.Channel)
	assert.Len(t, r.Pix, 6)

	r.Set(2, 1, 9)
	r.Set(5, 5, 1)
	assert.Equal(t, uint8(9), r.At(2, 1))
	assert.Equal(t, uint8(0), r.At(-1, 0))
	assert.Equal(t, 1, r.Foreground())

	c := r.Clone()
	c.Set(0, 0, 7)
	assert.Equal(t, uint8(0), r.At(0, 0), "clone must not alias")
}

func TestContainsEvenOdd(t *testing.T) {
	sq := square(0, 0, 10, 10)
	assert.True(t, ContainsEvenOdd(sq, 5, 5))
	assert.False(t, ContainsEvenOdd(sq, 15, 5))
	assert.False(t, ContainsEvenOdd(sq, -1, -1))

	// Self-overlapping star: the centre is covered twice and is outside under even-odd.
	star := []Point{{0, -10}, {6, 8}, {-9, -3}, {9, -3}, {-6, 8}}
	assert.False(t, ContainsEvenOdd(star, 0, 0))
	assert.True(t, ContainsEvenOdd(star, 0, -7))

	// Degenerate polygon with a horizontal edge must not panic.
	flat := []Point{{0, 0}, {10, 0}, {5, 0}}
	assert.False(t, ContainsEvenOdd(flat, 5, 0))
}

func TestRasterize(t *testing.T) {
	t.Run("full square covers every pixel", func(t *testing.T) {
		pts := square(0, 0, 8, 8)
		r := Rasterize(pts, FrameOf(pts), 8, 8)
		assert.Equal(t, 64, r.Foreground())
	})

	t.Run("default resolution", func(t *testing.T) {
		pts := square(0, 0, 1, 1)
		r := Rasterize(pts, FrameOf(pts), 0, 0)
		assert.Equal(t, DefaultSize, r.Width)
		assert.Equal(t, DefaultSize, r.Height)
	})

	t.Run("circle leaves corners empty", func(t *testing.T) {
		pts := circle(10, 32)
		r := Rasterize(pts, FrameOf(pts), 8, 8)
		assert.Equal(t, uint8(0), r.At(0, 0))
		assert.Equal(t, uint8(255), r.At(4, 4))
		assert.Less(t, r.Foreground(), 64)
	})

	t.Run("fewer than three points is empty", func(t *testing.T) {
		pts := []Point{{0, 0}, {4, 4}}
		r := Rasterize(pts, FrameOf(pts), 4, 4)
		assert.Zero(t, r.Foreground())
	})
}

func TestThreshold(t *testing.T) {
	r := New(4, 1, Frame{})
	copy(r.Pix, []uint8{0, 127, 128, 255})

	bin := Threshold(r, 128, false)
	assert.Equal(t, []uint8{0, 0, 255, 255}, bin.Pix)

	inv := Threshold(r, 128, true)
	assert.Equal(t, []uint8{255, 255, 0, 0}, inv.Pix)

	assert.Equal(t, []uint8{0, 127, 128, 255}, r.Pix, "source untouched")
}

func TestSeparableMatchesDirectScan(t *testing.T) {
	for _, radius := range []int{1, 2, 3} {
		src := randomRaster(13, 9, uint64(radius))
		assert.Equal(t, bruteMorph(src, radius, minU8).Pix, Erode(src, radius, 1, KernelSquare).Pix, "erode r=%d", radius)
		assert.Equal(t, bruteMorph(src, radius, maxU8).Pix, Dilate(src, radius, 1, KernelSquare).Pix, "dilate r=%d", radius)
	}
}

func TestMorphologyEdges(t *testing.T) {
	// A fully set raster stays fully set under erosion because
	// out-of-bounds neighbours are ignored rather than treated as 0.
	full := New(5, 5, Frame{})
	for i := range full.Pix {
		full.Pix[i] = 255
	}
	assert.Equal(t, 25, Erode(full, 2, 1, KernelSquare).Foreground())

	single := New(5, 5, Frame{})
	single.Set(2, 2, 255)
	assert.Equal(t, 9, Dilate(single, 1, 1, KernelSquare).Foreground())
	assert.Equal(t, 5, Dilate(single, 1, 1, KernelCross).Foreground())
	assert.Equal(t, 25, Dilate(single, 1, 2, KernelSquare).Foreground())
	assert.Equal(t, 0, Erode(single, 1, 1, KernelCross).Foreground())

	assert.Equal(t, single.Pix, Erode(single, 0, 3, KernelSquare).Pix, "radius 0 is identity")
}

func TestRasterizeThresholdErodePipeline(t *testing.T) {
	pts := circle(10, 32)
	r := Rasterize(pts, FrameOf(pts), 8, 8)
	th := Threshold(r, 128, false)
	er := Erode(th, 1, 1, KernelSquare)
	assert.LessOrEqual(t, er.Foreground(), th.Foreground())
	assert.Positive(t, th.Foreground())
}

func TestWorldToPixel(t *testing.T) {
	r := New(10, 10, Frame{X: 100, Y: 100, Width: 20, Height: 20})
	x, y, ok := r.WorldToPixel(110, 119)
	require.True(t, ok)
	assert.Equal(t, 5, x)
	assert.Equal(t, 9, y)

	_, _, ok = r.WorldToPixel(90, 110)
	assert.False(t, ok)
}

func TestEncodePNG(t *testing.T) {
	r := New(4, 3, Frame{})
	r.Set(1, 1, 255)

	var buf bytes.Buffer
	require.NoError(t, r.EncodePNG(&buf, 3))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())

	_, _, _, a := img.At(4, 4).RGBA()
	assert.Equal(t, uint32(0xffff), a)

	assert.Error(t, New(0, 0, Frame{}).EncodePNG(&buf, 1))
}
