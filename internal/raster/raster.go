// Package raster holds single-channel sample grids produced by the
// rasterize operator and the per-pixel kernels applied to them.
package raster

import (
	"fmt"
	"image"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// ChannelAlpha is the only channel produced today.
const ChannelAlpha = "alpha"

// Point is a world-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame is the world-space rectangle a raster covers.
type Frame struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Raster is a row-major grid of 8-bit samples.
type Raster struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Channel string  `json:"channel"`
	Pix     []uint8 `json:"data"`
	Frame   Frame   `json:"frame"`
}

// New allocates a zeroed alpha raster.
func New(width, height int, frame Frame) *Raster {
	width = max(width, 0)
	height = max(height, 0)
	return &Raster{
		Width:   width,
		Height:  height,
		Channel: ChannelAlpha,
		Pix:     make([]uint8, width*height),
		Frame:   frame,
	}
}

// In reports whether (x, y) is inside the grid.
func (r *Raster) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.Width && y < r.Height
}

// At returns the sample at (x, y), or 0 outside the grid.
func (r *Raster) At(x, y int) uint8 {
	if !r.In(x, y) {
		return 0
	}
	return r.Pix[y*r.Width+x]
}

// Set writes the sample at (x, y). Writes outside the grid are ignored.
func (r *Raster) Set(x, y int, v uint8) {
	if r.In(x, y) {
		r.Pix[y*r.Width+x] = v
	}
}

// Count returns how many samples satisfy pred.
func (r *Raster) Count(pred func(uint8) bool) int {
	n := 0
	for _, v := range r.Pix {
		if pred(v) {
			n++
		}
	}
	return n
}

// Foreground counts non-zero samples.
func (r *Raster) Foreground() int {
	return r.Count(func(v uint8) bool { return v != 0 })
}

// Clone returns an independent copy.
func (r *Raster) Clone() *Raster {
	out := *r
	out.Pix = append([]uint8(nil), r.Pix...)
	return &out
}

// WorldToPixel maps a world-space point to grid coordinates.
func (r *Raster) WorldToPixel(x, y float64) (int, int, bool) {
	if r.Frame.Width <= 0 || r.Frame.Height <= 0 || r.Width == 0 || r.Height == 0 {
		return 0, 0, false
	}
	u := (x - r.Frame.X) / r.Frame.Width
	v := (y - r.Frame.Y) / r.Frame.Height
	if u < 0 || v < 0 || u > 1 || v > 1 {
		return 0, 0, false
	}
	px := min(int(u*float64(r.Width)), r.Width-1)
	py := min(int(v*float64(r.Height)), r.Height-1)
	return px, py, true
}

// ToImage copies the samples into an *image.Alpha.
func (r *Raster) ToImage() *image.Alpha {
	img := image.NewAlpha(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+r.Width], r.Pix[y*r.Width:(y+1)*r.Width])
	}
	return img
}

// EncodePNG writes the raster as a PNG, upscaled by an integer factor
// with nearest-neighbour sampling so pixels stay crisp.
func (r *Raster) EncodePNG(w io.Writer, scale int) error {
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("encode png: empty raster %dx%d", r.Width, r.Height)
	}
	src := r.ToImage()
	if scale <= 1 {
		return png.Encode(w, src)
	}

	dst := image.NewAlpha(image.Rect(0, 0, r.Width*scale, r.Height*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return png.Encode(w, dst)
}
