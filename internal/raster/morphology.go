package raster

import "sync"

// Kernel is the neighbourhood shape used by Erode and Dilate.
type Kernel string

const (
	KernelSquare Kernel = "square"
	KernelCross  Kernel = "cross"
)

// Threshold maps every sample to 255 when it is >= level and to 0
// otherwise. With inverse set the two outputs swap.
func Threshold(src *Raster, level float64, inverse bool) *Raster {
	out := src.Clone()
	hi, lo := uint8(255), uint8(0)
	if inverse {
		hi, lo = lo, hi
	}
	for i, v := range src.Pix {
		if float64(v) >= level {
			out.Pix[i] = hi
		} else {
			out.Pix[i] = lo
		}
	}
	return out
}

// Erode replaces each sample by the minimum of its neighbourhood.
// Neighbours outside the grid are ignored.
func Erode(src *Raster, radius, iterations int, kernel Kernel) *Raster {
	return morph(src, radius, iterations, kernel, minU8)
}

// Dilate replaces each sample by the maximum of its neighbourhood.
// Neighbours outside the grid are ignored.
func Dilate(src *Raster, radius, iterations int, kernel Kernel) *Raster {
	return morph(src, radius, iterations, kernel, maxU8)
}

func minU8(a, b uint8) uint8 { return min(a, b) }
func maxU8(a, b uint8) uint8 { return max(a, b) }

func morph(src *Raster, radius, iterations int, kernel Kernel, pick func(a, b uint8) uint8) *Raster {
	out := src.Clone()
	if radius <= 0 || out.Width == 0 || out.Height == 0 {
		return out
	}
	iterations = max(iterations, 1)

	temp := getTempBuffer(len(out.Pix))
	defer putTempBuffer(temp)

	for range iterations {
		if kernel == KernelCross {
			crossPass(out, temp, radius, pick)
		} else {
			// A square window is the product of a row window and a
			// column window, so two 1D passes give the same result.
			rowPass(out.Pix, temp, out.Width, out.Height, radius, pick)
			columnPass(temp, out.Pix, out.Width, out.Height, radius, pick)
		}
	}
	return out
}

// rowPass reduces each row window [x-r, x+r] from src into dst.
func rowPass(src, dst []uint8, width, height, radius int, pick func(a, b uint8) uint8) {
	for y := 0; y < height; y++ {
		row := src[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			lo := max(x-radius, 0)
			hi := min(x+radius, width-1)
			v := row[lo]
			for k := lo + 1; k <= hi; k++ {
				v = pick(v, row[k])
			}
			dst[y*width+x] = v
		}
	}
}

// columnPass reduces each column window [y-r, y+r] from src into dst.
func columnPass(src, dst []uint8, width, height, radius int, pick func(a, b uint8) uint8) {
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			lo := max(y-radius, 0)
			hi := min(y+radius, height-1)
			v := src[lo*width+x]
			for k := lo + 1; k <= hi; k++ {
				v = pick(v, src[k*width+x])
			}
			dst[y*width+x] = v
		}
	}
}

// crossPass reduces the plus-shaped neighbourhood of every sample.
func crossPass(r *Raster, temp []uint8, radius int, pick func(a, b uint8) uint8) {
	w, h := r.Width, r.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := r.Pix[y*w+x]
			for k := 1; k <= radius; k++ {
				if x-k >= 0 {
					v = pick(v, r.Pix[y*w+x-k])
				}
				if x+k < w {
					v = pick(v, r.Pix[y*w+x+k])
				}
				if y-k >= 0 {
					v = pick(v, r.Pix[(y-k)*w+x])
				}
				if y+k < h {
					v = pick(v, r.Pix[(y+k)*w+x])
				}
			}
			temp[y*w+x] = v
		}
	}
	copy(r.Pix, temp)
}

type byteBuffer struct {
	data []uint8
}

var tempBufferPool = sync.Pool{
	New: func() any {
		return &byteBuffer{data: make([]uint8, 256*256)}
	},
}

// getTempBuffer returns a scratch slice of exactly size bytes.
func getTempBuffer(size int) []uint8 {
	wrapper := tempBufferPool.Get().(*byteBuffer)
	if len(wrapper.data) < size {
		tempBufferPool.Put(wrapper)
		return make([]uint8, size)
	}
	return wrapper.data[:size]
}

func putTempBuffer(buf []uint8) {
	if cap(buf) <= 4096*4096 {
		tempBufferPool.Put(&byteBuffer{data: buf[:cap(buf)]})
	}
}
