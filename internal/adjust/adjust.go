// Package adjust applies saturation/value enhancement to RGBA pixel buffers.
package adjust

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/colorboost/internal/colorspace"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
)

// BytesPerPixel is the size of one interleaved RGBA pixel.
const BytesPerPixel = 4

// ErrInvalidBuffer is returned when a buffer does not hold whole RGBA pixels.
var ErrInvalidBuffer = errors.New("invalid pixel buffer")

// Pixel enhances a single RGB triple by factor f.
//
// Channels are pre-scaled by f and clamped, converted to HSV, saturation and
// value are scaled by f and clamped to [0, 1], and the result is converted
// back and rounded to 8 bits.
func Pixel(r, g, b uint8, f intensity.Factor) (uint8, uint8, uint8) {
	k := float32(f)

	hsv := colorspace.ChannelsToHSV(
		clamp(float32(r)*k, 255),
		clamp(float32(g)*k, 255),
		clamp(float32(b)*k, 255),
	)

	hsv.S = clamp(hsv.S*k, 1)
	hsv.V = clamp(hsv.V*k, 1)

	out := hsv.RGB()
	return out.R, out.G, out.B
}

// Adjust enhances every pixel of an interleaved RGBA buffer in place.
// Alpha bytes and the buffer length are never changed.
func Adjust(pix []uint8, f intensity.Factor) error {
	if err := validate(pix, f); err != nil {
		return err
	}
	adjustRange(pix, f)
	return nil
}

// AdjustParallel is Adjust split across workers goroutines.
// Each worker owns a disjoint, pixel-aligned range of the buffer, so the
// result is identical to Adjust. workers <= 0 uses runtime.NumCPU().
func AdjustParallel(pix []uint8, f intensity.Factor, workers int) error {
	if err := validate(pix, f); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, part := range Partition(len(pix)/BytesPerPixel, workers) {
		wg.Add(1)
		go func(span []uint8) {
			defer wg.Done()
			adjustRange(span, f)
		}(pix[part.Start*BytesPerPixel : part.End*BytesPerPixel])
	}
	wg.Wait()

	return nil
}

// AdjustImage enhances an NRGBA image in place, honouring its stride and
// bounds so sub-images only touch their own rectangle.
func AdjustImage(img *image.NRGBA, f intensity.Factor) error {
	return AdjustImageParallel(img, f, 1)
}

// AdjustImageParallel is AdjustImage with rows spread across workers.
func AdjustImageParallel(img *image.NRGBA, f intensity.Factor, workers int) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidBuffer)
	}
	if !f.Valid() {
		return fmt.Errorf("%w: %v", intensity.ErrInvalidFactor, f)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil
	}

	rowBytes := b.Dx() * BytesPerPixel
	row := func(y int) []uint8 {
		off := img.PixOffset(b.Min.X, y)
		return img.Pix[off : off+rowBytes]
	}

	// Contiguous pixels can go through the flat path.
	if img.Stride == rowBytes {
		off := img.PixOffset(b.Min.X, b.Min.Y)
		pix := img.Pix[off : off+rowBytes*b.Dy()]
		if workers == 1 {
			return Adjust(pix, f)
		}
		return AdjustParallel(pix, f, workers)
	}

	var wg sync.WaitGroup
	for _, part := range Partition(b.Dy(), workers) {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				adjustRange(row(b.Min.Y+y), f)
			}
		}(part.Start, part.End)
	}
	wg.Wait()

	return nil
}

// Span is a half-open range [Start, End) of items.
type Span struct {
	Start, End int
}

// Partition splits n items into at most workers contiguous, non-empty spans.
func Partition(n, workers int) []Span {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	spans := make([]Span, 0, workers)
	size := n / workers
	rem := n % workers
	start := 0
	for i := 0; i < workers; i++ {
		end := start + size
		if i < rem {
			end++
		}
		spans = append(spans, Span{Start: start, End: end})
		start = end
	}
	return spans
}

func validate(pix []uint8, f intensity.Factor) error {
	if len(pix)%BytesPerPixel != 0 {
		return fmt.Errorf("%w: length %d is not a multiple of %d", ErrInvalidBuffer, len(pix), BytesPerPixel)
	}
	if !f.Valid() {
		return fmt.Errorf("%w: %v", intensity.ErrInvalidFactor, f)
	}
	return nil
}

func adjustRange(pix []uint8, f intensity.Factor) {
	for i := 0; i+BytesPerPixel <= len(pix); i += BytesPerPixel {
		p := pix[i : i+3 : i+3]
		p[0], p[1], p[2] = Pixel(p[0], p[1], p[2], f)
	}
}

// clamp limits x to [0, hi].
func clamp(x, hi float32) float32 {
	if x < 0 {
		return 0
	}
	if x > hi {
		return hi
	}
	return x
}
