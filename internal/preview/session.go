// Package preview renders adjusted copies of a pristine source image for
// interactive intensity controls.
package preview

import (
	"errors"
	"image"
	"sync/atomic"

	"github.com/MeKo-Tech/colorboost/internal/adjust"
	"github.com/MeKo-Tech/colorboost/internal/imageio"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
)

// Session holds an unmodified source image. Every render starts from the
// source, so successive intensity changes never compound.
type Session struct {
	source  *image.NRGBA
	workers int
	latest  atomic.Uint64
}

// Frame is one rendered adjustment.
type Frame struct {
	Image      *image.NRGBA
	Level      intensity.Level
	Generation uint64
}

// NewSession takes ownership of src. Callers must not mutate it afterwards.
func NewSession(src *image.NRGBA, workers int) (*Session, error) {
	if src == nil {
		return nil, errors.New("preview: nil source image")
	}
	return &Session{source: src, workers: workers}, nil
}

// Bounds returns the source image bounds.
func (s *Session) Bounds() image.Rectangle {
	return s.source.Bounds()
}

// Source returns a copy of the pristine image.
func (s *Session) Source() *image.NRGBA {
	return imageio.Clone(s.source)
}

// Render adjusts a copy of the source at level and tags it with a new
// generation number. Concurrent calls are safe.
func (s *Session) Render(level intensity.Level) (Frame, error) {
	gen := s.latest.Add(1)

	dst := imageio.Clone(s.source)
	if err := adjust.AdjustImageParallel(dst, level.Factor(), s.workers); err != nil {
		return Frame{}, err
	}

	return Frame{Image: dst, Level: level, Generation: gen}, nil
}

// Current reports whether gen is the most recently requested render.
// Callers drop frames that are no longer current.
func (s *Session) Current(gen uint64) bool {
	return s.latest.Load() == gen
}
