// Package server exposes the adjuster over HTTP for interactive previews.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/MeKo-Tech/colorboost/internal/adjust"
	"github.com/MeKo-Tech/colorboost/internal/imageio"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
	"github.com/MeKo-Tech/colorboost/internal/preview"
)

// Response headers describing a rendered frame.
const (
	HeaderGeneration = "X-Render-Generation"
	HeaderIntensity  = "X-Render-Intensity"
)

// Config configures the preview server.
type Config struct {
	PNGCompression string
	CacheControl   string
	// MaxUploadBytes caps request bodies (default: 32 MiB).
	MaxUploadBytes int64
	// MaxImages caps stored uploads; the oldest is evicted first (default: 16).
	MaxImages int
	// MaxSize downscales uploads so neither side exceeds it (0 keeps size).
	MaxSize int
	// Workers is the per-render goroutine count (0 uses all CPUs).
	Workers int
	// MaxConcurrentRenders bounds simultaneous renders (default: 4).
	MaxConcurrentRenders int
}

// Status reports server counters.
type Status struct {
	StoredImages  int   `json:"stored_images"`
	ActiveRenders int   `json:"active_renders"`
	TotalRendered int64 `json:"total_rendered"`
	TotalFailed   int64 `json:"total_failed"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// UploadResponse is returned after storing an image.
type UploadResponse struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Server renders adjusted images over HTTP.
type Server struct {
	cfg    Config
	enc    imageio.Options
	store  *Store
	logger *slog.Logger
	sem    chan struct{}

	activeRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
}

// New creates a preview server.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 16
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 4
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}

	level, err := imageio.ParseCompression(cfg.PNGCompression)
	if err != nil {
		return nil, err
	}
	enc := imageio.DefaultOptions()
	enc.PNGCompression = level

	return &Server{
		cfg:    cfg,
		enc:    enc,
		store:  NewStore(cfg.MaxImages),
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentRenders),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /adjust", s.handleAdjust)
	mux.HandleFunc("POST /images", s.handleUpload)
	mux.HandleFunc("GET /images/{id}", s.handleRender)
	mux.HandleFunc("DELETE /images/{id}", s.handleDelete)
	return mux
}

// Status returns the current counters.
func (s *Server) Status() Status {
	return Status{
		StoredImages:  s.store.Len(),
		ActiveRenders: int(s.activeRenders.Load()),
		TotalRendered: s.totalRendered.Load(),
		TotalFailed:   s.totalFailed.Load(),
		MaxConcurrent: cap(s.sem),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

// handleAdjust adjusts the request body image in one shot.
func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	level, err := parseLevel(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	img, _, ok := s.readImage(w, r)
	if !ok {
		return
	}

	if !s.acquire(r) {
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}
	defer s.release()

	if err := adjust.AdjustImageParallel(img, level.Factor(), s.cfg.Workers); err != nil {
		s.totalFailed.Add(1)
		s.log().Error("Adjustment failed", "error", err)
		http.Error(w, "adjustment failed", http.StatusInternalServerError)
		return
	}
	s.totalRendered.Add(1)

	w.Header().Set(HeaderIntensity, formatLevel(level))
	s.writePNG(w, img)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	img, format, ok := s.readImage(w, r)
	if !ok {
		return
	}

	session, err := preview.NewSession(img, s.cfg.Workers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, evicted := s.store.Add(session)
	if evicted != "" {
		s.log().Debug("Evicted stored image", "id", evicted)
	}

	b := session.Bounds()
	s.log().Info("Stored image", "id", id, "width", b.Dx(), "height", b.Dy(), "format", format)

	writeJSON(w, http.StatusCreated, UploadResponse{
		ID:     id,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
	})
}

// handleRender renders a stored image at the requested intensity. Every render
// starts from the pristine upload.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	level, err := parseLevel(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.acquire(r) {
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}
	frame, err := session.Render(level)
	s.release()
	if err != nil {
		s.totalFailed.Add(1)
		s.log().Error("Render failed", "id", r.PathValue("id"), "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	s.totalRendered.Add(1)

	if !session.Current(frame.Generation) {
		s.log().Debug("Serving superseded render", "id", r.PathValue("id"), "generation", frame.Generation)
	}

	w.Header().Set(HeaderGeneration, strconv.FormatUint(frame.Generation, 10))
	w.Header().Set(HeaderIntensity, formatLevel(level))
	s.writePNG(w, frame.Image)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readImage decodes the request body, replying with an error when it fails.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (*image.NRGBA, string, bool) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		http.Error(w, fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, "", false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	img, format, err := imageio.Decode(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return nil, "", false
		}
		http.Error(w, fmt.Sprintf("failed to decode image: %v", err), http.StatusBadRequest)
		return nil, "", false
	}

	return imageio.Fit(img, s.cfg.MaxSize), format, true
}

func (s *Server) writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, "png", s.enc); err != nil {
		s.log().Error("Failed to encode PNG", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}

func (s *Server) acquire(r *http.Request) bool {
	select {
	case s.sem <- struct{}{}:
		s.activeRenders.Add(1)
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *Server) release() {
	s.activeRenders.Add(-1)
	<-s.sem
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// parseLevel reads the intensity query parameter. A missing value means the
// neutral level.
func parseLevel(r *http.Request) (intensity.Level, error) {
	raw := r.URL.Query().Get("intensity")
	if raw == "" {
		return intensity.MinLevel, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid intensity %q: %w", raw, err)
	}
	return intensity.ParseLevel(v)
}

func formatLevel(l intensity.Level) string {
	return strconv.FormatFloat(float64(l), 'f', -1, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
