// Package api is the HTTP boundary: it turns multipart requests into
// selection modes and transform parameters, runs them and persists split
// outputs in the job store.
package api

import (
	"context"
	"net/http"

	"github.com/local/pdfdesk/internal/jobs"
	"github.com/local/pdfdesk/internal/metrics"
	"github.com/local/pdfdesk/internal/source"
	"github.com/local/pdfdesk/internal/statuscheck"
)

// maxMemory is how much of a multipart body is kept in memory before the
// rest spills to temporary files.
const maxMemory = 32 << 20

// RateLimiter decides whether a client may issue another request.
type RateLimiter interface {
	Allow(ctx context.Context, client string) bool
}

// Converter turns an office document on disk into PDF bytes.
type Converter interface {
	Available() bool
	ConvertToPDF(ctx context.Context, inputPath, workDir string) ([]byte, error)
}

// ReadinessChecker reports the state of the subsystems behind /ready.
type ReadinessChecker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
	Store   *jobs.Store
	Fetcher *source.Fetcher
	// Optional. Office endpoints answer 501 without a converter.
	Converter Converter
	// Optional. Requests are never limited without one.
	Limiter RateLimiter
	Checker ReadinessChecker
	// MaxUploadBytes caps the whole request body; zero disables the cap.
	MaxUploadBytes int64
}

type Server struct {
	deps Dependencies
}

func New(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// RegisterRoutes mounts every endpoint on mux. Trailing slashes are part
// of the public URLs, so patterns end in {$} to match them exactly.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/split/prepare/{$}", s.handleSplit)
	mux.HandleFunc("POST /api/extract-pages/{$}", s.handleExtract)
	mux.HandleFunc("POST /api/delete-pages/{$}", s.handleDelete)
	mux.HandleFunc("POST /api/reorder-pages/{$}", s.handleReorder)
	mux.HandleFunc("POST /api/merge/{$}", s.handleMerge)
	mux.HandleFunc("POST /api/rotate/{$}", s.handleRotate)
	mux.HandleFunc("POST /api/compress/{$}", s.transform("compressed.pdf", "compress", false, compress))
	mux.HandleFunc("POST /api/protect/{$}", s.transform("protected.pdf", "protect", false, protect))
	mux.HandleFunc("POST /api/unlock/{$}", s.transform("unlocked.pdf", "unlock", true, unlock))
	mux.HandleFunc("POST /api/watermark/{$}", s.transform("watermarked.pdf", "watermark", false, watermark))
	mux.HandleFunc("POST /api/number-pages/{$}", s.transform("numbered.pdf", "number", false, numberPages))
	mux.HandleFunc("POST /api/crop/{$}", s.transform("cropped.pdf", "crop", false, crop))
	mux.HandleFunc("POST /api/form-fill/{$}", s.transform("filled.pdf", "form_fill", false, formFill))
	mux.HandleFunc("POST /api/sign-pdf/{$}", s.handleSign)
	mux.HandleFunc("POST /api/auto-rename/{$}", s.handleAutoRename)
	mux.HandleFunc("POST /api/image-to-pdf/{$}", s.handleImageToPDF)
	mux.HandleFunc("POST /api/text-to-pdf/{$}", s.handleTextToPDF)
	mux.HandleFunc("POST /api/pdf-to-text/{$}", s.handlePDFToText)
	mux.HandleFunc("POST /api/word-to-pdf/{$}", s.handleOffice("word"))
	mux.HandleFunc("POST /api/excel-to-pdf/{$}", s.handleOffice("excel"))
	mux.HandleFunc("POST /api/ppt-to-pdf/{$}", s.handleOffice("ppt"))

	prefix := s.deps.Store.Prefix()
	mux.HandleFunc("GET "+prefix+"/{id}/{$}", s.handleJob)
	mux.HandleFunc("GET "+prefix+"/{id}/file/{filename}/{$}", s.handleJobFile)
	mux.HandleFunc("GET "+prefix+"/{id}/zip/{$}", s.handleJobZip)
}

// Handler returns the routes wrapped in access logging with request
// metrics, recovery, a body limit and, when configured, rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	var h http.Handler = mux
	if s.deps.Limiter != nil {
		h = rateLimit(s.deps.Limiter, h)
	}
	h = limitBody(s.deps.MaxUploadBytes, h)
	h = recoverer(h)
	return observe(h)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	sum := s.deps.Checker.Summary(r.Context())
	status := http.StatusOK
	if !sum.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, sum)
}
