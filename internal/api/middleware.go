package api

import (
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdesk/internal/document"
	"github.com/local/pdfdesk/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// recoverer turns panics into a generic 500. An *document.AssemblyFault is
// a selection bug and is logged as such.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			ev := log.Error().Str("method", r.Method).Str("path", r.URL.Path).Bytes("stack", debug.Stack())
			if err, ok := v.(error); ok {
				var fault *document.AssemblyFault
				if errors.As(err, &fault) {
					ev = ev.Int("index", fault.Index).Int("page_count", fault.PageCount)
				}
				ev.Err(err).Msg("panic while handling request")
			} else {
				ev.Interface("panic", v).Msg("panic while handling request")
			}
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: errInternal.Error()})
		}()
		next.ServeHTTP(w, r)
	})
}

// observe records request metrics and writes one access log line per
// request. The route label is the matched pattern, never the raw path. A
// panic that reaches it is recorded as a 500 and passed on.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			v := recover()
			status := rec.status
			switch {
			case v != nil:
				status = http.StatusInternalServerError
			case status == 0:
				status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			dur := time.Since(start)
			metrics.ObserveRequest(route, status, dur)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", rec.bytes).
				Dur("duration", dur).
				Msg("request")
			if v != nil {
				panic(v)
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

// limitBody caps request bodies. Oversized uploads surface as
// *http.MaxBytesError when the form is parsed.
func limitBody(max int64, next http.Handler) http.Handler {
	if max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > max {
			writeError(w, r, &http.MaxBytesError{Limit: max})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, max)
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies l to the API routes only; health, readiness and
// metrics stay reachable for health checks.
func rateLimit(l RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !l.Allow(r.Context(), clientIP(r)) {
			metrics.IncRateLimited()
			w.Header().Set("Retry-After", "60")
			writeError(w, r, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
