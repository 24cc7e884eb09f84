package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdesk/internal/converter"
	"github.com/local/pdfdesk/internal/document"
	"github.com/local/pdfdesk/internal/jobs"
	"github.com/local/pdfdesk/internal/pagerange"
	"github.com/local/pdfdesk/internal/selection"
	"github.com/local/pdfdesk/internal/source"
	"github.com/local/pdfdesk/internal/textextract"
)

var (
	errBadForm          = errors.New("invalid multipart form")
	errBadParameter     = errors.New("invalid parameter")
	errUnsupportedMedia = errors.New("unsupported file type")
	errConverterMissing = errors.New("LibreOffice is not available on this server")
	errInternal         = errors.New("internal server error")
	errRateLimited      = errors.New("rate limit exceeded")
)

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error to the HTTP status and the message shown to the
// client. Unknown errors are reported generically.
func statusFor(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, source.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, pagerange.ErrMalformed),
		errors.Is(err, selection.ErrEmptySelection),
		errors.Is(err, selection.ErrInvalidChunkSize),
		errors.Is(err, selection.ErrUnknownMode),
		errors.Is(err, document.ErrInvalidParameter),
		errors.Is(err, document.ErrTooFewInputs),
		errors.Is(err, document.ErrBadPassword),
		errors.Is(err, source.ErrMissingFile),
		errors.Is(err, source.ErrBadURL),
		errors.Is(err, source.ErrRemoteDisabled),
		errors.Is(err, errBadForm),
		errors.Is(err, errBadParameter):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, jobs.ErrEmptyJob):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, jobs.ErrArtifactExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, errUnsupportedMedia), errors.Is(err, converter.ErrUnsupported):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, document.ErrUnreadable),
		errors.Is(err, textextract.ErrNoText),
		errors.Is(err, converter.ErrProtected):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, errConverterMissing):
		return http.StatusNotImplemented, err.Error()
	case errors.Is(err, source.ErrFetch):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, converter.ErrTimeout):
		return http.StatusGatewayTimeout, err.Error()
	}
	return http.StatusInternalServerError, errInternal.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures and answers with {"error": msg}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Error: msg})
}
