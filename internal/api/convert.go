package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdesk/internal/converter"
	"github.com/local/pdfdesk/internal/filetype"
	"github.com/local/pdfdesk/internal/jobs"
	"github.com/local/pdfdesk/internal/metrics"
	"github.com/local/pdfdesk/internal/selection"
	"github.com/local/pdfdesk/internal/textextract"
)

// handlePDFToText returns the text layer of the selected pages, or of every
// page, as converted.txt. Scanned documents are rejected with 422.
func (s *Server) handlePDFToText(w http.ResponseWriter, r *http.Request) {
	_, doc, err := s.pdfInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var pages []int
	if text := strings.TrimSpace(r.FormValue("pages")); text != "" {
		groups, err := selection.Select(doc.PageCount(), selection.Exact(text))
		if err != nil {
			writeError(w, r, err)
			return
		}
		pages = selection.Flatten(groups)
	}

	ok, diag, err := textextract.HasExtractableText(doc.Bytes(), 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		log.Info().Int("pages", diag.TotalPages).Int("chars", diag.TotalCharsInSample).Ints("sampled", diag.SampledPages).Msg("no text layer")
		writeError(w, r, textextract.ErrNoText)
		return
	}
	text, err := textextract.Extract(doc.Bytes(), pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.IncArtifacts("text", 1)
	sendFile(w, "converted.txt", "text/plain; charset=utf-8", []byte(text))
}

// handleOffice converts an upload of the given family (word, excel, ppt)
// with LibreOffice. The upload and the output live in a scratch directory
// removed when the request ends.
func (s *Server) handleOffice(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			writeError(w, r, err)
			return
		}
		in, err := s.deps.Fetcher.One(r.Context(), r, "file")
		if err != nil {
			writeError(w, r, err)
			return
		}
		ext := strings.ToLower(filepath.Ext(in.Name))
		info := filetype.Detect(in.Data, in.Name)
		if !converter.InFamily(family, ext) || (info.Kind != filetype.Office && info.Kind != filetype.Text) {
			writeError(w, r, fmt.Errorf("%w: %s is not a %s document", errUnsupportedMedia, in.Name, family))
			return
		}
		if s.deps.Converter == nil || !s.deps.Converter.Available() {
			writeError(w, r, errConverterMissing)
			return
		}

		work, err := os.MkdirTemp("", jobs.ScratchPrefix)
		if err != nil {
			writeError(w, r, fmt.Errorf("create work dir: %w", err))
			return
		}
		defer os.RemoveAll(work)
		name := stem(in.Name, "document")
		input := filepath.Join(work, name+ext)
		if err := os.WriteFile(input, in.Data, 0o644); err != nil {
			writeError(w, r, fmt.Errorf("stage upload: %w", err))
			return
		}

		out, err := s.deps.Converter.ConvertToPDF(r.Context(), input, work)
		if err != nil {
			writeError(w, r, err)
			return
		}
		metrics.IncArtifacts(family, 1)
		sendPDF(w, name+".pdf", out)
	}
}
