package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdesk/internal/document"
	"github.com/local/pdfdesk/internal/metrics"
	"github.com/local/pdfdesk/internal/selection"
)

// selectOne runs a single-group selection over the uploaded PDF and sends
// the assembled document as name.
func (s *Server) selectOne(w http.ResponseWriter, r *http.Request, name string, mode func(*http.Request) selection.Mode) {
	_, doc, err := s.pdfInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m := mode(r)
	groups, err := selection.Select(doc.PageCount(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pages := selection.Flatten(groups)
	out, err := document.Assemble(doc, pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.AddPages(m.Kind.String(), len(pages))
	metrics.IncArtifacts(m.Kind.String(), 1)
	log.Info().Str("mode", m.String()).Int("source_pages", doc.PageCount()).Int("pages", len(pages)).Msg("pages assembled")
	sendPDF(w, name, out)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	s.selectOne(w, r, "extracted.pdf", func(r *http.Request) selection.Mode {
		return selection.Exact(r.FormValue("pages"))
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.selectOne(w, r, "deleted_pages.pdf", func(r *http.Request) selection.Mode {
		return selection.Exclude(r.FormValue("pages"))
	})
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	s.selectOne(w, r, "reordered.pdf", func(r *http.Request) selection.Mode {
		return selection.Order(r.FormValue("order"))
	})
}

// handleRotate turns the pages named by the optional pages field, or every
// page, by angle degrees clockwise.
func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	_, doc, err := s.pdfInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	angle, err := formInt(r, "angle", 90)
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
	out, err := document.Rotate(doc.Bytes(), angle, pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.IncArtifacts("rotate", 1)
	sendPDF(w, "rotated.pdf", out)
}
