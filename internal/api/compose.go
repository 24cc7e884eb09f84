package api

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdesk/internal/document"
	"github.com/local/pdfdesk/internal/filetype"
	"github.com/local/pdfdesk/internal/metrics"
	"github.com/local/pdfdesk/internal/textextract"
)

// handleImageToPDF turns every "files" upload into one page of images.pdf,
// in the order given.
func (s *Server) handleImageToPDF(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, r, err)
		return
	}
	ins, err := s.deps.Fetcher.Many(r.Context(), r, "files")
	if err != nil {
		writeError(w, r, err)
		return
	}
	images := make([][]byte, len(ins))
	for i, in := range ins {
		if info := filetype.Detect(in.Data, in.Name); info.Kind != filetype.Image {
			writeError(w, r, fmt.Errorf("%w: %s is %s, expected an image", errUnsupportedMedia, in.Name, info.MIMEType))
			return
		}
		images[i] = in.Data
	}
	out, err := document.ImagesToPDF(images)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.IncArtifacts("image", 1)
	log.Info().Int("images", len(images)).Int("out_bytes", len(out)).Msg("images converted")
	sendPDF(w, "images.pdf", out)
}

// handleTextToPDF typesets a plain text upload.
func (s *Server) handleTextToPDF(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.deps.Fetcher.One(r.Context(), r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if info := filetype.Detect(in.Data, in.Name); info.Kind != filetype.Text {
		writeError(w, r, fmt.Errorf("%w: %s is %s, expected plain text", errUnsupportedMedia, in.Name, info.MIMEType))
		return
	}
	out, err := document.TextToPDF(string(in.Data))
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.IncArtifacts("text_to_pdf", 1)
	sendPDF(w, "converted.pdf", out)
}

// handleSign stamps the "signature" image on one page. The signature must
// be uploaded; it is never fetched from a URL.
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	_, doc, err := s.pdfInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sig, err := s.deps.Fetcher.Upload(r, "signature")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if info := filetype.Detect(sig.Data, sig.Name); info.Kind != filetype.Image {
		writeError(w, r, fmt.Errorf("%w: signature is %s, expected an image", errUnsupportedMedia, info.MIMEType))
		return
	}
	page, err := formInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	x, err := formFloat(r, "x", 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	y, err := formFloat(r, "y", 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := document.Sign(doc.Bytes(), sig.Data, page, doc.PageCount(), x, y)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.IncArtifacts("sign", 1)
	log.Info().Int("page", page).Float64("x", x).Float64("y", y).Msg("document signed")
	sendPDF(w, "signed.pdf", out)
}

const maxRenameRunes = 50

// handleAutoRename returns the document unchanged under a name taken from
// its title, or from the first line of text on page one.
func (s *Server) handleAutoRename(w http.ResponseWriter, r *http.Request) {
	_, doc, err := s.pdfInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := suggestName(doc.Bytes())
	metrics.IncArtifacts("rename", 1)
	log.Info().Str("name", name).Msg("document renamed")
	sendPDF(w, name, doc.Bytes())
}

func suggestName(data []byte) string {
	title, err := document.Title(data)
	if err != nil {
		log.Debug().Err(err).Msg("read title")
	}
	if n := cleanName(title); n != "" {
		return n + ".pdf"
	}
	text, err := textextract.Extract(data, []int{0})
	if err != nil {
		log.Debug().Err(err).Msg("read first page")
	}
	for _, line := range strings.Split(text, "\n") {
		if n := cleanName(line); n != "" {
			return n + ".pdf"
		}
	}
	return "renamed.pdf"
}

// cleanName keeps letters, digits, spaces, '-' and '_', collapses runs of
// spaces and truncates to maxRenameRunes.
func cleanName(s string) string {
	kept := strings.Map(func(c rune) rune {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '-' || c == '_' {
			return c
		}
		if unicode.IsSpace(c) {
			return ' '
		}
		return -1
	}, s)
	runes := []rune(strings.Join(strings.Fields(kept), " "))
	if len(runes) > maxRenameRunes {
		runes = runes[:maxRenameRunes]
	}
	return strings.TrimSpace(string(runes))
}
