package api

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/local/pdfdesk/internal/document"
	"github.com/local/pdfdesk/internal/jobs"
	"github.com/local/pdfdesk/internal/logger"
	"github.com/local/pdfdesk/internal/metrics"
	"github.com/local/pdfdesk/internal/selection"
)

type jobResponse struct {
	JobID   string          `json:"jobId"`
	Results []jobs.Artifact `json:"results"`
	ZipURL  string          `json:"zipUrl"`
}

// splitLabels is the name segment between the base name and the sequence
// number of each split output.
var splitLabels = map[selection.Kind]string{
	selection.KindRanges: "range",
	selection.KindEvery:  "part",
	selection.KindSingle: "page",
}

// splitMode builds the selection mode from the mode, range and every fields.
func splitMode(r *http.Request) (selection.Mode, error) {
	kind, err := selection.ParseKind(r.FormValue("mode"))
	if err != nil {
		return selection.Mode{}, err
	}
	switch kind {
	case selection.KindEvery:
		n, err := formInt(r, "every", 2)
		if err != nil {
			return selection.Mode{}, err
		}
		return selection.Every(n), nil
	case selection.KindSingle:
		return selection.Single(), nil
	}
	return selection.Ranges(r.FormValue("range")), nil
}

// maxBaseName leaves room for the "_range_NNNNN.pdf" suffix within the
// 255-byte file name limit of common filesystems.
const maxBaseName = 200

// baseName maps base_name onto letters, digits, '-', '_' and '.', replacing
// anything else with '_'. Names longer than maxBaseName bytes are rejected.
func baseName(r *http.Request) (string, error) {
	name := strings.Map(func(c rune) rune {
		switch {
		case unicode.IsLetter(c), unicode.IsDigit(c), c == '-', c == '_', c == '.':
			return c
		}
		return '_'
	}, strings.TrimSpace(r.FormValue("base_name")))
	if name == "" || strings.Trim(name, "._") == "" {
		return "split", nil
	}
	if len(name) > maxBaseName {
		return "", fmt.Errorf("%w: base_name is longer than %d bytes", errBadParameter, maxBaseName)
	}
	return name, nil
}

// handleSplit writes one PDF per selected group into a new job. Every
// parameter is checked before the job directory is created.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	_, doc, err := s.pdfInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mode, err := splitMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	base, err := baseName(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groups, err := selection.Select(doc.PageCount(), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	job, err := s.deps.Store.Create()
	if err != nil {
		writeError(w, r, err)
		return
	}

	jl := logger.ForJob(job.ID)
	prefix := fmt.Sprintf("%s_%s", base, splitLabels[mode.Kind])
	results := make([]jobs.Artifact, 0, len(groups))
	pages := 0
	for _, g := range groups {
		art, err := s.writeGroup(job.ID, prefix, doc, g)
		if err != nil {
			// outputs already written stay in the job
			jl.Error().Err(err).Int("group", g.Label).Int("written", len(results)).Msg("split failed")
			metrics.IncArtifacts("split", len(results))
			writeError(w, r, err)
			return
		}
		results = append(results, art)
		pages += len(g.Pages)
	}
	metrics.IncArtifacts("split", len(results))
	metrics.AddPages(mode.Kind.String(), pages)
	jl.Info().Str("mode", mode.String()).Int("pages", doc.PageCount()).Int("outputs", len(results)).Msg("split complete")

	writeJSON(w, http.StatusOK, jobResponse{
		JobID:   job.ID,
		Results: results,
		ZipURL:  s.deps.Store.ZipURL(job.ID),
	})
}

func (s *Server) writeGroup(jobID, prefix string, doc *document.PDF, g selection.Group) (jobs.Artifact, error) {
	data, err := document.Assemble(doc, g.Pages)
	if err != nil {
		return jobs.Artifact{}, err
	}
	return s.deps.Store.WriteNext(jobID, prefix, ".pdf", data)
}
