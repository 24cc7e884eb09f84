package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdesk/internal/document"
	"github.com/local/pdfdesk/internal/metrics"
)

// transformFunc rewrites a whole document using request parameters.
type transformFunc func(r *http.Request, data []byte) ([]byte, error)

// transform runs fn over the uploaded PDF and sends the result as name.
// Encrypted input is only accepted by operations that open it themselves,
// so the document is not parsed up front when raw is set.
func (s *Server) transform(name, kind string, raw bool, fn transformFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data []byte
		if raw {
			in, err := s.pdfBytes(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			data = in.Data
		} else {
			_, doc, err := s.pdfInput(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			data = doc.Bytes()
		}
		out, err := fn(r, data)
		if err != nil {
			writeError(w, r, err)
			return
		}
		metrics.IncArtifacts(kind, 1)
		log.Info().Str("op", kind).Int("in_bytes", len(data)).Int("out_bytes", len(out)).Msg("transform complete")
		sendPDF(w, name, out)
	}
}

func compress(r *http.Request, data []byte) ([]byte, error) {
	return document.Optimize(data, formString(r, "level", "recommended"))
}

func protect(r *http.Request, data []byte) ([]byte, error) {
	return document.Protect(data, r.FormValue("password"), r.FormValue("owner_password"), formList(r, "permissions"))
}

func unlock(r *http.Request, data []byte) ([]byte, error) {
	return document.Unlock(data, r.FormValue("password"))
}

func watermark(r *http.Request, data []byte) ([]byte, error) {
	opacity, err := formFloat(r, "opacity", 0.3)
	if err != nil {
		return nil, err
	}
	return document.Watermark(data, r.FormValue("text"), opacity)
}

func numberPages(r *http.Request, data []byte) ([]byte, error) {
	return document.NumberPages(data, r.FormValue("position"), r.FormValue("style"))
}

func crop(r *http.Request, data []byte) ([]byte, error) {
	return document.Crop(data, r.FormValue("box"))
}

// formFill reads "fields" as a JSON object of field name to value. Lists
// become comma-separated values; booleans and numbers are formatted.
func formFill(r *http.Request, data []byte) ([]byte, error) {
	raw := strings.TrimSpace(r.FormValue("fields"))
	if raw == "" {
		raw = "{}"
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: fields must be a JSON object: %v", errBadParameter, err)
	}
	values := make(map[string]string, len(fields))
	for k, v := range fields {
		s, err := fieldString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", errBadParameter, k, err)
		}
		values[k] = s
	}
	return document.FillForm(data, values)
}

func fieldString(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			s, err := fieldString(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("unsupported value %v", v)
}

// handleMerge concatenates every "files" upload, then every file_url, in
// the order given.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, r, err)
		return
	}
	ins, err := s.deps.Fetcher.Many(r.Context(), r, "files")
	if err != nil {
		writeError(w, r, err)
		return
	}
	docs := make([][]byte, len(ins))
	for i, in := range ins {
		if err := requirePDF(in); err != nil {
			writeError(w, r, err)
			return
		}
		docs[i] = in.Data
	}
	out, err := document.Merge(docs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.IncArtifacts("merge", 1)
	log.Info().Int("inputs", len(docs)).Int("out_bytes", len(out)).Msg("merge complete")
	sendPDF(w, "merged.pdf", out)
}
