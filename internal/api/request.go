package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/local/pdfdesk/internal/document"
	"github.com/local/pdfdesk/internal/filetype"
	"github.com/local/pdfdesk/internal/source"
)

// parseForm reads the multipart body. A body over the size limit keeps its
// *http.MaxBytesError so it maps to 413.
func parseForm(r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return maxErr
		}
		return fmt.Errorf("%w: %v", errBadForm, err)
	}
	return nil
}

// pdfInput reads the "file" upload (or file_url) and opens it as a PDF.
func (s *Server) pdfInput(r *http.Request) (source.Input, *document.PDF, error) {
	in, err := s.pdfBytes(r)
	if err != nil {
		return source.Input{}, nil, err
	}
	doc, err := document.Open(in.Data)
	if err != nil {
		return source.Input{}, nil, err
	}
	return in, doc, nil
}

// pdfBytes is pdfInput without opening the document, for operations that
// take encrypted input.
func (s *Server) pdfBytes(r *http.Request) (source.Input, error) {
	if err := parseForm(r); err != nil {
		return source.Input{}, err
	}
	in, err := s.deps.Fetcher.One(r.Context(), r, "file")
	if err != nil {
		return source.Input{}, err
	}
	if err := requirePDF(in); err != nil {
		return source.Input{}, err
	}
	return in, nil
}

func requirePDF(in source.Input) error {
	if info := filetype.Detect(in.Data, in.Name); info.Kind != filetype.PDF {
		return fmt.Errorf("%w: %s is %s, expected a PDF", errUnsupportedMedia, in.Name, info.MIMEType)
	}
	return nil
}

func formString(r *http.Request, key, def string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return def
}

func formInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", errBadParameter, key, v)
	}
	return n, nil
}

func formFloat(r *http.Request, key string, def float64) (float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", errBadParameter, key, v)
	}
	return f, nil
}

// formList accepts both repeated fields and a comma-separated value.
func formList(r *http.Request, key string) []string {
	var out []string
	if r.MultipartForm != nil {
		for _, v := range r.MultipartForm.Value[key] {
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

// sendFile answers with data as a download named name.
func sendFile(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func sendPDF(w http.ResponseWriter, name string, data []byte) {
	sendFile(w, name, "application/pdf", data)
}

// stem is the upload name without directory or extension, falling back to
// def for names that carry nothing usable.
func stem(name, def string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == ".." {
		return def
	}
	return base
}
