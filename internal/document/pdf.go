// Package document assembles new PDFs from page selections and wraps the
// pdfcpu calls behind the page-level transforms.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrUnreadable wraps pdfcpu failures while reading an uploaded document.
	ErrUnreadable = errors.New("unreadable PDF")
	// ErrInvalidParameter wraps every rejected transform parameter.
	ErrInvalidParameter = errors.New("invalid parameter")
)

func init() {
	// keep pdfcpu from creating ~/.config/pdfcpu on first use
	api.DisableConfigDir()
}

func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Source is the document provider the assembler copies pages from.
type Source interface {
	PageCount() int
	// Collect writes a new document holding the given 1-based pages in
	// order; pages may repeat.
	Collect(w io.Writer, pages []int) error
}

// PDF is a Source over an in-memory PDF. The bytes are never modified.
type PDF struct {
	data  []byte
	pages int
	conf  *model.Configuration
}

// Open reads the page count of data.
func Open(data []byte) (*PDF, error) {
	conf := newConfig()
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return &PDF{data: data, pages: n, conf: conf}, nil
}

func (p *PDF) PageCount() int { return p.pages }

// Bytes returns the source document.
func (p *PDF) Bytes() []byte { return p.data }

func (p *PDF) Collect(w io.Writer, pages []int) error {
	return api.Collect(bytes.NewReader(p.data), w, pageSelection(pages), p.conf)
}

func pageSelection(pages []int) []string {
	if len(pages) == 0 {
		return nil
	}
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}
