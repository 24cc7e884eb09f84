// Package textextract pulls the text layer out of PDFs with MuPDF (go-fitz)
// and decides whether a document has any text worth extracting.
package textextract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNoText is returned when a document's sampled pages carry no text layer,
// typically a scan.
var ErrNoText = errors.New("no extractable text")

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 300

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Doc abstracts a PDF document for text extraction.
type Doc interface {
	NumPage() int
	Text(i int) (string, error)
	Close() error
}

// Opener turns document bytes into a Doc.
type Opener interface {
	Open(data []byte) (Doc, error)
}

// defaultOpener is provided in fitz.go.
var defaultOpener Opener

// PageSample captures the result of sampling a single page.
type PageSample struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Diagnostics describes one extractability check.
type Diagnostics struct {
	TotalPages         int         `json:"total_pages"`
	SampledPages       []int       `json:"sampled_pages"`
	TotalCharsInSample int         `json:"total_chars_in_sample"`
	Threshold          int         `json:"threshold"`
	Samples             []PageSample `json:"samples"`
	HasExtractableText bool        `json:"has_extractable_text"`
}

// Extract returns the text of the given 0-based pages joined by blank
// lines. A nil pages slice extracts every page. Pages whose text cannot be
// read are logged and left empty.
func Extract(data []byte, pages []int) (string, error) {
	d, err := defaultOpener.Open(data)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer d.Close()

	if pages == nil {
		pages = make([]int, d.NumPage())
		for i := range pages {
			pages[i] = i
		}
	}

	var b strings.Builder
	for n, idx := range pages {
		if idx < 0 || idx >= d.NumPage() {
			return "", fmt.Errorf("page index %d outside document of %d pages", idx, d.NumPage())
		}
		text, err := d.Text(idx)
		if err != nil {
			log.Warn().Err(err).Int("page", idx+1).Msg("failed to extract text from page")
		}
		if n > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimRight(text, "\n"))
	}
	return b.String(), nil
}

// HasExtractableText samples a few pages and reports whether they hold at
// least threshold non-whitespace characters.
func HasExtractableText(data []byte, threshold int) (bool, *Diagnostics, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	d, err := defaultOpener.Open(data)
	if err != nil {
		return false, nil, fmt.Errorf("open PDF: %w", err)
	}
	defer d.Close()

	total := d.NumPage()
	diag := &Diagnostics{TotalPages: total, Threshold: threshold, SampledPages: sampleIndices(total)}
	for _, idx := range diag.SampledPages {
		sample := PageSample{PageIndex: idx}
		text, err := d.Text(idx)
		if err != nil {
			sample.Err = err.Error()
			diag.Samples = append(diag.Samples, sample)
			continue
		}
		sample.CharCount = len([]rune(whitespaceRegex.ReplaceAllString(text, "")))
		diag.TotalCharsInSample += sample.CharCount
		diag.Samples = append(diag.Samples, sample)
		if diag.TotalCharsInSample >= threshold {
			break
		}
	}
	diag.HasExtractableText = diag.TotalCharsInSample >= threshold
	return diag.HasExtractableText, diag, nil
}

// sampleIndices picks every page of short documents and first, quarter,
// middle, three-quarter and last page of longer ones.
func sampleIndices(total int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 5 {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	set := map[int]struct{}{0: {}, total / 4: {}, total / 2: {}, 3 * total / 4: {}, total - 1: {}}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
