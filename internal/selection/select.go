// Package selection turns a page count and a selection mode into the
// groups of 0-based page indices that become output documents.
package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/local/pdfdesk/internal/pagerange"
)

var (
	ErrEmptySelection   = errors.New("no valid ranges")
	ErrInvalidChunkSize = errors.New("invalid chunk size")
	ErrUnknownMode      = errors.New("unknown selection mode")
)

// Kind identifies how a Mode is interpreted.
type Kind int

const (
	KindRanges Kind = iota
	KindExact
	KindEvery
	KindExclude
	KindOrder
	KindSingle
)

func (k Kind) String() string {
	switch k {
	case KindRanges:
		return "range"
	case KindExact:
		return "exact"
	case KindEvery:
		return "every"
	case KindExclude:
		return "exclude"
	case KindOrder:
		return "order"
	case KindSingle:
		return "single"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Mode is the selection request decided at the boundary. Text carries the
// range expression for the text-driven kinds, N the chunk size for KindEvery.
type Mode struct {
	Kind Kind
	Text string
	N    int
}

func Ranges(text string) Mode  { return Mode{Kind: KindRanges, Text: text} }
func Exact(text string) Mode   { return Mode{Kind: KindExact, Text: text} }
func Every(n int) Mode         { return Mode{Kind: KindEvery, N: n} }
func Exclude(text string) Mode { return Mode{Kind: KindExclude, Text: text} }
func Order(text string) Mode   { return Mode{Kind: KindOrder, Text: text} }
func Single() Mode             { return Mode{Kind: KindSingle} }

func (m Mode) String() string {
	switch m.Kind {
	case KindEvery:
		return fmt.Sprintf("every(%d)", m.N)
	case KindSingle:
		return "single"
	}
	return fmt.Sprintf("%s(%q)", m.Kind, m.Text)
}

// ParseKind maps the split endpoint's mode parameter to a Kind.
// An empty value selects ranges.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "range":
		return KindRanges, nil
	case "every":
		return KindEvery, nil
	case "single":
		return KindSingle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Group is one output document's worth of pages.
type Group struct {
	Label int
	Pages []int
}

// Select computes the groups for m over a document of totalPages pages.
// Malformed tokens are reported before the page count is considered.
func Select(totalPages int, m Mode) ([]Group, error) {
	var (
		groups []Group
		err    error
	)
	switch m.Kind {
	case KindRanges:
		groups, err = selectRanges(totalPages, m.Text)
	case KindExact:
		groups, err = selectExact(totalPages, m.Text)
	case KindEvery:
		groups, err = selectEvery(totalPages, m.N)
	case KindExclude:
		groups, err = selectExclude(totalPages, m.Text)
	case KindOrder:
		groups, err = selectOrder(totalPages, m.Text)
	case KindSingle:
		groups = selectSingle(totalPages)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, m.Kind)
	}
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrEmptySelection
	}
	return groups, nil
}

// Flatten returns the pages of a single-group selection, the shape used by
// extract, delete and reorder.
func Flatten(groups []Group) []int {
	if len(groups) == 1 {
		return groups[0].Pages
	}
	var out []int
	for _, g := range groups {
		out = append(out, g.Pages...)
	}
	return out
}

func selectRanges(total int, text string) ([]Group, error) {
	ivs, err := pagerange.Parse(text, total)
	if err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(ivs))
	for i, iv := range ivs {
		groups = append(groups, Group{Label: i + 1, Pages: iv.Pages()})
	}
	return groups, nil
}

func selectExact(total int, text string) ([]Group, error) {
	ivs, err := pagerange.Parse(text, total)
	if err != nil {
		return nil, err
	}
	var pages []int
	for _, iv := range ivs {
		pages = append(pages, iv.Pages()...)
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return []Group{{Label: 1, Pages: pages}}, nil
}

func selectEvery(total, n int) ([]Group, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, n)
	}
	var groups []Group
	for start := 0; start < total; start += n {
		end := min(start+n, total)
		pages := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			pages = append(pages, i)
		}
		groups = append(groups, Group{Label: len(groups) + 1, Pages: pages})
	}
	return groups, nil
}

// selectExclude keeps every page not named by text. Page numbers outside
// the document are ignored rather than rejected, and a reversed pair such as
// "4-2" names no pages.
func selectExclude(total int, text string) ([]Group, error) {
	toks, err := pagerange.Tokenize(text)
	if err != nil {
		return nil, err
	}
	excluded := func(page int) bool {
		for _, t := range toks {
			if page >= t.Lo && page <= t.Hi {
				return true
			}
		}
		return false
	}
	var pages []int
	for i := 0; i < total; i++ {
		if !excluded(i + 1) {
			pages = append(pages, i)
		}
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return []Group{{Label: 1, Pages: pages}}, nil
}

// selectOrder emits pages in the order typed. Ranges are clamped and
// expanded ascending; single pages outside the document are skipped.
func selectOrder(total int, text string) ([]Group, error) {
	toks, err := pagerange.Tokenize(text)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, nil
	}
	var pages []int
	for _, t := range toks {
		if t.Range {
			pages = append(pages, pagerange.Clamp(t, total).Pages()...)
			continue
		}
		if t.Lo >= 1 && t.Lo <= total {
			pages = append(pages, t.Lo-1)
		}
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return []Group{{Label: 1, Pages: pages}}, nil
}

func selectSingle(total int) []Group {
	groups := make([]Group, 0, max(total, 0))
	for i := 0; i < total; i++ {
		groups = append(groups, Group{Label: i + 1, Pages: []int{i}})
	}
	return groups
}
