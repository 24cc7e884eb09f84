// Package pagerange parses user-typed page range expressions such as
// "1-3, 5, 8-10" into clamped, 0-based inclusive intervals.
package pagerange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformed is wrapped by every ParseError.
var ErrMalformed = errors.New("malformed token")

// ParseError reports the token that could not be read as a page number.
type ParseError struct {
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q", ErrMalformed.Error(), e.Token)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

// Interval is a 0-based inclusive page span. Start <= End always holds.
type Interval struct {
	Start int
	End   int
}

// Len returns the number of pages covered.
func (iv Interval) Len() int { return iv.End - iv.Start + 1 }

// Pages returns the contiguous ascending run of indices.
func (iv Interval) Pages() []int {
	out := make([]int, 0, iv.Len())
	for i := iv.Start; i <= iv.End; i++ {
		out = append(out, i)
	}
	return out
}

// Token is one comma-separated element of an expression, 1-based and
// unclamped, exactly as typed. Single page numbers have Lo == Hi.
type Token struct {
	Lo, Hi int
	Range  bool
}

// Tokenize strips whitespace, splits on commas and reads each token as a
// page number or an a-b pair. Empty tokens are skipped.
func Tokenize(text string) ([]Token, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if s == "" {
		return nil, nil
	}

	var out []Token
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if a, b, ok := strings.Cut(part, "-"); ok {
			lo, err := atoi(a, part)
			if err != nil {
				return nil, err
			}
			hi, err := atoi(b, part)
			if err != nil {
				return nil, err
			}
			out = append(out, Token{Lo: lo, Hi: hi, Range: true})
			continue
		}
		n, err := atoi(part, part)
		if err != nil {
			return nil, err
		}
		out = append(out, Token{Lo: n, Hi: n})
	}
	return out, nil
}

// Parse converts text into intervals in the order the tokens appeared.
// Endpoints are clamped to [1, totalPages] and reversed pairs are swapped;
// duplicates and overlaps are kept. A non-positive totalPages yields no
// intervals once the tokens have been validated.
func Parse(text string, totalPages int) ([]Interval, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	if totalPages <= 0 || len(toks) == 0 {
		return []Interval{}, nil
	}
	out := make([]Interval, 0, len(toks))
	for _, t := range toks {
		out = append(out, Clamp(t, totalPages))
	}
	return out, nil
}

// Clamp turns a raw token into a valid interval for a document with
// totalPages >= 1 pages.
func Clamp(t Token, totalPages int) Interval {
	start := clamp(t.Lo, 1, totalPages)
	end := clamp(t.Hi, 1, totalPages)
	if end < start {
		start, end = end, start
	}
	return Interval{Start: start - 1, End: end - 1}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// atoi reads a decimal endpoint. Values too large for an int saturate and
// are clamped like any other out-of-range page.
func atoi(s, token string) (int, error) {
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return n, nil
	}
	if err != nil {
		return 0, &ParseError{Token: token, Err: err}
	}
	return n, nil
}
