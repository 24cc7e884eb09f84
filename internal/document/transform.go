package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/sync/errgroup"
)

var (
	ErrTooFewInputs = errors.New("at least two PDF files are required")
	ErrBadPassword  = errors.New("incorrect password")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func run(fn func(rs io.ReadSeeker, w io.Writer) error, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(bytes.NewReader(data), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Merge concatenates docs in order. Every input is checked up front so a
// broken upload is reported as unreadable rather than as a merge failure.
func Merge(docs [][]byte) ([]byte, error) {
	if len(docs) < 2 {
		return nil, ErrTooFewInputs
	}

	var g errgroup.Group
	g.SetLimit(4)
	for i, d := range docs {
		g.Go(func() error {
			if _, err := api.PageCount(bytes.NewReader(d), newConfig()); err != nil {
				return fmt.Errorf("%w: input %d: %v", ErrUnreadable, i+1, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rsc := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		rsc[i] = bytes.NewReader(d)
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(rsc, &buf, false, newConfig()); err != nil {
		return nil, fmt.Errorf("merge %d documents: %w", len(docs), err)
	}
	return buf.Bytes(), nil
}

// Rotate turns the given 0-based pages clockwise by angle degrees. A nil
// pages slice rotates the whole document.
func Rotate(data []byte, angle int, pages []int) ([]byte, error) {
	if angle%90 != 0 {
		return nil, invalid("angle %d is not a multiple of 90", angle)
	}
	angle = ((angle % 360) + 360) % 360
	if angle == 0 {
		return data, nil
	}
	selected := make([]int, len(pages))
	for i, p := range pages {
		selected[i] = p + 1
	}
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.Rotate(rs, w, angle, pageSelection(selected), newConfig())
	}, data)
	if err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}
	return out, nil
}

// CompressionLevels lists the accepted Optimize levels.
var CompressionLevels = []string{"recommended", "strong", "extreme"}

// Optimize rewrites data through pdfcpu's optimizer. Every level removes
// redundant objects; extreme also deduplicates content streams.
func Optimize(data []byte, level string) ([]byte, error) {
	conf := newConfig()
	switch strings.ToLower(level) {
	case "", "recommended":
	case "strong":
		conf.WriteObjectStream = true
		conf.WriteXRefStream = true
	case "extreme":
		conf.WriteObjectStream = true
		conf.WriteXRefStream = true
		conf.OptimizeDuplicateContentStreams = true
	default:
		return nil, invalid("unknown compression level %q", level)
	}
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.Optimize(rs, w, conf)
	}, data)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	return out, nil
}

// Standard security handler permission bits (ISO 32000-1, table 22).
const (
	permPrint       model.PermissionFlags = 1 << 2
	permModify      model.PermissionFlags = 1 << 3
	permCopy        model.PermissionFlags = 1 << 4
	permAnnotate    model.PermissionFlags = 1 << 5
	permFillForms   model.PermissionFlags = 1 << 8
	permExtract     model.PermissionFlags = 1 << 9
	permAssemble    model.PermissionFlags = 1 << 10
	permPrintHighQ  model.PermissionFlags = 1 << 11
	permissionsBase model.PermissionFlags = 0xF0C0
	permissionsAll  model.PermissionFlags = 0xFFFC
)

var permissionNames = map[string]model.PermissionFlags{
	"print":    permPrint | permPrintHighQ,
	"modify":   permModify | permAssemble,
	"copy":     permCopy,
	"annotate": permAnnotate | permFillForms,
	"extract":  permExtract,
}

// ParsePermissions maps names like "print,copy" to permission bits. An
// empty list allows everything.
func ParsePermissions(names []string) (model.PermissionFlags, error) {
	if len(names) == 0 {
		return permissionsAll, nil
	}
	flags := permissionsBase
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		bits, ok := permissionNames[n]
		if !ok {
			return 0, invalid("unknown permission %q", n)
		}
		flags |= bits
	}
	return flags, nil
}

// Protect encrypts data with AES-256. A random owner password is used when
// ownerPW is empty.
func Protect(data []byte, userPW, ownerPW string, perms []string) ([]byte, error) {
	if userPW == "" {
		return nil, invalid("password is required")
	}
	flags, err := ParsePermissions(perms)
	if err != nil {
		return nil, err
	}
	if ownerPW == "" {
		ownerPW = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	conf := model.NewAESConfiguration(userPW, ownerPW, 256)
	conf.ValidationMode = model.ValidationRelaxed
	conf.Permissions = flags
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.Encrypt(rs, w, conf)
	}, data)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return out, nil
}

// Unlock removes encryption. Documents that are not encrypted are returned
// unchanged.
func Unlock(data []byte, password string) ([]byte, error) {
	conf := newConfig()
	conf.UserPW = password
	conf.OwnerPW = password
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return nil, ErrBadPassword
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if ctx.Encrypt == nil {
		return data, nil
	}

	conf = newConfig()
	conf.UserPW = password
	conf.OwnerPW = password
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.Decrypt(rs, w, conf)
	}, data)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return out, nil
}

// Watermark stamps text diagonally across every page.
func Watermark(data []byte, text string, opacity float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("watermark text is required")
	}
	if opacity <= 0 || opacity > 1 {
		return nil, invalid("opacity %.2f outside (0,1]", opacity)
	}
	desc := fmt.Sprintf("font:Helvetica-Bold, points:48, rot:45, op:%.2f, fillc:#808080, scale:1 abs", opacity)
	wm, err := api.TextWatermark(text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.AddWatermarks(rs, w, nil, wm, newConfig())
	}, data)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	return out, nil
}

var numberStyles = map[string]string{
	"1":           "%p",
	"page 1":      "Page %p",
	"page 1 of n": "Page %p of %P",
}

var numberPositions = map[string]struct {
	anchor string
	dx, dy int
}{
	"bottom-left":   {"bl", 20, 20},
	"bottom-center": {"bc", 0, 20},
	"bottom-right":  {"br", -20, 20},
	"top-left":      {"tl", 20, -20},
	"top-center":    {"tc", 0, -20},
	"top-right":     {"tr", -20, -20},
}

// NumberPages stamps a page number on every page. Position defaults to
// bottom-center and style to "1".
func NumberPages(data []byte, position, style string) ([]byte, error) {
	if position == "" {
		position = "bottom-center"
	}
	if style == "" {
		style = "1"
	}
	pos, ok := numberPositions[strings.ToLower(position)]
	if !ok {
		return nil, invalid("unknown position %q", position)
	}
	text, ok := numberStyles[strings.ToLower(style)]
	if !ok {
		return nil, invalid("unknown style %q", style)
	}
	desc := fmt.Sprintf("font:Helvetica, points:12, fillc:#000000, rot:0, scale:1 abs, pos:%s, off:%d %d",
		pos.anchor, pos.dx, pos.dy)
	wm, err := api.TextWatermark(text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("number pages: %w", err)
	}
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.AddWatermarks(rs, w, nil, wm, newConfig())
	}, data)
	if err != nil {
		return nil, fmt.Errorf("number pages: %w", err)
	}
	return out, nil
}

// ParseBox reads "x,y,w,h" in points, origin bottom-left, and returns the
// pdfcpu rectangle notation "[llx lly urx ury]".
func ParseBox(s string) (string, error) {
	parts := strings.Split(strings.ReplaceAll(s, " ", ""), ",")
	if len(parts) != 4 {
		return "", invalid("box %q must be x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return "", invalid("box %q: %q is not a number", s, p)
		}
		v[i] = f
	}
	if v[0] < 0 || v[1] < 0 || v[2] <= 0 || v[3] <= 0 {
		return "", invalid("box %q has a negative origin or empty size", s)
	}
	return fmt.Sprintf("[%g %g %g %g]", v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// Crop sets the crop box of every page.
func Crop(data []byte, box string) ([]byte, error) {
	rect, err := ParseBox(box)
	if err != nil {
		return nil, err
	}
	b, err := api.Box(rect, types.POINTS)
	if err != nil {
		return nil, invalid("box %q: %v", box, err)
	}
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.Crop(rs, w, nil, b, newConfig())
	}, data)
	if err != nil {
		return nil, fmt.Errorf("crop: %w", err)
	}
	return out, nil
}
