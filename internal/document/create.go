package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ImagesToPDF writes one page per image, each page sized to its image.
func ImagesToPDF(images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, invalid("at least one image is required")
	}
	rds := make([]io.Reader, len(images))
	for i, img := range images {
		rds[i] = bytes.NewReader(img)
	}
	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, rds, nil, newConfig()); err != nil {
		return nil, invalid("import images: %v", err)
	}
	return buf.Bytes(), nil
}

const (
	textLineRunes  = 90
	textPageLines  = 55
	textFontSize   = 11
	textPageMargin = 40
)

type textBox struct {
	Value  string   `json:"value"`
	Anchor string   `json:"anchor"`
	Dx     float64  `json:"dx"`
	Dy     float64  `json:"dy"`
	Font   textFont `json:"font"`
}

type textFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type textPage struct {
	Content struct {
		Text []textBox `json:"text"`
	} `json:"content"`
}

type textDoc struct {
	Paper string               `json:"paper"`
	Pages map[string]*textPage `json:"pages"`
}

// TextToPDF typesets plain text on A4 pages in Helvetica. Long lines are
// wrapped and characters outside Latin-1 are replaced with '?'.
func TextToPDF(text string) ([]byte, error) {
	lines := wrapText(latin1(text), textLineRunes)
	if len(lines) == 0 {
		return nil, invalid("text is empty")
	}
	doc := textDoc{Paper: "A4P", Pages: map[string]*textPage{}}
	for i := 0; i < len(lines); i += textPageLines {
		end := min(i+textPageLines, len(lines))
		p := &textPage{}
		p.Content.Text = []textBox{{
			Value:  strings.Join(lines[i:end], "\n"),
			Anchor: "tl",
			Dx:     textPageMargin,
			Dy:     -textPageMargin,
			Font:   textFont{Name: "Helvetica", Size: textFontSize},
		}}
		doc.Pages[strconv.Itoa(len(doc.Pages)+1)] = p
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(body), &buf, newConfig()); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return buf.Bytes(), nil
}

func latin1(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		case r > 0xff:
			return '?'
		}
		return r
	}, s)
}

// wrapText breaks text into lines of at most width runes, at spaces where
// possible. Trailing blank lines are dropped.
func wrapText(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		runes := []rune(strings.TrimRight(para, " "))
		if len(runes) == 0 {
			out = append(out, "")
			continue
		}
		for len(runes) > width {
			cut := width
			for i := width; i > width/2; i-- {
				if runes[i] == ' ' {
					cut = i
					break
				}
			}
			out = append(out, string(runes[:cut]))
			runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
		}
		out = append(out, string(runes))
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

// FillForm sets AcroForm fields matched by name, id or alternate name.
// Checkboxes take a boolean, list boxes a comma-separated list, every other
// field its value as typed. Unknown names are rejected.
func FillForm(data []byte, values map[string]string) ([]byte, error) {
	if len(values) == 0 {
		return nil, invalid("no form values given")
	}
	if _, err := Open(data); err != nil {
		return nil, err
	}
	fields, err := api.FormFields(bytes.NewReader(data), newConfig())
	if err != nil || len(fields) == 0 {
		return nil, invalid("document has no form fields")
	}

	var f form.Form
	used := map[string]bool{}
	for _, fd := range fields {
		key, v, ok := fieldValue(values, fd)
		if !ok {
			continue
		}
		used[key] = true
		switch fd.Typ {
		case form.FTText:
			f.TextFields = append(f.TextFields, &form.TextField{Pages: fd.Pages, ID: fd.ID, Name: fd.Name, Value: v, Locked: fd.Locked})
		case form.FTDate:
			f.DateFields = append(f.DateFields, &form.DateField{Pages: fd.Pages, ID: fd.ID, Name: fd.Name, Value: v, Locked: fd.Locked})
		case form.FTCheckBox:
			on, err := parseCheck(v)
			if err != nil {
				return nil, invalid("field %q: %v", key, err)
			}
			f.CheckBoxes = append(f.CheckBoxes, &form.CheckBox{Pages: fd.Pages, ID: fd.ID, Name: fd.Name, Value: on, Locked: fd.Locked})
		case form.FTRadioButtonGroup:
			f.RadioButtonGroups = append(f.RadioButtonGroups, &form.RadioButtonGroup{Pages: fd.Pages, ID: fd.ID, Name: fd.Name, Value: v, Locked: fd.Locked})
		case form.FTComboBox:
			f.ComboBoxes = append(f.ComboBoxes, &form.ComboBox{Pages: fd.Pages, ID: fd.ID, Name: fd.Name, Value: v, Locked: fd.Locked})
		case form.FTListBox:
			var vv []string
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					vv = append(vv, s)
				}
			}
			f.ListBoxes = append(f.ListBoxes, &form.ListBox{Pages: fd.Pages, ID: fd.ID, Name: fd.Name, Values: vv, Locked: fd.Locked})
		}
	}
	for k := range values {
		if !used[k] {
			return nil, invalid("unknown form field %q", k)
		}
	}

	body, err := json.Marshal(form.FormGroup{Forms: []form.Form{f}})
	if err != nil {
		return nil, err
	}
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.FillForm(rs, bytes.NewReader(body), w, newConfig())
	}, data)
	if err != nil {
		return nil, invalid("fill form: %v", err)
	}
	return out, nil
}

func fieldValue(values map[string]string, fd form.Field) (string, string, bool) {
	for _, k := range []string{fd.Name, fd.ID, fd.AltName} {
		if k == "" {
			continue
		}
		if v, ok := values[k]; ok {
			return k, v, true
		}
	}
	return "", "", false
}

func parseCheck(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes", "y", "x", "checked":
		return true, nil
	case "off", "no", "n", "":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// Signature box, in points. The image is scaled to fit inside it.
const (
	signWidth  = 150
	signHeight = 75
)

// Sign stamps a PNG or JPEG image on one page. x and y place the top-left
// corner of the image, measured in points from the top-left of the page.
func Sign(data, img []byte, page, pageCount int, x, y float64) ([]byte, error) {
	if page < 1 || page > pageCount {
		return nil, invalid("page %d outside 1..%d", page, pageCount)
	}
	if x < 0 || y < 0 {
		return nil, invalid("position %g,%g is negative", x, y)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return nil, invalid("signature is not a PNG or JPEG image")
	}
	scale := min(float64(signWidth)/float64(cfg.Width), float64(signHeight)/float64(cfg.Height))
	desc := fmt.Sprintf("pos:tl, off:%g %g, scale:%g abs, rot:0, op:1", x, -y, scale)
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(img), desc, true, false, types.POINTS)
	if err != nil {
		return nil, invalid("signature: %v", err)
	}
	out, err := run(func(rs io.ReadSeeker, w io.Writer) error {
		return api.AddWatermarks(rs, w, []string{strconv.Itoa(page)}, wm, newConfig())
	}, data)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return out, nil
}

// Title returns the document's Info title, or "" when it has none.
func Title(data []byte) (string, error) {
	info, err := api.PDFInfo(bytes.NewReader(data), "", nil, false, newConfig())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return strings.TrimSpace(info.Title), nil
}
