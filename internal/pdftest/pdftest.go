// Package pdftest builds small, valid PDF documents for tests. Page i
// (1-based) has a MediaBox width of BaseWidth+i points and carries the
// text "Page i", so both page order and text extraction can be asserted.
package pdftest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	BaseWidth = 200
	Height    = 300
)

// Build returns an n-page PDF.
func Build(n int) []byte { return build(n, "") }

// BuildTitled is Build with an Info dictionary carrying title.
func BuildTitled(n int, title string) []byte { return build(n, title) }

func build(n int, title string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := new(bytes.Buffer)
	for i := 0; i < n; i++ {
		// pages start at object 4, each followed by its content stream
		fmt.Fprintf(kids, "%d 0 R ", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", bytes.TrimSpace(kids.Bytes()), n))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i := 1; i <= n; i++ {
		content := fmt.Sprintf("BT /F1 18 Tf 20 150 Td (Page %d) Tj ET", i)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			Width(i), Height, len(offsets)+2))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	info := ""
	if title != "" {
		obj(fmt.Sprintf("<< /Title (%s) >>", title))
		info = fmt.Sprintf(" /Info %d 0 R", len(offsets))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, info, xref)
	return buf.Bytes()
}

// Width is the MediaBox width of 1-based page i.
func Width(i int) int { return BaseWidth + i }

// PageNumbers maps widths read back from a document to 1-based source
// page numbers.
func PageNumbers(widths []float64) []int {
	out := make([]int, len(widths))
	for i, w := range widths {
		out[i] = int(w) - BaseWidth
	}
	return out
}

// Form returns a one-page A4 document with a text field per name.
func Form(names ...string) ([]byte, error) {
	type field struct {
		ID    string     `json:"id"`
		Value string     `json:"value"`
		Pos   [2]float64 `json:"pos"`
		Width float64    `json:"width"`
	}
	fields := make([]field, len(names))
	for i, n := range names {
		fields[i] = field{ID: n, Pos: [2]float64{100, float64(700 - 30*i)}, Width: 200}
	}
	doc := map[string]any{
		"paper": "A4P",
		"fonts": map[string]any{
			"input": map[string]any{"name": "Helvetica", "size": 12},
			"label": map[string]any{"name": "Helvetica", "size": 12},
		},
		"pages": map[string]any{
			"1": map[string]any{"content": map[string]any{"textfield": fields}},
		},
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	api.DisableConfigDir()
	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(body), &buf, model.NewDefaultConfiguration()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Pages reads data back through pdfcpu and returns the 1-based source page
// number of every page, in document order.
func Pages(data []byte) ([]int, error) {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	widths := make([]float64, len(dims))
	for i, d := range dims {
		widths[i] = d.Width
	}
	return PageNumbers(widths), nil
}
