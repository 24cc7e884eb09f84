package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfdesk/internal/pdftest"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(w/2, h/2, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func attachmentName(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	return params["filename"]
}

func TestImageToPDF(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := do(h, multipartReq(t, "/api/image-to-pdf/", []upload{
		{"files", "a.png", pngBytes(t, 40, 20)},
		{"files", "b.png", pngBytes(t, 20, 40)},
	}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "images.pdf", attachmentName(t, rec))
	assert.Len(t, pages(t, rec.Body.Bytes()), 2)

	rec = do(h, multipartReq(t, "/api/image-to-pdf/", []upload{{"files", "doc.pdf", pdftest.Build(1)}}, nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestTextToPDF(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := do(h, multipartReq(t, "/api/text-to-pdf/", []upload{{"file", "notes.txt", []byte("first line\nsecond line\n")}}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "converted.pdf", attachmentName(t, rec))
	assert.Equal(t, []int{1}, pages(t, rec.Body.Bytes()))

	rec = do(h, multipartReq(t, "/api/text-to-pdf/", []upload{{"file", "a.png", pngBytes(t, 4, 4)}}, nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = do(h, multipartReq(t, "/api/text-to-pdf/", []upload{{"file", "blank.txt", []byte("\n \n")}}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFormFill(t *testing.T) {
	h, _ := newTestServer(t, nil)
	in, err := pdftest.Form("firstName", "age")
	require.NoError(t, err)

	rec := do(h, multipartReq(t, "/api/form-fill/", []upload{{"file", "form.pdf", in}},
		map[string]string{"fields": `{"firstName": "Ada", "age": 36}`}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "filled.pdf", attachmentName(t, rec))

	fields, err := api.FormFields(bytes.NewReader(rec.Body.Bytes()), model.NewDefaultConfiguration())
	require.NoError(t, err)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Name] = f.V
	}
	assert.Equal(t, map[string]string{"firstName": "Ada", "age": "36"}, got)

	for name, fields := range map[string]string{
		"not json":      `{"firstName":`,
		"not an object": `["Ada"]`,
		"nested object": `{"firstName": {"a": 1}}`,
		"unknown field": `{"nickname": "x"}`,
		"empty":         `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(h, multipartReq(t, "/api/form-fill/", []upload{{"file", "form.pdf", in}}, map[string]string{"fields": fields}))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestFieldString(t *testing.T) {
	for in, want := range map[any]string{"x": "x", true: "true", 2.5: "2.5", float64(7): "7"} {
		got, err := fieldString(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := fieldString([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a,b", got)
	got, err = fieldString(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = fieldString(map[string]any{})
	assert.Error(t, err)
}

func TestSignPDF(t *testing.T) {
	h, _ := newTestServer(t, nil)
	files := append(pdfFile(3), upload{"signature", "sig.png", pngBytes(t, 120, 40)})
	rec := do(h, multipartReq(t, "/api/sign-pdf/", files, map[string]string{"page": "2", "x": "20", "y": "30"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "signed.pdf", attachmentName(t, rec))
	assert.Equal(t, []int{1, 2, 3}, pages(t, rec.Body.Bytes()))

	rec = do(h, multipartReq(t, "/api/sign-pdf/", files, map[string]string{"page": "4"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, multipartReq(t, "/api/sign-pdf/", files, map[string]string{"x": "left"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, multipartReq(t, "/api/sign-pdf/", pdfFile(1), map[string]string{"signature_url": "http://example.com/sig.png"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	notImage := append(pdfFile(1), upload{"signature", "sig.txt", []byte("plain text")})
	rec = do(h, multipartReq(t, "/api/sign-pdf/", notImage, nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAutoRename(t *testing.T) {
	h, _ := newTestServer(t, nil)
	titled := pdftest.BuildTitled(2, "Q3: Report / Final?")
	rec := do(h, multipartReq(t, "/api/auto-rename/", []upload{{"file", "scan.pdf", titled}}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Q3 Report Final.pdf", attachmentName(t, rec))
	assert.Equal(t, titled, rec.Body.Bytes())

	rec = do(h, multipartReq(t, "/api/auto-rename/", pdfFile(2), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Page 1.pdf", attachmentName(t, rec))
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "a b-c_d", cleanName("  a\tb-c_d!! "))
	assert.Empty(t, cleanName("?!/"))
	long := cleanName(string(bytes.Repeat([]byte("x"), 80)))
	assert.Len(t, long, maxRenameRunes)
}
