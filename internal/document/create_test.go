package document

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfdesk/internal/pdftest"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	doc, err := Open(data)
	require.NoError(t, err)
	return doc.PageCount()
}

func TestImagesToPDF(t *testing.T) {
	out, err := ImagesToPDF([][]byte{pngImage(t, 40, 20), pngImage(t, 30, 60)})
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, out))

	_, err = ImagesToPDF(nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = ImagesToPDF([][]byte{[]byte("not an image")})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"aaa bbb", "ccc"}, wrapText("aaa bbb ccc", 8))
	assert.Equal(t, []string{"abcdefgh", "ij"}, wrapText("abcdefghij", 8))
	assert.Equal(t, []string{"one", "", "two"}, wrapText("one\n\ntwo\n\n", 8))
	assert.Empty(t, wrapText(" \n \n", 8))
}

func TestLatin1(t *testing.T) {
	assert.Equal(t, "café ? x y", latin1("café 世 x\ty\x00"))
	assert.Equal(t, "a\nb", latin1("a\r\nb"))
}

func TestTextToPDF(t *testing.T) {
	out, err := TextToPDF("hello\nworld")
	require.NoError(t, err)
	assert.Equal(t, 1, pageCount(t, out))

	long := strings.Repeat("line\n", textPageLines*2+1)
	out, err = TextToPDF(long)
	require.NoError(t, err)
	assert.Equal(t, 3, pageCount(t, out))

	_, err = TextToPDF(" \n\n ")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestFillForm(t *testing.T) {
	in, err := pdftest.Form("firstName", "lastName")
	require.NoError(t, err)

	out, err := FillForm(in, map[string]string{"firstName": "Ada", "lastName": "Lovelace"})
	require.NoError(t, err)
	fields, err := api.FormFields(bytes.NewReader(out), newConfig())
	require.NoError(t, err)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Name] = f.V
	}
	assert.Equal(t, "Ada", got["firstName"])
	assert.Equal(t, "Lovelace", got["lastName"])

	_, err = FillForm(in, map[string]string{"middleName": "x"})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = FillForm(in, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = FillForm(pdftest.Build(1), map[string]string{"a": "b"})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = FillForm([]byte("garbage"), map[string]string{"a": "b"})
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestParseCheck(t *testing.T) {
	for _, v := range []string{"on", "Yes", "true", "1", "x"} {
		on, err := parseCheck(v)
		require.NoError(t, err, v)
		assert.True(t, on, v)
	}
	on, err := parseCheck("off")
	require.NoError(t, err)
	assert.False(t, on)
	_, err = parseCheck("maybe")
	assert.Error(t, err)
}

func TestSign(t *testing.T) {
	in := pdftest.Build(2)
	out, err := Sign(in, pngImage(t, 300, 100), 2, 2, 10, 10)
	require.NoError(t, err)
	pages, err := pdftest.Pages(out)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages)

	_, err = Sign(in, pngImage(t, 10, 10), 3, 2, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = Sign(in, pngImage(t, 10, 10), 1, 2, -1, 10)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = Sign(in, []byte("GIF89a"), 1, 2, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestTitle(t *testing.T) {
	title, err := Title(pdftest.BuildTitled(1, "Quarterly Report"))
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Report", title)

	title, err = Title(pdftest.Build(1))
	require.NoError(t, err)
	assert.Empty(t, title)

	_, err = Title([]byte("garbage"))
	assert.ErrorIs(t, err, ErrUnreadable)
}
