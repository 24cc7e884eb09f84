package converter

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	for _, ext := range []string{".docx", "DOC", "xlsx", ".csv", "pptx", ".odp"} {
		assert.True(t, IsSupported(ext), ext)
	}
	for _, ext := range []string{".pdf", "", ".exe", "txt"} {
		assert.False(t, IsSupported(ext), ext)
	}
	assert.True(t, InFamily("word", ".RTF"))
	assert.False(t, InFamily("word", ".xlsx"))
	assert.False(t, InFamily("video", ".mp4"))
}

func TestExpectedOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/out", "report.final.pdf"), expectedOutputPath("/in/report.final.docx", "/out"))
}

// fakeSoffice writes a shell script that mimics soffice: it copies the input
// into --outdir as <base>.pdf.
func fakeSoffice(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	path := filepath.Join(t.TempDir(), "soffice")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const copyScript = `
out=""; in=""
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) out="$2"; shift 2;;
    -*) shift;;
    *) in="$1"; shift;;
  esac
done
base=$(basename "$in"); base="${base%.*}"
cp "$in" "$out/$base.pdf"
`

func TestConvertToPDF(t *testing.T) {
	lo := NewLibreOffice(Options{Binary: fakeSoffice(t, copyScript), MaxWorkers: 1})
	work := t.TempDir()
	in := filepath.Join(work, "letter.docx")
	require.NoError(t, os.WriteFile(in, []byte("%PDF-converted"), 0o644))

	out, err := lo.ConvertToPDF(context.Background(), in, work)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-converted", string(out))

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "profile and output dirs are removed")
}

func TestConvertToPDFErrors(t *testing.T) {
	work := t.TempDir()
	in := filepath.Join(work, "letter.docx")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0o644))

	lo := NewLibreOffice(Options{Binary: fakeSoffice(t, "echo 'Error: password required' >&2; exit 1\n")})
	_, err := lo.ConvertToPDF(context.Background(), in, work)
	assert.ErrorIs(t, err, ErrProtected)

	lo = NewLibreOffice(Options{Binary: fakeSoffice(t, "exec sleep 5\n"), Timeout: 100 * time.Millisecond})
	_, err = lo.ConvertToPDF(context.Background(), in, work)
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = lo.ConvertToPDF(context.Background(), filepath.Join(work, "movie.mp4"), work)
	assert.ErrorIs(t, err, ErrUnsupported)

	empty := filepath.Join(work, "empty.doc")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = lo.ConvertToPDF(context.Background(), empty, work)
	assert.Error(t, err)
}
