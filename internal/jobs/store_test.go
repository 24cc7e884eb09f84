package jobs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Options{MediaRoot: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestCreateUniqueJobs(t *testing.T) {
	s := newStore(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		job, err := s.Create()
		require.NoError(t, err)
		assert.False(t, seen[job.ID])
		seen[job.ID] = true
		assert.DirExists(t, job.Dir)
		assert.Equal(t, filepath.Join(s.Root(), "jobs", job.ID), job.Dir)
	}
}

func TestGetUnknownJob(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{uuid.NewString(), "not-a-uuid", "../etc", ""} {
		_, err := s.Get(id)
		assert.ErrorIs(t, err, ErrJobNotFound, id)
	}
}

func TestWriteArtifactNeverOverwrites(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)

	art, err := s.WriteArtifact(job.ID, "extracted.pdf", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "extracted.pdf", art.Name)
	assert.Equal(t, int64(5), art.Size)
	assert.Equal(t, "/api/jobs/"+job.ID+"/file/extracted.pdf/", art.URL)

	_, err = s.WriteArtifact(job.ID, "extracted.pdf", []byte("second"))
	assert.ErrorIs(t, err, ErrArtifactExists)

	got, err := os.ReadFile(filepath.Join(job.Dir, "extracted.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestWriteArtifactSanitizesName(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)

	art, err := s.WriteArtifact(job.ID, "../../escape.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.pdf", art.Name)
	assert.FileExists(t, filepath.Join(job.Dir, "escape.pdf"))
	assert.NoFileExists(t, filepath.Join(s.Root(), "escape.pdf"))

	_, err = s.WriteArtifact(job.ID, "..", []byte("x"))
	assert.Error(t, err)
}

func TestWriteArtifactUnknownJob(t *testing.T) {
	s := newStore(t)
	_, err := s.WriteArtifact(uuid.NewString(), "a.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestWriteNext(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		art, err := s.WriteNext(job.ID, "chunk_part", ".pdf", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, "chunk_part_"+strconv.Itoa(want)+".pdf", art.Name)
	}

	// a gap left by a manual write is skipped past, never filled
	_, err = s.WriteArtifact(job.ID, "chunk_part_9.pdf", []byte("x"))
	require.NoError(t, err)
	art, err := s.WriteNext(job.ID, "chunk_part", "pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "chunk_part_10.pdf", art.Name)
}

func TestWriteNextConcurrent(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)

	const writers = 8
	names := make([]string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			art, err := s.WriteNext(job.ID, "page", ".pdf", []byte("x"))
			if assert.NoError(t, err) {
				names[i] = art.Name
			}
		}()
	}
	wg.Wait()

	uniq := map[string]bool{}
	for _, n := range names {
		uniq[n] = true
	}
	assert.Len(t, uniq, writers)
}

func TestListRecognizedOnly(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)

	_, err = s.WriteArtifact(job.ID, "b.pdf", []byte("bb"))
	require.NoError(t, err)
	_, err = s.WriteArtifact(job.ID, "notes.txt", []byte("t"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(job.Dir, "upload.docx"), []byte("d"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(job.Dir, "lo-profile"), 0o755))

	// equal timestamps fall back to name order
	now := time.Now()
	for _, n := range []string{"b.pdf", "notes.txt"} {
		require.NoError(t, os.Chtimes(filepath.Join(job.Dir, n), now, now))
	}
	_, err = s.WriteArtifact(job.ID, "a.pdf", []byte("a"))
	require.NoError(t, err)
	later := now.Add(time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(job.Dir, "a.pdf"), later, later))

	arts, err := s.List(job.ID)
	require.NoError(t, err)
	var names []string
	for _, a := range arts {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"b.pdf", "notes.txt", "a.pdf"}, names)
	assert.Equal(t, int64(2), arts[0].Size)
}

func TestListOrdersSuffixNumerically(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)

	now := time.Now()
	for i := 1; i <= 11; i++ {
		art, err := s.WriteNext(job.ID, "split_range", ".pdf", []byte("x"))
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(filepath.Join(job.Dir, art.Name), now, now))
	}

	arts, err := s.List(job.ID)
	require.NoError(t, err)
	require.Len(t, arts, 11)
	for i, a := range arts {
		assert.Equal(t, "split_range_"+strconv.Itoa(i+1)+".pdf", a.Name)
	}
}

func TestFileURLEscapesName(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)
	art, err := s.WriteArtifact(job.ID, "q?x#y 50%.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "q?x#y 50%.pdf", art.Name)
	assert.Equal(t, "/api/jobs/"+job.ID+"/file/q%3Fx%23y%2050%25.pdf/", art.URL)
}

func TestListMissingJob(t *testing.T) {
	s := newStore(t)
	_, err := s.List(uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestOpenRejectsEscapes(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)
	_, err = s.WriteArtifact(job.ID, "ok.pdf", []byte("content"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "secret.txt"), []byte("s"), 0o644))

	f, info, err := s.Open(job.ID, "ok.pdf")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(7), info.Size())
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "content", string(body))

	for _, name := range []string{"", ".", "..", "../../secret.txt", "..\\secret.txt", "sub/ok.pdf", "/etc/passwd", "missing.pdf"} {
		_, _, err := s.Open(job.ID, name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	_, _, err = s.Open(uuid.NewString(), "ok.pdf")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestOpenRejectsSymlinkOut(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)
	target := filepath.Join(s.Root(), "outside.pdf")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	if err := os.Symlink(target, filepath.Join(job.Dir, "link.pdf")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, _, err = s.Open(job.ID, "link.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)
	_, err = s.WriteArtifact(job.ID, "a.pdf", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(job.ID))
	assert.NoDirExists(t, job.Dir)
	assert.ErrorIs(t, s.Remove(job.ID), ErrJobNotFound)
}

func TestSweep(t *testing.T) {
	s := newStore(t)
	old, err := s.Create()
	require.NoError(t, err)
	fresh, err := s.Create()
	require.NoError(t, err)
	stray := filepath.Join(s.Root(), "jobs", "keep-me")
	require.NoError(t, os.Mkdir(stray, 0o755))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old.Dir, past, past))
	require.NoError(t, os.Chtimes(stray, past, past))

	n, err := s.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, old.Dir)
	assert.DirExists(t, fresh.Dir)
	assert.DirExists(t, stray)
}

func TestCustomPrefixAndExtensions(t *testing.T) {
	s, err := NewStore(Options{MediaRoot: t.TempDir(), URLPrefix: "/files/", Extensions: []string{"PDF"}})
	require.NoError(t, err)
	job, err := s.Create()
	require.NoError(t, err)
	_, err = s.WriteArtifact(job.ID, "a.txt", []byte("x"))
	require.NoError(t, err)
	art, err := s.WriteArtifact(job.ID, "b.PDF", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "/files/"+job.ID+"/file/b.PDF/", art.URL)
	assert.Equal(t, "/files/"+job.ID+"/zip/", s.ZipURL(job.ID))

	arts, err := s.List(job.ID)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "b.PDF", arts[0].Name)
}

func TestBuildZip(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)
	files := map[string]string{
		"split_part_2.pdf": "two",
		"split_part_1.pdf": "one",
		"readme.txt":       "text",
	}
	for name, body := range files {
		_, err := s.WriteArtifact(job.ID, name, []byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(job.Dir, "input.docx"), []byte("d"), 0o644))

	buf, err := s.BuildZip(job.ID)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, files[f.Name], string(body), f.Name)
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, []string{"readme.txt", "split_part_1.pdf", "split_part_2.pdf"}, names)
}

func TestBuildZipEmptyAndMissing(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(job.Dir, "input.docx"), []byte("d"), 0o644))

	_, err = s.BuildZip(job.ID)
	assert.ErrorIs(t, err, ErrEmptyJob)

	_, err = s.BuildZip(uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
}
