package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfdesk/internal/jobs"
)

func TestCommands(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MEDIA_ROOT", root)

	store, err := jobs.NewStore(jobs.Options{MediaRoot: root})
	require.NoError(t, err)
	keep, err := store.Create()
	require.NoError(t, err)
	_, err = store.WriteArtifact(keep.ID, "chunk_part_1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	old, err := store.Create()
	require.NoError(t, err)
	past := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(old.Dir, past, past))

	var out bytes.Buffer
	require.NoError(t, newApp(&out).Run([]string{"jobsweep", "ls", keep.ID}))
	assert.Contains(t, out.String(), "chunk_part_1.pdf")
	assert.Contains(t, out.String(), "/api/jobs/"+keep.ID+"/file/chunk_part_1.pdf/")

	out.Reset()
	require.NoError(t, newApp(&out).Run([]string{"jobsweep", "sweep", "--max-age", "24h"}))
	assert.Contains(t, out.String(), "removed 1 job(s)")
	assert.NoDirExists(t, old.Dir)
	assert.DirExists(t, keep.Dir)

	out.Reset()
	require.NoError(t, newApp(&out).Run([]string{"jobsweep", "rm", keep.ID}))
	assert.NoDirExists(t, keep.Dir)

	assert.Error(t, newApp(&out).Run([]string{"jobsweep", "ls", keep.ID}))
}
