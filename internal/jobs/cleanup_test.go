package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupScratch(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, ScratchPrefix+"old")
	fresh := filepath.Join(dir, ScratchPrefix+"new")
	other := filepath.Join(dir, "unrelated")
	for _, d := range []string{stale, fresh, other} {
		require.NoError(t, os.Mkdir(d, 0o755))
	}
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	assert.Equal(t, 1, CleanupScratch(dir, time.Hour))
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, other)
}

func TestRunSweeper(t *testing.T) {
	s := newStore(t)
	job, err := s.Create()
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(job.Dir, past, past))

	var swept atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunSweeper(ctx, 10*time.Millisecond, time.Minute, func(n int) { swept.Add(int64(n)) })
	}()

	assert.Eventually(t, func() bool { return swept.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.NoDirExists(t, job.Dir)
}
