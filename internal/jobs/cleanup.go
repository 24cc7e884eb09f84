package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ScratchPrefix names the temporary directories office conversions run in.
const ScratchPrefix = "pdfdesk-convert-"

// CleanupScratch removes conversion scratch directories in dir older than
// maxAge. Requests remove their own; this catches the ones a crash left.
func CleanupScratch(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), ScratchPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed
}

// RunSweeper removes expired jobs and stale scratch directories every
// interval until ctx is cancelled. onSweep, if set, gets the number of jobs
// removed by each pass.
func (s *Store) RunSweeper(ctx context.Context, interval, maxAge time.Duration, onSweep func(int)) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		n, err := s.Sweep(maxAge)
		if err != nil {
			log.Warn().Err(err).Msg("job sweep failed")
		}
		scratch := CleanupScratch(os.TempDir(), maxAge)
		if n > 0 || scratch > 0 {
			log.Info().Int("jobs", n).Int("scratch", scratch).Dur("max_age", maxAge).Msg("swept expired files")
		}
		if onSweep != nil {
			onSweep(n)
		}
	}
}
