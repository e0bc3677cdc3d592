package voice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/observability"
)

// tempWAVMaxAge bounds how long an orphaned recognizer input may linger.
const tempWAVMaxAge = 10 * time.Minute

// Janitor deletes synthesized artifacts older than the retention window.
type Janitor struct {
	dir       string
	retention time.Duration
	metrics   *observability.Metrics
}

// NewJanitor returns a janitor for dir. A zero retention disables pruning.
func NewJanitor(dir string, retention time.Duration, metrics *observability.Metrics) *Janitor {
	return &Janitor{dir: dir, retention: retention, metrics: metrics}
}

// Prune removes expired files and returns how many were deleted.
func (j *Janitor) Prune(now time.Time) (int, error) {
	if j.retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		maxAge := j.retention
		if strings.HasPrefix(e.Name(), TempWAVPrefix) && tempWAVMaxAge < maxAge {
			maxAge = tempWAVMaxAge
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		p := filepath.Join(j.dir, e.Name())
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", p).Msg("failed to prune audio artifact")
			continue
		}
		removed++
	}
	j.metrics.AddPrunedArtifacts(removed)
	return removed, nil
}

// Start runs Prune every interval until ctx is done.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	if j.retention <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := j.Prune(now)
				if err != nil {
					log.Error().Err(err).Str("dir", j.dir).Msg("audio janitor pass failed")
					continue
				}
				if n > 0 {
					log.Info().Int("removed", n).Str("dir", j.dir).Msg("pruned audio artifacts")
				}
			}
		}
	}()
}
