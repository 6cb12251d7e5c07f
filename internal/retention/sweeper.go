// Package retention moves expired reports into the trash directory and
// purges trash entries that have outlived their grace period. Files are
// never deleted directly from the active area.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"reportsigner/internal/clock"
	"reportsigner/internal/config"
	"reportsigner/internal/model"
	"reportsigner/internal/storage"
)

// Sweeper runs the two-phase retention sweep. A scheduled tick that finds
// a sweep already in progress is skipped; a manual RunOnce waits its turn.
type Sweeper struct {
	store storage.FileStore
	cfg   config.CleanupConfig
	clock clock.Clock
	out   io.Writer

	mu sync.Mutex
}

func NewSweeper(cfg config.CleanupConfig, store storage.FileStore, clk clock.Clock, out io.Writer) *Sweeper {
	if out == nil {
		out = os.Stdout
	}
	return &Sweeper{store: store, cfg: cfg, clock: clk, out: out}
}

// Start launches the periodic sweep loop. It returns immediately; the loop
// stops when ctx is cancelled. When cleanup is disabled it does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logJSON(map[string]any{
			"component": "retention",
			"event":     "cleanup_disabled",
			"msg":       "scheduled cleanup is disabled",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.mu.TryLock() {
					s.logJSON(map[string]any{
						"component": "retention",
						"event":     "cleanup_skipped",
						"msg":       "previous sweep still running",
					})
					continue
				}
				stats, err := s.sweep()
				s.mu.Unlock()
				if err != nil {
					s.logJSON(map[string]any{
						"component":     "retention",
						"event":         "cleanup_failed",
						"status":        "error",
						"error_message": err.Error(),
					})
					continue
				}
				s.logJSON(map[string]any{
					"component":        "retention",
					"event":            "cleanup_done",
					"total_files":      stats.TotalFiles,
					"total_size_bytes": stats.TotalSizeBytes,
					"trash_files":      stats.TrashFiles,
					"trash_size_bytes": stats.TrashSizeBytes,
				})
			}
		}
	}()
}

// RunOnce performs a full sweep immediately and returns the storage usage
// after it completes. Concurrent callers are serialized.
func (s *Sweeper) RunOnce() (model.CleanupStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep()
}

func (s *Sweeper) sweep() (model.CleanupStats, error) {
	now := s.clock.Now()

	moved := s.moveExpiredToTrash(now)
	purged := s.purgeTrash(now)
	s.pruneEmptyDirs()

	stats, err := s.store.Stats()
	if err != nil {
		return model.CleanupStats{}, err
	}

	s.logJSON(map[string]any{
		"component":    "retention",
		"event":        "sweep_pass",
		"moved_files":  moved,
		"purged_files": purged,
	})
	return stats, nil
}

// moveExpiredToTrash renames active files older than the retention window
// into the trash directory, prefixing each with the sweep timestamp so
// identical filenames from different date partitions cannot clash.
func (s *Sweeper) moveExpiredToTrash(now time.Time) int {
	cutoff := now.AddDate(0, -s.cfg.RetentionMonths, 0)
	stamp := now.Format("20060102_150405")
	trash := s.store.TrashPath()

	moved := 0
	filepath.WalkDir(s.store.BasePath(), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if path == trash {
				return fs.SkipDir
			}
			return nil
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		target := filepath.Join(trash, stamp+"_"+entry.Name())
		ext := filepath.Ext(target)
		stem := strings.TrimSuffix(target, ext)
		for n := 1; ; n++ {
			if _, err := os.Stat(target); err != nil {
				break
			}
			target = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}

		if err := os.Rename(path, target); err != nil {
			s.logJSON(map[string]any{
				"component":     "retention",
				"event":         "trash_move_failed",
				"status":        "error",
				"file":          path,
				"error_message": err.Error(),
			})
			return nil
		}
		// Rename keeps the original mtime; the trash grace period is
		// measured from the move, so stamp the entry with the sweep time.
		if err := os.Chtimes(target, now, now); err != nil {
			s.logJSON(map[string]any{
				"component":     "retention",
				"event":         "trash_touch_failed",
				"status":        "error",
				"file":          target,
				"error_message": err.Error(),
			})
		}
		moved++
		return nil
	})
	return moved
}

// purgeTrash deletes trash entries whose last modification is older than
// the trash grace period.
func (s *Sweeper) purgeTrash(now time.Time) int {
	cutoff := now.AddDate(0, 0, -s.cfg.TrashRetentionDays)

	entries, err := os.ReadDir(s.store.TrashPath())
	if err != nil {
		s.logJSON(map[string]any{
			"component":     "retention",
			"event":         "trash_scan_failed",
			"status":        "error",
			"error_message": err.Error(),
		})
		return 0
	}

	purged := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.store.TrashPath(), entry.Name())
		if err := os.Remove(path); err != nil {
			s.logJSON(map[string]any{
				"component":     "retention",
				"event":         "trash_purge_failed",
				"status":        "error",
				"file":          path,
				"error_message": err.Error(),
			})
			continue
		}
		purged++
	}
	return purged
}

// pruneEmptyDirs removes date partition directories left empty after a
// sweep, deepest first. The base and trash directories are kept.
func (s *Sweeper) pruneEmptyDirs() {
	base := s.store.BasePath()
	trash := s.store.TrashPath()

	var dirs []string
	filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if path == trash {
			return fs.SkipDir
		}
		if path != base {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}
}

func (s *Sweeper) logJSON(data map[string]any) {
	data["ts"] = s.clock.Now().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintln(s.out, string(b))
}
