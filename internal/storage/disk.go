package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"reportsigner/internal/apperr"
	"reportsigner/internal/clock"
	"reportsigner/internal/config"
	"reportsigner/internal/model"
)

type diskStore struct {
	base  string // absolute
	trash string // absolute, inside base
	clock clock.Clock
}

// NewDiskStore creates the base and trash directories if needed and
// returns a FileStore rooted at cfg.BasePath.
func NewDiskStore(cfg config.StorageConfig, clk clock.Clock) (FileStore, error) {
	if cfg.BasePath == "" {
		return nil, apperr.New(apperr.Configuration, "storage base path not set")
	}
	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, apperr.Wrap(apperr.Configuration, "resolve storage base path", err)
	}
	trashName := cfg.TrashDirName
	if trashName == "" {
		trashName = "_trash"
	}
	trash := filepath.Join(base, trashName)

	for _, dir := range []string{base, trash} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.IO, "create storage directory", err)
		}
	}

	return &diskStore{base: base, trash: trash, clock: clk}, nil
}

func (d *diskStore) BasePath() string  { return d.base }
func (d *diskStore) TrashPath() string { return d.trash }

// resolve joins relPath onto the base directory and enforces the
// containment invariant: the cleaned absolute result must remain inside
// the base. It never touches the filesystem.
func (d *diskStore) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", apperr.New(apperr.Security, "empty path")
	}
	abs := filepath.Clean(filepath.Join(d.base, relPath))
	if abs != d.base && !strings.HasPrefix(abs, d.base+string(filepath.Separator)) {
		return "", apperr.Newf(apperr.Security, "path escapes storage boundary: %s", relPath)
	}
	return abs, nil
}

func (d *diskStore) Save(content []byte, filename string) (*SavedFile, error) {
	if filename == "" {
		return nil, apperr.New(apperr.Security, "empty filename")
	}
	if filename != filepath.Base(filename) {
		return nil, apperr.Newf(apperr.Security, "filename contains path segments: %s", filename)
	}

	now := d.clock.Now()
	relDir := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	dir, err := d.resolve(relDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.IO, "create date directory", err)
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	// Exclusive create resolves collisions: if a concurrent save wins the
	// race for a candidate name, the loser advances to the next suffix
	// instead of overwriting.
	name := filename
	for n := 1; ; n++ {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if _, werr := f.Write(content); werr != nil {
				f.Close()
				os.Remove(filepath.Join(dir, name))
				return nil, apperr.Wrap(apperr.IO, "write file", werr)
			}
			if cerr := f.Close(); cerr != nil {
				return nil, apperr.Wrap(apperr.IO, "close file", cerr)
			}
			return &SavedFile{
				Filename:  name,
				RelPath:   filepath.ToSlash(filepath.Join(relDir, name)),
				SizeBytes: int64(len(content)),
			}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, apperr.Wrap(apperr.IO, "create file", err)
		}
		name = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
}

func (d *diskStore) Read(relPath string) ([]byte, error) {
	abs, err := d.resolve(filepath.FromSlash(relPath))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Newf(apperr.NotFound, "file not found: %s", relPath)
		}
		return nil, apperr.Wrap(apperr.IO, "read file", err)
	}
	return data, nil
}

func (d *diskStore) Locate(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", apperr.Newf(apperr.Security, "invalid filename: %s", filename)
	}

	var found string
	err := filepath.WalkDir(d.base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if entry.IsDir() {
			if path == d.trash {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Name() == filename {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.IO, "scan storage", err)
	}
	if found == "" {
		return "", apperr.Newf(apperr.NotFound, "file not found: %s", filename)
	}

	rel, err := filepath.Rel(d.base, found)
	if err != nil {
		return "", apperr.Wrap(apperr.IO, "relativize path", err)
	}
	return filepath.ToSlash(rel), nil
}

func (d *diskStore) Exists(relPath string) bool {
	abs, err := d.resolve(filepath.FromSlash(relPath))
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

func (d *diskStore) Delete(relPath string) error {
	abs, err := d.resolve(filepath.FromSlash(relPath))
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.Newf(apperr.NotFound, "file not found: %s", relPath)
		}
		return apperr.Wrap(apperr.IO, "delete file", err)
	}
	return nil
}

func (d *diskStore) Stats() (model.CleanupStats, error) {
	var stats model.CleanupStats
	err := filepath.WalkDir(d.base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if strings.HasPrefix(path, d.trash+string(filepath.Separator)) {
			stats.TrashFiles++
			stats.TrashSizeBytes += info.Size()
		} else {
			stats.TotalFiles++
			stats.TotalSizeBytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return model.CleanupStats{}, apperr.Wrap(apperr.IO, "walk storage", err)
	}
	return stats, nil
}
