// Package storage persists signed reports on the local filesystem under a
// date-partitioned layout and enforces the containment boundary on every
// path it resolves.
package storage

import (
	"crypto/sha256"
	"encoding/hex"

	"reportsigner/internal/model"
)

// SavedFile describes a file after a successful save.
type SavedFile struct {
	// Filename is the final stored name, including any collision suffix.
	Filename string
	// RelPath is the path relative to the base directory,
	// e.g. 2026/08/29/report.pdf.
	RelPath string
	// SizeBytes is the number of bytes written.
	SizeBytes int64
}

// FileStore is the persistence boundary for report files. All paths are
// relative to a configured base directory; any path that resolves outside
// it is rejected before the filesystem is touched.
type FileStore interface {
	// Save writes content under the current date partition, resolving
	// filename collisions with _1, _2, ... suffixes before the extension.
	Save(content []byte, filename string) (*SavedFile, error)

	// Read returns the content at relPath.
	Read(relPath string) ([]byte, error)

	// Locate finds the relative path of a stored file by bare filename,
	// searching the active area only (never trash).
	Locate(filename string) (string, error)

	// Exists reports whether relPath names a regular file.
	Exists(relPath string) bool

	// Delete removes the file at relPath.
	Delete(relPath string) error

	// Stats walks the namespace and summarizes active and trash usage.
	Stats() (model.CleanupStats, error)

	// BasePath returns the absolute base directory.
	BasePath() string

	// TrashPath returns the absolute trash directory.
	TrashPath() string
}

// Checksum returns the lowercase hex SHA-256 of content. It is computed
// over exactly the bytes that are persisted.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
