package model

import (
	"strings"
	"time"
)

// ReportRequest carries the field map a verification report is rendered
// from. All values arrive as display-ready strings; the service does not
// interpret them beyond layout.
type ReportRequest struct {
	SubjectName   string `json:"subjectName"`
	SubjectID     string `json:"subjectId"`
	LicenseNumber string `json:"licenseNumber"`
	LicenseDate   string `json:"licenseDate"`
	HealthSystem  string `json:"healthSystem"`

	ValidatedAt  string `json:"validatedAt"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	GPSAccuracy  string `json:"gpsAccuracy"`
	GPSTampered  string `json:"gpsTampered"`
	GPSAddress   string `json:"gpsAddress"`
	RestAddress  string `json:"restAddress"`
	RestDistance string `json:"restDistance"`
	GeoResult    string `json:"geoResult"`
	FaceResult   string `json:"faceResult"`
	Operator     string `json:"operator"`

	AdditionalFields map[string]string `json:"additionalFields,omitempty"`
	Observations     string            `json:"observations,omitempty"`
	UsageNote        string            `json:"usageNote,omitempty"`
}

// GeoResultPassed reports whether the geographic validation matched the
// registered rest address.
func (r *ReportRequest) GeoResultPassed() bool {
	return strings.EqualFold(r.GeoResult, "MATCHES REST ADDRESS")
}

// GenerationResult is the response payload for a generate request.
type GenerationResult struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	Filename      string    `json:"filename,omitempty"`
	DownloadURL   string    `json:"downloadUrl,omitempty"`
	DownloadToken string    `json:"downloadToken,omitempty"`
	QRCode        string    `json:"qrCode,omitempty"` // base64-encoded PNG
	Checksum      string    `json:"checksum,omitempty"`
	FileSizeBytes int64     `json:"fileSizeBytes,omitempty"`
	GeneratedAt   time.Time `json:"generatedAt"`
	ExpiresAt     time.Time `json:"expiresAt,omitempty"`
}

// Report is the audit record persisted for each issued document.
// This is a pure domain model with no database-specific dependencies or tags.
type Report struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	Checksum    string    `json:"checksum"`
	SizeBytes   int64     `json:"size_bytes"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// FileStatus is a point-in-time view of one stored file.
type FileStatus struct {
	Filename  string `json:"filename"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size,omitempty"`
	Checksum  string `json:"checksum,omitempty"`
}

// CleanupStats is a read-only summary of active and trash storage,
// recomputed on demand.
type CleanupStats struct {
	TotalFiles     int64 `json:"totalFiles"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
	TrashFiles     int64 `json:"trashFiles"`
	TrashSizeBytes int64 `json:"trashSizeBytes"`
}
