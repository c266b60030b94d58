package editions

import (
	"errors"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusNotified   = "notified"
	StatusNoText     = "no_text"
	StatusFailed     = "failed"
	StatusDryRun     = "dry_run"
)

// ErrNotFound is returned when no record exists for an edition.
var ErrNotFound = errors.New("not found")

// Record is the processing history of one gazette edition.
type Record struct {
	ID               string     `json:"id"`
	EditionID        string     `json:"editionId"`
	Number           int        `json:"number"`
	Year             int        `json:"year"`
	Label            string     `json:"label"`
	DetailURL        string     `json:"detailUrl"`
	DownloadURL      string     `json:"downloadUrl"`
	StorageProvider  string     `json:"storageProvider"`
	PDFKey           string     `json:"pdfKey,omitempty"`
	TextKey          string     `json:"textKey,omitempty"`
	SHA256           string     `json:"sha256,omitempty"`
	SizeBytes        int64      `json:"sizeBytes"`
	Pages            int        `json:"pages"`
	TextChars        int        `json:"textChars"`
	Status           string     `json:"status"`
	HasOpportunities bool       `json:"hasOpportunities"`
	Summary          string     `json:"summary,omitempty"`
	Model            string     `json:"model,omitempty"`
	Error            string     `json:"error,omitempty"`
	NotifiedAt       *time.Time `json:"notifiedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Done reports whether the edition needs no further processing.
func (r Record) Done() bool {
	switch r.Status {
	case StatusNotified, StatusNoText:
		return true
	default:
		return false
	}
}
