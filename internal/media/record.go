package media

import (
	"fmt"
	"time"
)

// UploadStampLayout is the timestamp format written to records: ISO-8601 in
// UTC with millisecond precision, matching object-store event times.
const UploadStampLayout = "2006-01-02T15:04:05.000Z07:00"

const dayLayout = "2006-01-02"

// UploadStamp couples an upload timestamp with its day bucket. The day is
// always computed from the timestamp, so the two cannot drift apart.
type UploadStamp struct {
	timestamp string
}

// NewUploadStamp formats t as an upload stamp.
func NewUploadStamp(t time.Time) UploadStamp {
	return UploadStamp{timestamp: t.UTC().Format(UploadStampLayout)}
}

// ParseUploadStamp validates a stored timestamp. Only the date prefix is
// checked; the remainder is kept verbatim so ordering is preserved.
func ParseUploadStamp(ts string) (UploadStamp, error) {
	if len(ts) < len(dayLayout) {
		return UploadStamp{}, fmt.Errorf("upload timestamp %q is too short", ts)
	}
	if _, err := time.Parse(dayLayout, ts[:len(dayLayout)]); err != nil {
		return UploadStamp{}, fmt.Errorf("upload timestamp %q has no date prefix: %w", ts, err)
	}
	return UploadStamp{timestamp: ts}, nil
}

// Timestamp returns the full ISO-8601 timestamp.
func (s UploadStamp) Timestamp() string { return s.timestamp }

// Day returns the date prefix of the timestamp, or "" for a zero stamp.
func (s UploadStamp) Day() string {
	if len(s.timestamp) < len(dayLayout) {
		return ""
	}
	return s.timestamp[:len(dayLayout)]
}

// IsZero reports whether the stamp was never set.
func (s UploadStamp) IsZero() bool { return s.timestamp == "" }

// ContentRecord is the denormalized record kept for every content object.
type ContentRecord struct {
	OwnerID      string
	ObjectKey    string
	ThumbnailKey string
	IsPublic     bool
	Uploaded     UploadStamp
	Title        string
	Description  string
}

// Summary is one entry of an index document.
type Summary struct {
	OwnerID         string `json:"identityId"`
	ObjectKey       string `json:"objectKey"`
	ThumbnailKey    string `json:"thumbnailKey"`
	UploadTimestamp string `json:"uploadDate"`
	Title           string `json:"title"`
	Description     string `json:"description"`
}

// Summarize converts a record into its index entry.
func (r *ContentRecord) Summarize() Summary {
	return Summary{
		OwnerID:         r.OwnerID,
		ObjectKey:       r.ObjectKey,
		ThumbnailKey:    r.ThumbnailKey,
		UploadTimestamp: r.Uploaded.Timestamp(),
		Title:           r.Title,
		Description:     r.Description,
	}
}
