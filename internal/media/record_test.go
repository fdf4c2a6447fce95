package media

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewUploadStamp(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)

	tests := []struct {
		name    string
		in      time.Time
		wantTS  string
		wantDay string
	}{
		{
			name:    "utc",
			in:      time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC),
			wantTS:  "2024-05-01T10:00:00.123Z",
			wantDay: "2024-05-01",
		},
		{
			name:    "converted to utc before bucketing",
			in:      time.Date(2024, 5, 2, 3, 30, 0, 0, loc),
			wantTS:  "2024-05-01T18:30:00.000Z",
			wantDay: "2024-05-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewUploadStamp(tt.in)
			if s.Timestamp() != tt.wantTS {
				t.Errorf("Timestamp() = %q, want %q", s.Timestamp(), tt.wantTS)
			}
			if s.Day() != tt.wantDay {
				t.Errorf("Day() = %q, want %q", s.Day(), tt.wantDay)
			}
		})
	}
}

func TestParseUploadStamp(t *testing.T) {
	s, err := ParseUploadStamp("2024-05-01T10:00:00.000Z")
	if err != nil {
		t.Fatalf("ParseUploadStamp() error = %v", err)
	}
	if s.Day() != "2024-05-01" {
		t.Errorf("Day() = %q", s.Day())
	}

	for _, bad := range []string{"", "2024", "not-a-date-at-all"} {
		if _, err := ParseUploadStamp(bad); err == nil {
			t.Errorf("ParseUploadStamp(%q) expected error", bad)
		}
	}
}

func TestUploadStamp_Zero(t *testing.T) {
	var s UploadStamp
	if !s.IsZero() {
		t.Error("zero stamp not reported as zero")
	}
	if s.Day() != "" {
		t.Errorf("zero stamp Day() = %q", s.Day())
	}
}

func TestSummarize_JSONNames(t *testing.T) {
	rec := &ContentRecord{
		OwnerID:      "u1",
		ObjectKey:    "public/content/u1/a.jpg",
		ThumbnailKey: "public/thumbnails/u1/a.jpg",
		IsPublic:     true,
		Uploaded:     NewUploadStamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		Title:        "A",
		Description:  "first",
	}

	data, err := json.Marshal(rec.Summarize())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := map[string]string{
		"identityId":   "u1",
		"objectKey":    "public/content/u1/a.jpg",
		"thumbnailKey": "public/thumbnails/u1/a.jpg",
		"uploadDate":   "2024-05-01T10:00:00.000Z",
		"title":        "A",
		"description":  "first",
	}
	if len(got) != len(want) {
		t.Errorf("summary has %d fields, want %d: %s", len(got), len(want), data)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("summary[%q] = %v, want %q", k, got[k], v)
		}
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrMalformedKey, true},
		{ErrMissingMetadata, true},
		{ErrUndecodableImage, true},
		{ErrInvalidDimensions, true},
		{errors.Join(errors.New("wrapped"), ErrMalformedKey), true},
		{ErrObjectNotFound, false},
		{errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		if got := IsPermanent(tt.err); got != tt.want {
			t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
