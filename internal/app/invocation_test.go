package app

import (
	"errors"
	"testing"
	"time"
)

func TestInvocation_Finish(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInvocation("inv-1", "Derive", start)
			if inv.Status != "running" {
				t.Errorf("new invocation status = %q, want running", inv.Status)
			}
			if inv.Duration() != 0 {
				t.Errorf("running invocation has duration %v", inv.Duration())
			}

			inv.Finish(tt.err, start.Add(1500*time.Millisecond))

			if inv.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", inv.Status, tt.wantStatus)
			}
			if inv.Duration() != 1500*time.Millisecond {
				t.Errorf("Duration() = %v, want 1.5s", inv.Duration())
			}
		})
	}
}
