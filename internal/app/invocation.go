package app

import (
	"log/slog"
	"time"
)

// Invocation tracks one handled request: a CLI command or a Lambda event.
// Its ID tags every log line written while it runs.
type Invocation struct {
	ID        string
	Operation string
	Status    string // "running", "success" or "error"
	Started   time.Time
	Finished  time.Time

	logger *slog.Logger
}

// NewInvocation creates a running invocation.
func NewInvocation(id, operation string, started time.Time) *Invocation {
	return &Invocation{
		ID:        id,
		Operation: operation,
		Status:    "running",
		Started:   started,
	}
}

// Finish records the outcome of the invocation.
func (inv *Invocation) Finish(err error, finished time.Time) {
	inv.Finished = finished
	if err != nil {
		inv.Status = "error"
		return
	}
	inv.Status = "success"
}

// Duration is the elapsed time of a finished invocation.
func (inv *Invocation) Duration() time.Duration {
	if inv.Finished.IsZero() {
		return 0
	}
	return inv.Finished.Sub(inv.Started)
}
