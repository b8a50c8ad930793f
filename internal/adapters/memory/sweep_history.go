package memory

import (
	"context"
	"sync"
	"time"
)

// SweepHistory implements port.SweepHistoryPort for stores without their
// own bookkeeping.
type SweepHistory struct {
	mu   sync.Mutex
	runs map[string]time.Time
}

func NewSweepHistory() *SweepHistory {
	return &SweepHistory{runs: make(map[string]time.Time)}
}

func (h *SweepHistory) GetLastSweep(_ context.Context, catalogName string) (time.Time, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[catalogName], nil
}

func (h *SweepHistory) SetLastSweep(_ context.Context, catalogName string, t time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs[catalogName] = t
	return nil
}
