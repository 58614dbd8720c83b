package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
)

// MemoryHistory is a process-wide append-only history log.
// Appends are serialised by mu; each symbol's log is published through an
// atomic pointer so QueryTrend never takes the lock.
type MemoryHistory struct {
	mu      sync.Mutex
	symbols sync.Map // symbol -> *atomic.Pointer[[]models.PatternHistoryEntry]
	now     func() time.Time
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{now: time.Now}
}

func (h *MemoryHistory) slot(symbol string) *atomic.Pointer[[]models.PatternHistoryEntry] {
	v, _ := h.symbols.LoadOrStore(symbol, new(atomic.Pointer[[]models.PatternHistoryEntry]))
	return v.(*atomic.Pointer[[]models.PatternHistoryEntry])
}

func (h *MemoryHistory) Append(_ context.Context, entry models.PatternHistoryEntry) error {
	p := h.slot(entry.Symbol)

	h.mu.Lock()
	defer h.mu.Unlock()

	var cur []models.PatternHistoryEntry
	if old := p.Load(); old != nil {
		cur = *old
	}
	// Copy on write: readers holding the previous slice never observe the append.
	next := make([]models.PatternHistoryEntry, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, entry)
	p.Store(&next)
	return nil
}

func (h *MemoryHistory) QueryTrend(_ context.Context, symbol string, days int) ([]models.PatternHistoryEntry, error) {
	v, ok := h.symbols.Load(symbol)
	if !ok {
		return []models.PatternHistoryEntry{}, nil
	}
	snap := v.(*atomic.Pointer[[]models.PatternHistoryEntry]).Load()
	if snap == nil {
		return []models.PatternHistoryEntry{}, nil
	}
	since := trendStart(h.now(), days)
	out := make([]models.PatternHistoryEntry, 0, len(*snap))
	for _, e := range *snap {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func trendStart(now time.Time, days int) time.Time {
	return now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

var _ domrepo.HistoryStore = (*MemoryHistory)(nil)
