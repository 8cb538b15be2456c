package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"washdesk/internal/metrics"
)

type screen struct {
	rec      *Reconciler
	lastSeen time.Time
}

// Screens holds the reconciler of every order screen that is currently open.
type Screens struct {
	backend Backend
	now     func() time.Time

	mu   sync.Mutex
	open map[int64]*screen
}

func NewScreens(backend Backend) *Screens {
	return &Screens{
		backend: backend,
		now:     time.Now,
		open:    make(map[int64]*screen),
	}
}

// Open returns the order's reconciler, creating and loading it on first use.
func (s *Screens) Open(ctx context.Context, orderID int64) (*Reconciler, error) {
	if rec, ok := s.Get(orderID); ok {
		return rec, nil
	}

	rec := NewReconciler(s.backend, orderID)
	if err := rec.Load(ctx); err != nil {
		rec.Close()
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.open[orderID]; ok {
		// opened concurrently; keep the first one
		existing.lastSeen = s.now()
		s.mu.Unlock()
		rec.Close()
		return existing.rec, nil
	}
	s.open[orderID] = &screen{rec: rec, lastSeen: s.now()}
	metrics.OpenScreens.Set(float64(len(s.open)))
	s.mu.Unlock()

	slog.Info("order screen opened", "order", orderID)
	return rec, nil
}

// Get returns an open screen's reconciler and marks it as used.
func (s *Screens) Get(orderID int64) (*Reconciler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.open[orderID]
	if !ok {
		return nil, false
	}
	sc.lastSeen = s.now()
	return sc.rec, true
}

// Close tears the order's screen down. Closing a screen that is not open is a
// no-op.
func (s *Screens) Close(orderID int64) {
	s.mu.Lock()
	sc, ok := s.open[orderID]
	delete(s.open, orderID)
	metrics.OpenScreens.Set(float64(len(s.open)))
	s.mu.Unlock()

	if ok {
		sc.rec.Close()
		slog.Info("order screen closed", "order", orderID)
	}
}

// Sweep closes screens unused for longer than idle and reports how many.
func (s *Screens) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var stale []*screen
	for id, sc := range s.open {
		if sc.lastSeen.Before(cutoff) {
			stale = append(stale, sc)
			delete(s.open, id)
		}
	}
	metrics.OpenScreens.Set(float64(len(s.open)))
	s.mu.Unlock()

	for _, sc := range stale {
		sc.rec.Close()
		slog.Info("idle order screen closed", "order", sc.rec.OrderID())
	}
	return len(stale)
}

// CloseAll tears every open screen down.
func (s *Screens) CloseAll() {
	s.mu.Lock()
	all := s.open
	s.open = make(map[int64]*screen)
	metrics.OpenScreens.Set(0)
	s.mu.Unlock()

	for _, sc := range all {
		sc.rec.Close()
	}
}

func (s *Screens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
