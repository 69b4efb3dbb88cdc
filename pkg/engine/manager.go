package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kolabo/syncpad/pkg/document"
)

// Manager owns the set of active Engine instances, one per document id,
// creating them lazily and evicting idle ones (spec.md §3, §5).
type Manager struct {
	store   document.Store
	emit    Emitter
	audit   AuditSink
	metrics Metrics
	log     *zap.Logger
	cfg     Config

	mu      sync.Mutex
	engines map[string]*Engine
}

func NewManager(store document.Store, emit Emitter, audit AuditSink, metrics Metrics, log *zap.Logger, cfg Config) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:   store,
		emit:    emit,
		audit:   audit,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
		engines: make(map[string]*Engine),
	}
}

// Get returns the engine for documentID, creating one if this is the
// first access.
func (m *Manager) Get(documentID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.engines[documentID]; ok {
		return e
	}
	e := New(documentID, m.store, m.emit, m.audit, m.metrics, m.log.With(zap.String("documentId", documentID)), m.cfg)
	m.engines[documentID] = e
	return e
}

// StartIdleSweep runs a background ticker that evicts engines with zero
// sessions past IdleEviction, stopping when ctx is canceled.
func (m *Manager) StartIdleSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.sweep(now)
			}
		}
	}()
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.engines {
		if e.IdleExpired(now) {
			delete(m.engines, id)
			m.log.Debug("engine evicted after idle window", zap.String("documentId", id))
		}
	}
}

// DrainAll forces a flush on every active engine, used during graceful
// shutdown (spec.md §5's SHUTDOWN_DRAIN deadline). The flush loop runs in
// its own goroutine so a flush that hangs past ctx's deadline cannot
// block the caller indefinitely: if ctx is done first, DrainAll returns
// ctx.Err() immediately and the drain is reported incomplete, even
// though the abandoned goroutine keeps running to completion in the
// background.
func (m *Manager) DrainAll(ctx context.Context) error {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, e := range m.engines {
		engines = append(engines, e)
	}
	m.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var firstErr error
		for _, e := range engines {
			if err := e.ForceFlush(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		done <- firstErr
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of active (in-memory) engines.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}

// Has reports whether documentID currently has an in-memory engine,
// without creating one as Get would.
func (m *Manager) Has(documentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.engines[documentID]
	return ok
}
