package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

// Mux routes event fetches to a per-user source, falling back to a shared
// default (normally TeamUp) for users without one.
type Mux struct {
	mu       sync.RWMutex
	sources  map[string]engine.EventFetcher
	fallback engine.EventFetcher
}

func NewMux(fallback engine.EventFetcher) *Mux {
	return &Mux{
		sources:  make(map[string]engine.EventFetcher),
		fallback: fallback,
	}
}

func (m *Mux) Register(email string, source engine.EventFetcher) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources[strings.ToLower(email)] = source
}

func (m *Mux) Get(email string) (engine.EventFetcher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if source, ok := m.sources[strings.ToLower(email)]; ok {
		return source, nil
	}
	if m.fallback == nil {
		return nil, fmt.Errorf("no calendar source for %q", email)
	}
	return m.fallback, nil
}

func (m *Mux) FetchEvents(ctx context.Context, email string, start, end time.Time) ([]engine.Event, error) {
	source, err := m.Get(email)
	if err != nil {
		return nil, err
	}
	return source.FetchEvents(ctx, email, start, end)
}
