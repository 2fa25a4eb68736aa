package infra

import (
	"context"
	"sync"

	"throttle-gateway/middleware/throttle/domain"
)

type Counters struct {
	Admitted int64 `json:"admitted"`
	Denied   int64 `json:"denied"`
}

func (c *Counters) bump(allowed bool) {
	if allowed {
		c.Admitted++
		return
	}
	c.Denied++
}

// StatsSnapshot é a visão completa exportada para o endpoint administrativo.
type StatsSnapshot struct {
	Total   Counters            `json:"total"`
	ByRoute map[string]Counters `json:"by_route"`
	ByKey   map[string]Counters `json:"by_key,omitempty"`
}

// MemoryStatsStore acumula contadores de decisão em memória.
//
// Serve o endpoint de estatísticas do gateway e os testes. Não faz expiração:
// com trackKeys ligado, cada fingerprint distinto vira uma entrada que só
// some no restart.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.bump(ev.Allowed)

	c := s.byRoute[route]
	c.bump(ev.Allowed)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.bump(ev.Allowed)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Snapshot devolve uma cópia consistente de todos os contadores.
func (s *MemoryStatsStore) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Total:   s.total,
		ByRoute: make(map[string]Counters, len(s.byRoute)),
	}
	for k, v := range s.byRoute {
		snap.ByRoute[k] = v
	}
	if s.trackKeys {
		snap.ByKey = make(map[string]Counters, len(s.byKey))
		for k, v := range s.byKey {
			snap.ByKey[k] = v
		}
	}
	return snap
}
