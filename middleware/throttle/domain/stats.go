package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do throttle para fins de observação.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings
// genéricas.
//
// Observação: cuidado com cardinalidade — gravar Key sem controle pode
// explodir o número de chaves em uma base como Redis, já que cada
// fingerprint distinto vira uma série.
type StatsEvent struct {
	Key     Key
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do throttle.
//
// O middleware trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
