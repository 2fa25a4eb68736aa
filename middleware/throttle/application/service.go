package application

import (
	"context"
	"time"

	"throttle-gateway/middleware/throttle/domain"
)

// Service concentra a regra de aplicação do throttle.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Admitter   domain.Admitter
	RetryAfter time.Duration
}

// blockTimer é implementado por stores que sabem quanto falta para o
// bloqueio de uma chave expirar; quando disponível, o valor substitui o
// RetryAfter fixo.
type blockTimer interface {
	BlockRemaining(k domain.Key) time.Duration
}

// Decide tenta admitir a chave e traduz o estado do store em uma Decision.
//
// Sem Admitter configurado, admite sempre (throttle desligado é um estado
// válido, não um erro).
func (s Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	dec := domain.Decision{Allowed: true, Remaining: -1}
	if s.Admitter == nil {
		return dec
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	dec.Allowed = s.Admitter.Acquire(ctx, key)

	if q, ok := s.Admitter.(domain.QuotaInspector); ok {
		dec.Remaining = q.Remaining(key)
		dec.Reset = q.WindowReset(key)
	}

	if !dec.Allowed {
		dec.RetryAfter = s.RetryAfter
		if bt, ok := s.Admitter.(blockTimer); ok {
			if rem := bt.BlockRemaining(key); rem > 0 {
				dec.RetryAfter = rem
			}
		}
	}
	return dec
}

// IsBlocked é leitura pura: nunca muta estado, independente de quantas vezes
// for chamada.
func (s Service) IsBlocked(key domain.Key) bool {
	bi, ok := s.Admitter.(domain.BlockInspector)
	if !ok {
		return false
	}
	return bi.IsBlocked(key)
}

// Remaining devolve a cota restante da chave, ou -1 quando o store não informa.
func (s Service) Remaining(key domain.Key) int {
	q, ok := s.Admitter.(domain.QuotaInspector)
	if !ok {
		return -1
	}
	return q.Remaining(key)
}

// WindowReset devolve o tempo até a janela da chave esvaziar; zero quando o
// store não informa ou não há timestamps registrados.
func (s Service) WindowReset(key domain.Key) time.Duration {
	q, ok := s.Admitter.(domain.QuotaInspector)
	if !ok {
		return 0
	}
	return q.WindowReset(key)
}
