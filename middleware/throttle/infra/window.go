package infra

import (
	"context"
	"sync"
	"time"

	"throttle-gateway/middleware/throttle/domain"
)

// WindowStore é a implementação em memória da janela deslizante com
// escalonamento para bloqueio temporizado.
//
// Estado por chave: a sequência de timestamps das admissões dentro da janela
// (podada de forma preguiçosa antes de cada uso) e, quando a chave estoura o
// teto, uma entrada no conjunto de bloqueio com o deadline de desbloqueio.
// Uma chave presente no conjunto de bloqueio é sempre negada, independente do
// conteúdo da janela; ela sai do conjunto automaticamente quando o deadline
// passa, verificado no próximo acesso.
//
// O mutex cobre o check-then-act inteiro: diferente do ambiente original de
// página única, o gateway atende requisições em paralelo.
type WindowStore struct {
	mu      sync.Mutex
	rule    domain.Rule
	records map[domain.Key][]time.Time
	blocked map[domain.Key]time.Time

	cleanupEvery time.Duration
	staleAfter   time.Duration // 0 = 2×Window no momento da varredura
	now          func() time.Time
}

type WindowOption func(*WindowStore)

// WithCleanupEvery define o intervalo da varredura periódica do janitor.
func WithCleanupEvery(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

// WithStaleAfter define a idade a partir da qual um registro inteiro é
// descartado pela varredura. Zero mantém o padrão de duas janelas.
func WithStaleAfter(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.staleAfter = d }
}

// WithNow injeta a fonte de tempo. Toda a aritmética de janela e bloqueio
// passa por ela, então testes avançam o relógio sem dormir.
func WithNow(now func() time.Time) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(rule domain.Rule, opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		rule:         rule,
		records:      make(map[domain.Key][]time.Time),
		blocked:      make(map[domain.Key]time.Time),
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire implementa domain.Admitter.
//
// Ordem fixa: conjunto de bloqueio primeiro, poda preguiçosa depois, só então
// a contagem. Ao atingir o teto a chave entra em bloqueio com deadline
// now+BlockDuration e a requisição que estourou NÃO é registrada na janela.
func (s *WindowStore) Acquire(_ context.Context, k domain.Key) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.blocked[k]; ok {
		if now.Before(deadline) {
			return false
		}
		delete(s.blocked, k)
	}

	kept := pruneBefore(s.records[k], now.Add(-s.rule.Window))
	if len(kept) >= s.rule.MaxRequests {
		s.records[k] = kept
		s.blocked[k] = now.Add(s.rule.BlockDuration)
		return false
	}

	s.records[k] = append(kept, now)
	return true
}

// IsBlocked implementa domain.BlockInspector. Leitura pura: não remove a
// entrada expirada nem poda timestamps.
func (s *WindowStore) IsBlocked(k domain.Key) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.blocked[k]
	return ok && now.Before(deadline)
}

// Remaining implementa domain.QuotaInspector.
func (s *WindowStore) Remaining(k domain.Key) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.rule.Window)
	n := 0
	for _, t := range s.records[k] {
		if t.After(cutoff) {
			n++
		}
	}
	if n >= s.rule.MaxRequests {
		return 0
	}
	return s.rule.MaxRequests - n
}

// WindowReset implementa domain.QuotaInspector: tempo até o timestamp mais
// antigo ainda válido sair da janela; zero com a janela vazia.
func (s *WindowStore) WindowReset(k domain.Key) time.Duration {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.rule.Window)
	for _, t := range s.records[k] {
		if t.After(cutoff) {
			d := s.rule.Window - now.Sub(t)
			if d < 0 {
				return 0
			}
			return d
		}
	}
	return 0
}

// BlockRemaining informa quanto falta para o bloqueio da chave expirar.
// Zero significa "não bloqueada".
func (s *WindowStore) BlockRemaining(k domain.Key) time.Duration {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.blocked[k]
	if !ok || !now.Before(deadline) {
		return 0
	}
	return deadline.Sub(now)
}

// Rule devolve a configuração vigente.
func (s *WindowStore) Rule() domain.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rule
}

// Reconfigure substitui os limites para as avaliações futuras. Campos não
// positivos mantêm o valor vigente. Registros e bloqueios existentes não são
// reavaliados retroativamente.
func (s *WindowStore) Reconfigure(rule domain.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.MaxRequests > 0 {
		s.rule.MaxRequests = rule.MaxRequests
	}
	if rule.Window > 0 {
		s.rule.Window = rule.Window
	}
	if rule.BlockDuration > 0 {
		s.rule.BlockDuration = rule.BlockDuration
	}
}

// ClearBlocks esvazia o conjunto de bloqueio incondicionalmente (override
// administrativo). A janela das chaves fica intacta: se continuar cheia, a
// próxima tentativa reentra em bloqueio.
func (s *WindowStore) ClearBlocks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = make(map[domain.Key]time.Time)
}

// Cleanup remove registros cujos timestamps são todos mais antigos que
// staleAfter e bloqueios já expirados. Limita o crescimento de memória com
// visitantes de uma requisição só.
func (s *WindowStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	stale := s.staleAfter
	if stale <= 0 {
		stale = 2 * s.rule.Window
	}
	cutoff := now.Add(-stale)

	for k, ts := range s.records {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(s.records, k)
		}
	}
	for k, deadline := range s.blocked {
		if !now.Before(deadline) {
			delete(s.blocked, k)
		}
	}
}

// Len devolve o número de chaves rastreadas (inspeção administrativa/testes).
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// StartJanitor inicia uma goroutine que varre registros velhos periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// pruneBefore descarta os timestamps anteriores ou iguais ao corte,
// preservando a ordem de inserção (= cronológica).
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// DoneContext é o mínimo que o janitor precisa de um context.Context.
// (Permite passar qualquer coisa com Done() em testes.)
type DoneContext interface {
	Done() <-chan struct{}
}
