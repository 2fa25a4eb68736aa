package infra

import (
	"context"
	"sync"
	"time"

	"throttle-gateway/middleware/throttle/domain"

	"github.com/redis/go-redis/v9"
)

// RedisWindowStore implementa a mesma semântica de admissão/bloqueio sobre
// Redis, para gateways com mais de uma instância compartilhando estado.
//
// A janela é aproximada por um contador com expiração (INCR + EXPIRE) e o
// bloqueio por uma chave com TTL. Falhas do Redis degradam para a política
// configurada (admitir-sempre ou negar-sempre), nunca para erro na requisição.
type RedisWindowStore struct {
	rdb *redis.Client

	mu   sync.RWMutex
	rule domain.Rule

	prefix   string
	timeout  time.Duration
	failOpen bool
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = prefix }
}

func WithWindowTimeout(d time.Duration) RedisWindowOption {
	return func(s *RedisWindowStore) { s.timeout = d }
}

// WithFailOpen define a degradação em falha do Redis: true admite, false nega.
func WithFailOpen(open bool) RedisWindowOption {
	return func(s *RedisWindowStore) { s.failOpen = open }
}

func NewRedisWindowStore(rdb *redis.Client, rule domain.Rule, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:      rdb,
		rule:     rule,
		prefix:   "throttle",
		timeout:  500 * time.Millisecond,
		failOpen: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) countKey(k domain.Key) string { return s.prefix + ":count:" + string(k) }
func (s *RedisWindowStore) blockKey(k domain.Key) string { return s.prefix + ":block:" + string(k) }

// Acquire implementa domain.Admitter.
func (s *RedisWindowStore) Acquire(ctx context.Context, k domain.Key) bool {
	s.mu.RLock()
	rule := s.rule
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.rdb.Exists(ctx, s.blockKey(k)).Result()
	if err != nil {
		return s.failOpen
	}
	if exists > 0 {
		return false
	}

	pipe := s.rdb.TxPipeline()
	counter := pipe.Incr(ctx, s.countKey(k))
	pipe.Expire(ctx, s.countKey(k), rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return s.failOpen
	}

	if counter.Val() > int64(rule.MaxRequests) {
		// best-effort: se o SET falhar, a próxima tentativa estoura de novo
		_ = s.rdb.Set(ctx, s.blockKey(k), "1", rule.BlockDuration).Err()
		return false
	}
	return true
}

// IsBlocked implementa domain.BlockInspector.
func (s *RedisWindowStore) IsBlocked(k domain.Key) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	exists, err := s.rdb.Exists(ctx, s.blockKey(k)).Result()
	if err != nil {
		return !s.failOpen
	}
	return exists > 0
}

// BlockRemaining informa o TTL restante do bloqueio, zero se não bloqueada.
func (s *RedisWindowStore) BlockRemaining(k domain.Key) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ttl, err := s.rdb.TTL(ctx, s.blockKey(k)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

// Rule devolve a configuração vigente.
func (s *RedisWindowStore) Rule() domain.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rule
}

// Reconfigure substitui os limites para as avaliações futuras; campos não
// positivos mantêm o valor vigente. Contadores e bloqueios existentes seguem
// até expirar pelos TTLs antigos.
func (s *RedisWindowStore) Reconfigure(rule domain.Rule) {
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

// ClearBlocks remove todas as chaves de bloqueio do prefixo, best-effort.
func (s *RedisWindowStore) ClearBlocks() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := s.rdb.Scan(ctx, 0, s.prefix+":block:*", 100).Iterator()
	for iter.Next(ctx) {
		_ = s.rdb.Del(ctx, iter.Val()).Err()
	}
}
