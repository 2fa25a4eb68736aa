package domain

// Camada de domínio do throttle.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica o bucket de estado de um cliente (fingerprint, IP, etc).
//
// Não é credencial nem identidade: colisões entre clientes reais são
// esperadas e aceitáveis.
type Key string

// Rule agrega os limites de uma janela deslizante.
//
// MaxRequests requisições por Window; ao atingir o teto, a chave entra em
// bloqueio por BlockDuration.
type Rule struct {
	MaxRequests   int
	Window        time.Duration
	BlockDuration time.Duration
}

// Admitter decide se uma ação é admitida agora para uma chave.
//
// Observação: a implementação pode ser janela deslizante em memória,
// contador em Redis, token bucket, etc. Implementações remotas devem
// degradar para admitir-sempre ou negar-sempre em caso de falha — nunca
// propagar a falha para o chamador.
type Admitter interface {
	Acquire(ctx context.Context, k Key) bool
}

// BlockInspector expõe leitura pura do conjunto de bloqueio.
// Não deve mutar estado nem podar timestamps.
type BlockInspector interface {
	IsBlocked(k Key) bool
}

// QuotaInspector expõe a cota restante e o tempo até a janela esvaziar.
// Implementações que não conseguem informar (ex: token bucket) simplesmente
// não implementam a interface.
type QuotaInspector interface {
	// Remaining é MaxRequests menos os timestamps não expirados, nunca negativo.
	Remaining(k Key) int
	// WindowReset é Window menos a idade do timestamp mais antigo; zero se vazio.
	WindowReset(k Key) time.Duration
}

// Decision é o resultado de uma tentativa de admissão.
//
// Negação não é erro: é um desfecho normal e terminal da tentativa. O
// chamador decide se degrada funcionalidade ou ignora.
type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando negar.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// Remaining é a cota restante após a decisão; -1 quando a implementação
	// não informa.
	Remaining int
	// Reset é o tempo até a janela da chave esvaziar; zero quando desconhecido.
	Reset time.Duration
}
