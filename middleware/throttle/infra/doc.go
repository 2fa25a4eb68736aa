// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: janela deslizante por chave com conjunto de bloqueio, em memória
//   - RedisWindowStore: mesma semântica de admissão/bloqueio sobre Redis
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - SlotPool: semáforo simples para limite de concorrência
package infra
