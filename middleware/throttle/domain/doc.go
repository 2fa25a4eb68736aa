// Package domain define contratos e tipos de domínio para o throttle por fingerprint.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as regras de
// admissão de detalhes de infraestrutura (memória, Redis, token bucket).
package domain
