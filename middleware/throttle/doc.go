// Package throttle fornece adapters HTTP (net/http) para o throttle por
// fingerprint e para o limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela deslizante, Redis, token bucket, semáforo)
//   - throttle (este pacote): middlewares HTTP + derivação do fingerprint + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Deriva a chave do cliente a partir dos sinais da requisição
//     (user agent, idioma, dimensões de tela, fuso, hash de renderização)
//  2. Se os sinais mínimos faltam, aplica a estratégia de fallback
//  3. Chama a camada application para obter a decisão
//  4. Se negado, responde 429 (throttle) ou 503 (concorrência)
//  5. Se admitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como THROTTLE_MAX_REQUESTS, THROTTLE_WINDOW, THROTTLE_BLOCK
// e CONCURRENCY_MAX.
package throttle
