package throttle

import (
	"net/http"
	"time"

	"throttle-gateway/middleware/throttle/application"
	"throttle-gateway/middleware/throttle/domain"
)

type Options struct {
	Admitter domain.Admitter
	Stats    domain.StatsStore
	// KeyFn substitui a derivação padrão (fingerprint com fallback).
	KeyFn KeyFunc
	// FallbackKey, se não vazia, vira a chave constante usada quando o
	// fingerprint não pode ser derivado. Vazia, o fallback é o host remoto.
	FallbackKey        string
	TrustXForwardedFor bool
	RejectStatus       int
	RetryAfter         time.Duration
	AddThrottleHeaders bool
}

// ruleInfo e rateInfo são implementados pelos stores que expõem a configuração
// vigente; usados só para enriquecer headers.
type ruleInfo interface {
	Rule() domain.Rule
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// Middleware devolve o middleware de admissão por fingerprint.
//
// A negação vira 429 + Retry-After; nenhuma falha interna (fingerprint
// indisponível, stats fora do ar) derruba a requisição.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		var fallback KeyFunc
		if opts.FallbackKey != "" {
			fallback = ConstantKeyFunc(opts.FallbackKey)
		} else {
			fallback = RemoteHostKeyFunc(opts.TrustXForwardedFor)
		}
		opts.KeyFn = FingerprintKeyFunc(fallback)
	}

	svc := application.Service{
		Admitter:   opts.Admitter,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec := svc.Decide(r.Context(), domain.Key(key))

			if opts.AddThrottleHeaders {
				w.Header().Set("X-Throttle-Key", key)
				if dec.Remaining >= 0 {
					w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
					w.Header().Set("X-RateLimit-Reset", formatInt(retryAfterSeconds(dec.Reset)))
				}
				if ri, ok := opts.Admitter.(ruleInfo); ok {
					w.Header().Set("X-RateLimit-Limit", formatInt(ri.Rule().MaxRequests))
				}
				if ri, ok := opts.Admitter.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds arredonda para cima: anunciar menos do que o bloqueio
// restante faria o cliente voltar cedo demais.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
