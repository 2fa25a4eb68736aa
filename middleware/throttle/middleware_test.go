package throttle

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"throttle-gateway/middleware/throttle/domain"
	"throttle-gateway/middleware/throttle/infra"
)

// janela longa: os testes nunca dependem do relógio de parede avançar.
func testRule(max int) domain.Rule {
	return domain.Rule{MaxRequests: max, Window: time.Hour, BlockDuration: time.Hour}
}

func TestMiddleware_AllowsThenRejectsSameFingerprint(t *testing.T) {
	store := infra.NewWindowStore(testRule(1))
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Admitter:           store,
		Stats:              stats,
		RejectStatus:       http.StatusTooManyRequests,
		RetryAfter:         1 * time.Second,
		AddThrottleHeaders: true,
	})(next)

	// 1) primeira passa
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, fingerprintedRequest("agente"))
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-Throttle-Key"); got == "" {
		t.Fatalf("expected X-Throttle-Key header to be set")
	}
	if got := w1.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining=0 after using the quota, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}

	// 2) mesma tupla de sinais => mesma chave => nega e bloqueia
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, fingerprintedRequest("agente"))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got == "" {
		t.Fatalf("expected Retry-After header to be set")
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if total := stats.Total(); total.Admitted != 1 || total.Denied != 1 {
		t.Fatalf("expected stats 1/1, got %d/%d", total.Admitted, total.Denied)
	}
}

func TestMiddleware_DistinctFingerprintsDoNotInteract(t *testing.T) {
	store := infra.NewWindowStore(testRule(1))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Admitter: store, RetryAfter: 1 * time.Second})(next)

	// esgota a cota do primeiro ambiente
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, fingerprintedRequest("agente-a"))
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200 for first fingerprint, got %d", w1.Code)
	}

	// outro ambiente segue com a cota cheia
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, fingerprintedRequest("agente-b"))
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for second fingerprint, got %d", w2.Code)
	}

	kb, err := RequestSignals(fingerprintedRequest("agente-b")).Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.Remaining(kb); got != 0 {
		t.Fatalf("expected second fingerprint to have spent only its own quota, got remaining=%d", got)
	}
}

func TestMiddleware_FallbackKeyWhenSignalsMissing(t *testing.T) {
	store := infra.NewWindowStore(testRule(1))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Admitter:           store,
		FallbackKey:        "anon",
		AddThrottleHeaders: true,
	})(next)

	// sem User-Agent: cai no bucket único configurado
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-Throttle-Key"); got != "anon" {
		t.Fatalf("expected fallback key anon, got %q", got)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMiddleware_RetryAfterRoundsUp(t *testing.T) {
	store := infra.NewWindowStore(testRule(1))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Admitter: store, RetryAfter: 2500 * time.Millisecond})(next)

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, fingerprintedRequest("agente"))
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, fingerprintedRequest("agente"))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	// o bloqueio recém-criado vale ~1h; Retry-After anuncia o teto, nunca menos
	got := strings.TrimSpace(w2.Header().Get("Retry-After"))
	if got != "3600" {
		t.Fatalf("expected Retry-After=3600 from the block deadline, got %q", got)
	}
}

func TestMiddleware_NilAdmitterAdmitsEverything(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{})(next)

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, fingerprintedRequest("agente"))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 with throttle disabled, got %d", w.Code)
		}
	}
}
