package throttle

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func fingerprintedRequest(ua string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("User-Agent", ua)
	r.Header.Set("Accept-Language", "pt-BR")
	r.Header.Set(HeaderScreenSize, "1920x1080")
	r.Header.Set(HeaderTimezoneOffset, "180")
	r.Header.Set(HeaderRenderHash, "dGVzdGU=")
	return r
}

func TestRequestSignals_ReadsTheFullTuple(t *testing.T) {
	s := RequestSignals(fingerprintedRequest("agente"))
	if s.UserAgent != "agente" || s.Language != "pt-BR" || s.ScreenSize != "1920x1080" ||
		s.TimezoneOffset != "180" || s.RenderHash != "dGVzdGU=" {
		t.Fatalf("unexpected signals: %+v", s)
	}
}

func TestFingerprintKeyFunc_SameSignalsSameKey(t *testing.T) {
	fn := FingerprintKeyFunc(nil)

	k1 := fn(fingerprintedRequest("agente"))
	k2 := fn(fingerprintedRequest("agente"))
	if k1 != k2 {
		t.Fatalf("expected stable key, got %q and %q", k1, k2)
	}

	// requisições de outro ambiente caem em outro bucket
	if k3 := fn(fingerprintedRequest("outro agente")); k3 == k1 {
		t.Fatalf("expected different key for different user agent")
	}
}

func TestFingerprintKeyFunc_FallsBackToRemoteHost(t *testing.T) {
	fn := FingerprintKeyFunc(nil)

	// httptest.NewRequest não define User-Agent: sinais mínimos ausentes
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host fallback, got %q", got)
	}
}

func TestFingerprintKeyFunc_UsesGivenFallback(t *testing.T) {
	fn := FingerprintKeyFunc(ConstantKeyFunc("anon"))

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "anon" {
		t.Fatalf("expected constant fallback key, got %q", got)
	}
}

func TestFingerprintKeyFunc_MatchesDomainFold(t *testing.T) {
	r := fingerprintedRequest("agente")

	want, err := RequestSignals(r).Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := FingerprintKeyFunc(nil)(r); got != string(want) {
		t.Fatalf("expected key %q, got %q", want, got)
	}
}

func TestRemoteHostKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := RemoteHostKeyFunc(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestRemoteHostKeyFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := RemoteHostKeyFunc(false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}
