package domain

import (
	"strings"
	"testing"
)

func fullSignals() Signals {
	return Signals{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		Language:       "pt-BR",
		ScreenSize:     "1920x1080",
		TimezoneOffset: "180",
		RenderHash:     "dGVzdGU=",
	}
}

func TestSignals_KeyIsDeterministic(t *testing.T) {
	k1, err := fullSignals().Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k2, err := fullSignals().Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected same key for same signals, got %q and %q", k1, k2)
	}
	if k1 == "" {
		t.Fatalf("expected non-empty key")
	}
}

func TestSignals_KeyIsBase36(t *testing.T) {
	k, err := fullSignals().Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range string(k) {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", r) {
			t.Fatalf("expected base-36 key, got %q", k)
		}
	}
}

func TestSignals_KeyChangesWithEachSignal(t *testing.T) {
	base, err := fullSignals().Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	variants := []Signals{
		func() Signals { s := fullSignals(); s.UserAgent += " Edg/120"; return s }(),
		func() Signals { s := fullSignals(); s.Language = "en-US"; return s }(),
		func() Signals { s := fullSignals(); s.ScreenSize = "1366x768"; return s }(),
		func() Signals { s := fullSignals(); s.TimezoneOffset = "0"; return s }(),
		func() Signals { s := fullSignals(); s.RenderHash = "b3V0cm8="; return s }(),
	}
	for i, v := range variants {
		k, err := v.Key()
		if err != nil {
			t.Fatalf("unexpected error for variant %d: %v", i, err)
		}
		if k == base {
			t.Fatalf("expected variant %d to change the key", i)
		}
	}
}

func TestSignals_KeyFailsWithoutUserAgent(t *testing.T) {
	s := fullSignals()
	s.UserAgent = "   "

	_, err := s.Key()
	if err == nil {
		t.Fatalf("expected error when user agent is missing")
	}
	if !IsCapabilityUnavailable(err) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
}

func TestSignals_KeyToleratesPartialTuple(t *testing.T) {
	// só o user agent presente: chave menos seletiva, mas ainda derivável
	k, err := Signals{UserAgent: "curl/8.5.0"}.Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k == "" {
		t.Fatalf("expected non-empty key")
	}
}
