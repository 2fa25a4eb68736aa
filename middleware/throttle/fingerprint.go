package throttle

import (
	"net"
	"net/http"
	"strings"

	"throttle-gateway/middleware/throttle/domain"
)

// Headers de dica enviados pela página junto com a requisição. São a versão
// transportada dos sinais que o script coleta no navegador; ausentes, a tupla
// fica parcial e a chave resultante menos seletiva.
const (
	HeaderScreenSize     = "X-Screen-Size"
	HeaderTimezoneOffset = "X-Timezone-Offset"
	HeaderRenderHash     = "X-Render-Hash"
)

// RequestSignals extrai da requisição a tupla de sinais do fingerprint.
func RequestSignals(r *http.Request) domain.Signals {
	return domain.Signals{
		UserAgent:      strings.TrimSpace(r.Header.Get("User-Agent")),
		Language:       strings.TrimSpace(r.Header.Get("Accept-Language")),
		ScreenSize:     strings.TrimSpace(r.Header.Get(HeaderScreenSize)),
		TimezoneOffset: strings.TrimSpace(r.Header.Get(HeaderTimezoneOffset)),
		RenderHash:     strings.TrimSpace(r.Header.Get(HeaderRenderHash)),
	}
}

type KeyFunc func(r *http.Request) string

// FingerprintKeyFunc deriva a chave pelo fingerprint e delega ao fallback
// quando os sinais mínimos não estão disponíveis (ErrCapabilityUnavailable).
// Com fallback nil, usa o host remoto.
func FingerprintKeyFunc(fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = RemoteHostKeyFunc(false)
	}
	return func(r *http.Request) string {
		key, err := RequestSignals(r).Key()
		if err != nil {
			return fallback(r)
		}
		return string(key)
	}
}

// ConstantKeyFunc devolve sempre a mesma chave — a estratégia de fallback
// "bucket único" para quando o fingerprint não pode ser derivado.
func ConstantKeyFunc(key string) KeyFunc {
	return func(*http.Request) string { return key }
}

// RemoteHostKeyFunc deriva a chave do endereço do cliente.
// Com trustXFF, usa o primeiro IP do X-Forwarded-For (cliente original).
func RemoteHostKeyFunc(trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
