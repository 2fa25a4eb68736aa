package domain

import (
	"errors"
	"strconv"
	"strings"
)

// Signals é a tupla fixa de sinais de ambiente que identifica uma sessão de
// cliente: user agent, idioma preferido, dimensões de tela, offset de fuso e
// o hash de renderização enviado pela página.
//
// É um identificador heurístico, não uma credencial: trivialmente forjável e
// com colisões esperadas entre clientes com hardware/navegador/locale iguais.
type Signals struct {
	UserAgent      string
	Language       string
	ScreenSize     string
	TimezoneOffset string
	RenderHash     string
}

// ErrCapabilityUnavailable indica que o ambiente não forneceu os sinais
// mínimos para derivar um fingerprint. O chamador decide a estratégia de
// fallback (chave constante, host remoto) ou desliga o throttle.
var ErrCapabilityUnavailable = errors.New("fingerprint signals unavailable")

func IsCapabilityUnavailable(err error) bool {
	return errors.Is(err, ErrCapabilityUnavailable)
}

// Key dobra os sinais em uma chave curta e determinística.
//
// Os sinais são concatenados com "|" e dobrados em um inteiro de 32 bits com
// sinal via hash rolante (h = (h<<5 - h) + codepoint, truncado a cada passo);
// o valor absoluto é codificado em base-36.
//
// O user agent é o sinal obrigatório: sem ele a tupla degenera em uma chave
// quase constante, então a derivação falha com ErrCapabilityUnavailable em
// vez de produzir silenciosamente um bucket coletivo.
func (s Signals) Key() (Key, error) {
	if strings.TrimSpace(s.UserAgent) == "" {
		return "", ErrCapabilityUnavailable
	}

	joined := strings.Join([]string{
		s.UserAgent,
		s.Language,
		s.ScreenSize,
		s.TimezoneOffset,
		s.RenderHash,
	}, "|")

	var h int32
	for _, r := range joined {
		h = (h<<5 - h) + int32(r)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return Key(strconv.FormatInt(v, 36)), nil
}
