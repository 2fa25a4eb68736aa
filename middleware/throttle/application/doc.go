// Package application contém os casos de uso (regras de aplicação) do
// throttle e do limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) retorna uma Decision (allow/deny +
// retry-after + cota restante).
package application
