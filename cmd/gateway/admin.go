package main

import (
	"encoding/json"
	"net/http"
	"time"

	"throttle-gateway/middleware/throttle/domain"
	"throttle-gateway/middleware/throttle/infra"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// adminThrottle é o que o painel administrativo precisa de um store:
// inspecionar/trocar a regra e derrubar bloqueios. O BucketStore não expõe
// isso, então com THROTTLE_ALGORITHM=bucket as rotas respondem 501.
type adminThrottle interface {
	Rule() domain.Rule
	Reconfigure(domain.Rule)
	ClearBlocks()
}

type ruleJSON struct {
	MaxRequests   int    `json:"max_requests,omitempty"`
	Window        string `json:"window,omitempty"`
	BlockDuration string `json:"block_duration,omitempty"`
}

func newAdminRouter(store adminThrottle, stats *infra.MemoryStatsStore, log *logrus.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/throttle/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(stats.Snapshot())
	})

	r.Get("/throttle/config", func(w http.ResponseWriter, _ *http.Request) {
		if store == nil {
			http.Error(w, "not supported by this algorithm", http.StatusNotImplemented)
			return
		}
		rule := store.Rule()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(ruleJSON{
			MaxRequests:   rule.MaxRequests,
			Window:        rule.Window.String(),
			BlockDuration: rule.BlockDuration.String(),
		})
	})

	// troca os limites para as avaliações futuras; campos omitidos mantêm o
	// valor vigente, nada é reavaliado retroativamente
	r.Put("/throttle/config", func(w http.ResponseWriter, req *http.Request) {
		if store == nil {
			http.Error(w, "not supported by this algorithm", http.StatusNotImplemented)
			return
		}

		var body ruleJSON
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}

		rule := domain.Rule{MaxRequests: body.MaxRequests}
		var err error
		if rule.Window, err = parseOptionalDuration(body.Window); err != nil {
			http.Error(w, "invalid window: "+err.Error(), http.StatusBadRequest)
			return
		}
		if rule.BlockDuration, err = parseOptionalDuration(body.BlockDuration); err != nil {
			http.Error(w, "invalid block_duration: "+err.Error(), http.StatusBadRequest)
			return
		}

		store.Reconfigure(rule)
		log.WithFields(logrus.Fields{
			"max":    store.Rule().MaxRequests,
			"window": store.Rule().Window,
			"block":  store.Rule().BlockDuration,
		}).Info("throttle reconfigured")
		w.WriteHeader(http.StatusNoContent)
	})

	// override administrativo: esvazia o conjunto de bloqueio, sem auditoria
	r.Delete("/throttle/blocks", func(w http.ResponseWriter, _ *http.Request) {
		if store == nil {
			http.Error(w, "not supported by this algorithm", http.StatusNotImplemented)
			return
		}
		store.ClearBlocks()
		log.Info("throttle blocks cleared")
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
