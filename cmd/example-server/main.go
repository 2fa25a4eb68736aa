package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"throttle-gateway/middleware/throttle"
	"throttle-gateway/middleware/throttle/domain"
	"throttle-gateway/middleware/throttle/infra"

	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()

	// Exemplo: injetando o middleware diretamente no seu webserver (sem proxy).
	// 5 requisições por janela de 10s; estourou, bloqueia por 30s.
	store := infra.NewWindowStore(domain.Rule{
		MaxRequests:   5,
		Window:        10 * time.Second,
		BlockDuration: 30 * time.Second,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = throttle.ConcurrencyMiddleware(throttle.ConcurrencyOptions{Max: 50})(h)
	h = throttle.Middleware(throttle.Options{
		Admitter:           store,
		TrustXForwardedFor: true, // fallback por IP quando faltar user agent
		AddThrottleHeaders: true,
	})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
