package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"throttle-gateway/middleware/throttle"
	"throttle-gateway/middleware/throttle/domain"
	"throttle-gateway/middleware/throttle/infra"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.logLevel); err == nil {
		log.SetLevel(lvl)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).Warn("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	needsRedis := cfg.algorithm == "redis" || cfg.statsRedisEnabled
	if needsRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
	}

	rule := domain.Rule{
		MaxRequests:   cfg.maxRequests,
		Window:        cfg.window,
		BlockDuration: cfg.blockDuration,
	}

	// seleção da estratégia de admissão
	var admitter domain.Admitter
	var admin adminThrottle
	switch cfg.algorithm {
	case "window":
		store := infra.NewWindowStore(rule,
			infra.WithCleanupEvery(cfg.cleanupEvery),
			infra.WithStaleAfter(cfg.staleAfter),
		)
		store.StartJanitor(ctx)
		admitter, admin = store, store
	case "redis":
		store := infra.NewRedisWindowStore(rdb, rule,
			infra.WithWindowPrefix(cfg.redisPrefix),
			infra.WithFailOpen(cfg.failOpen),
		)
		admitter, admin = store, store
	case "bucket":
		store := infra.NewBucketStore(cfg.bucketRPS, cfg.bucketBurst)
		store.StartJanitor(ctx)
		admitter = store
	default:
		log.Fatalf("unknown THROTTLE_ALGORITHM %q (want window, redis or bucket)", cfg.algorithm)
	}

	memStats := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
	stats := domain.StatsStore(memStats)
	if cfg.statsRedisEnabled {
		stats = infra.FanoutStats{
			memStats,
			infra.NewRedisStatsStore(rdb,
				infra.WithStatsPrefix(cfg.statsPrefix),
				infra.WithStatsTTL(cfg.statsTTL),
				infra.WithStatsBucket(cfg.statsBucket),
				infra.WithStatsTrackKeys(cfg.statsTrackKeys),
			),
		}
	}

	h := http.Handler(proxy)
	h = throttle.ConcurrencyMiddleware(throttle.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.throttleEnabled {
		h = throttle.Middleware(throttle.Options{
			Admitter:           admitter,
			Stats:              stats,
			FallbackKey:        cfg.fallbackKey,
			TrustXForwardedFor: cfg.trustXFF,
			RejectStatus:       http.StatusTooManyRequests,
			RetryAfter:         cfg.retryAfter,
			AddThrottleHeaders: cfg.addHeaders,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	adminSrv := &http.Server{
		Addr:              cfg.adminAddr,
		Handler:           newAdminRouter(admin, memStats, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
		_ = adminSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Infof("admin listening on %s", cfg.adminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("admin server error")
		}
	}()

	log.Infof("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.WithFields(logrus.Fields{
		"enabled":   cfg.throttleEnabled,
		"algorithm": cfg.algorithm,
		"max":       cfg.maxRequests,
		"window":    cfg.window,
		"block":     cfg.blockDuration,
		"fallback":  cfg.fallbackKey,
		"trustXFF":  cfg.trustXFF,
	}).Info("throttle")
	log.WithFields(logrus.Fields{
		"redis":     cfg.statsRedisEnabled,
		"bucket":    cfg.statsBucket,
		"ttl":       cfg.statsTTL,
		"trackKeys": cfg.statsTrackKeys,
	}).Info("stats")
	log.WithFields(logrus.Fields{
		"max":            cfg.concurrencyMax,
		"acquireTimeout": cfg.concurrencyTimeout,
	}).Info("concurrency")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr  string
	adminAddr   string
	upstreamURL string
	logLevel    string

	throttleEnabled bool
	algorithm       string
	maxRequests     int
	window          time.Duration
	blockDuration   time.Duration
	cleanupEvery    time.Duration
	staleAfter      time.Duration
	fallbackKey     string
	trustXFF        bool
	retryAfter      time.Duration
	addHeaders      bool

	bucketRPS   float64
	bucketBurst int

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string
	failOpen      bool

	statsRedisEnabled bool
	statsPrefix       string
	statsTTL          time.Duration
	statsBucket       string
	statsTrackKeys    bool

	concurrencyMax     int
	concurrencyTimeout time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.adminAddr = getenvDefault("ADMIN_ADDR", ":9090")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")

	cfg.throttleEnabled = getenvBoolDefault("THROTTLE_ENABLED", true)
	cfg.algorithm = strings.ToLower(getenvDefault("THROTTLE_ALGORITHM", "window"))
	cfg.maxRequests = getenvIntDefault("THROTTLE_MAX_REQUESTS", 10)
	cfg.window = getenvDurationDefault("THROTTLE_WINDOW", 1*time.Minute)
	cfg.blockDuration = getenvDurationDefault("THROTTLE_BLOCK", 5*time.Minute)
	cfg.cleanupEvery = getenvDurationDefault("THROTTLE_CLEANUP_EVERY", 2*time.Minute)
	// 0 = duas janelas, resolvido na varredura
	cfg.staleAfter = getenvDurationDefault("THROTTLE_STALE_AFTER", 0)
	cfg.fallbackKey = os.Getenv("THROTTLE_FALLBACK_KEY")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.addHeaders = getenvBoolDefault("ADD_THROTTLE_HEADERS", false)

	cfg.bucketRPS = getenvFloatDefault("BUCKET_RPS", 10)
	cfg.bucketBurst = getenvIntDefault("BUCKET_BURST", 20)

	cfg.redisAddr = getenvDefault("REDIS_ADDR", "")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisPrefix = getenvDefault("REDIS_PREFIX", "throttle")
	cfg.failOpen = getenvBoolDefault("THROTTLE_FAIL_OPEN", true)

	cfg.statsRedisEnabled = getenvBoolDefault("STATS_REDIS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "throttle:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.maxRequests <= 0 {
		return config{}, errors.New("THROTTLE_MAX_REQUESTS must be > 0")
	}
	if cfg.window <= 0 {
		return config{}, errors.New("THROTTLE_WINDOW must be > 0")
	}
	if cfg.blockDuration <= 0 {
		return config{}, errors.New("THROTTLE_BLOCK must be > 0")
	}
	if cfg.algorithm == "redis" && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when THROTTLE_ALGORITHM=redis")
	}
	if cfg.statsRedisEnabled && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when STATS_REDIS_ENABLED=true")
	}
	if cfg.algorithm == "bucket" && cfg.bucketRPS <= 0 {
		return config{}, errors.New("BUCKET_RPS must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
