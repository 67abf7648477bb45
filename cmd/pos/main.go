package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"MiniPOS/internal/auth"
	"MiniPOS/internal/blobstore"
	"MiniPOS/internal/inventory"
	"MiniPOS/internal/orderai"
	"MiniPOS/pkg/kit"
)

const minSecretLen = 32

func main() {
	service := "pos"
	log := kit.NewLogger(service, os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, service, log); err != nil {
		log.Fatal("pos stopped", zap.Error(err))
	}
}

func run(ctx context.Context, service string, log *zap.Logger) error {
	port := getenv("PORT", "8080")

	loc, err := time.LoadLocation(getenv("STORE_TIMEZONE", "UTC"))
	if err != nil {
		return fmt.Errorf("STORE_TIMEZONE: %w", err)
	}

	shutdownTracing, err := kit.SetupTracing(ctx, service, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	store, closeStore, err := openStore(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var interpreter orderai.Interpreter
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		interpreter = orderai.NewGeminiClient(orderai.Config{
			BaseURL:       os.Getenv("GEMINI_BASE_URL"),
			Model:         getenv("GEMINI_MODEL", orderai.DefaultModel),
			APIKey:        key,
			RatePerMinute: getenvInt("AI_RATE_PER_MIN", 10),
		})
	} else {
		log.Warn("GEMINI_API_KEY not set; order import disabled")
	}

	coord := inventory.New(inventory.Options{
		Store:       store,
		Interpreter: interpreter,
		Log:         log,
		Metrics:     inventory.NewMetrics(reg),
	})
	if err := coord.Load(ctx); err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	authSrv, err := operatorAuth(log)
	if err != nil {
		return err
	}

	metricsToken := os.Getenv("METRICS_TOKEN")
	h := inventory.NewHandler(
		&inventory.Server{Coord: coord, Log: log, Location: loc},
		inventory.HTTPDeps{
			Log:               log,
			Service:           service,
			Registry:          reg,
			MetricsEnabled:    metricsToken != "",
			MetricsToken:      metricsToken,
			Auth:              authSrv,
			LoginLimitPerMin:  getenvInt("LOGIN_RATE_PER_MIN", 5),
			ImportLimitPerMin: getenvInt("IMPORT_RATE_PER_MIN", 20),
		},
	)

	return kit.RunHTTPServer(ctx, ":"+port, h, log)
}

func openStore(ctx context.Context, log *zap.Logger) (blobstore.Store, func(), error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		s, err := blobstore.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info("using postgres blob store")
		return s, func() { _ = s.Close() }, nil
	}

	dir := getenv("DATA_DIR", "./data")
	s, err := blobstore.NewFileStore(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open data dir: %w", err)
	}
	log.Info("using file blob store", zap.String("dir", dir))
	return s, func() {}, nil
}

func operatorAuth(log *zap.Logger) (*auth.Server, error) {
	hash := os.Getenv("OPERATOR_PASSWORD_HASH")
	password := os.Getenv("OPERATOR_PASSWORD")
	if hash == "" && password == "" {
		log.Warn("no operator password configured; write endpoints are open")
		return nil, nil
	}

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < minSecretLen {
		return nil, errors.New("JWT_SECRET must be at least 32 characters when operator auth is on")
	}

	op, err := auth.NewOperator(getenv("OPERATOR_USERNAME", "admin"), hash, password)
	if err != nil {
		return nil, fmt.Errorf("operator: %w", err)
	}

	return &auth.Server{
		Log:      log,
		Operator: op,
		JWT:      auth.NewTokenMaker(secret),
		TTL:      getenvDuration("TOKEN_TTL", auth.DefaultTokenTTL),
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}
