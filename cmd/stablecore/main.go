package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StableCore/internal/engine"
	"StableCore/internal/event"
	"StableCore/internal/ingestion"
	"StableCore/internal/observability"
	"StableCore/internal/oracle"
	"StableCore/internal/persistence"
	"StableCore/internal/server"
	"StableCore/internal/token"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	// Postgres
	PostgresURL string

	// NATS
	NATSURL string

	// Channels
	PersistChanSize int
	PublishChanSize int

	// Persistence worker
	PersistBatchSize    int
	PersistFlushTimeout time.Duration

	// HTTP/Metrics
	HTTPAddr    string
	MetricsAddr string

	// Migrations
	MigrationsDir string

	// Collateral universe: comma-separated SYMBOL:FEED pairs,
	// e.g. "WETH:eth-usd,WBTC:btc-usd"
	CollateralTokens string

	// Stable unit symbol
	StableSymbol string
}

func DefaultConfig() Config {
	return Config{
		PostgresURL:         envOrDefault("STABLE_POSTGRES_URL", "postgres://localhost:5432/stablecore?sslmode=disable"),
		NATSURL:             envOrDefault("STABLE_NATS_URL", "nats://localhost:4222"),
		PersistChanSize:     envIntOrDefault("STABLE_PERSIST_CHAN_SIZE", 1024),
		PublishChanSize:     envIntOrDefault("STABLE_PUBLISH_CHAN_SIZE", 2048),
		PersistBatchSize:    envIntOrDefault("STABLE_PERSIST_BATCH_SIZE", 50),
		PersistFlushTimeout: 10 * time.Millisecond,
		HTTPAddr:            envOrDefault("STABLE_HTTP_ADDR", ":8080"),
		MetricsAddr:         envOrDefault("STABLE_METRICS_ADDR", ":9091"),
		MigrationsDir:       envOrDefault("STABLE_MIGRATIONS_DIR", "migrations"),
		CollateralTokens:    envOrDefault("STABLE_COLLATERAL_TOKENS", "WETH:eth-usd,WBTC:btc-usd"),
		StableSymbol:        envOrDefault("STABLE_SYMBOL", "SUSD"),
	}
}

// custodyAccount is the engine's deterministic account on the external
// token ledgers. Derived from a fixed name so restarts agree on it.
var custodyAccount = uuid.NewSHA1(uuid.NameSpaceOID, []byte("stablecore.custody"))

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: StableCore starting...")

	cfg := DefaultConfig()

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Fatalf("FATAL: postgres open: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("FATAL: postgres ping: %v", err)
	}
	log.Println("INFO: Postgres connected")

	// --- Run SQL migrations ---
	migrator := persistence.NewMigrator(db, cfg.MigrationsDir)
	if err := migrator.Up(ctx); err != nil {
		log.Fatalf("FATAL: run migrations: %v", err)
	}
	log.Println("INFO: migrations applied")

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("FATAL: nats connect: %v", err)
	}
	defer nc.Close()
	log.Println("INFO: NATS connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		log.Fatalf("FATAL: ensure NATS streams: %v", err)
	}
	if err := ingestion.EnsureRecordStream(ctx, js); err != nil {
		log.Fatalf("FATAL: ensure record stream: %v", err)
	}

	// --- Oracle price store fed from NATS ---
	priceStore := oracle.NewStore()
	priceSubscriber := ingestion.NewPriceSubscriber(js, priceStore)
	if err := priceSubscriber.Subscribe(ctx); err != nil {
		log.Fatalf("FATAL: nats subscribe: %v", err)
	}

	// --- Token ledgers ---
	collateralTokens, priceFeeds, err := parseCollateralTokens(cfg.CollateralTokens)
	if err != nil {
		log.Fatalf("FATAL: parse STABLE_COLLATERAL_TOKENS: %v", err)
	}
	stable := token.NewMemoryStable(cfg.StableSymbol)

	// --- Channels ---
	// Persist channel blocks (backpressure), publish channel drops.
	persistChan := make(chan event.Record, cfg.PersistChanSize)
	publishChan := make(chan event.Record, cfg.PublishChanSize)

	// --- Engine ---
	eng, err := engine.New(engine.Config{
		CollateralTokens: collateralTokens,
		PriceFeeds:       priceFeeds,
		Stable:           stable,
		Feed:             priceStore,
		Custody:          custodyAccount,
		Logger:           observability.NewLogger("engine"),
		Metrics:          metrics,
		PersistChan:      persistChan,
		PublishChan:      publishChan,
	})
	if err != nil {
		log.Fatalf("FATAL: build engine: %v", err)
	}

	// --- HTTP server ---
	httpServer := server.New(cfg.HTTPAddr, &server.Deps{
		Engine:        eng,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        observability.NewLogger("http"),
	})

	// --- Start goroutines ---
	errChan := make(chan error, 10)

	// 1. Persistence worker
	recordWorker := persistence.NewRecordWorker(db, persistChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout, metrics)
	go func() {
		errChan <- recordWorker.Run(ctx)
	}()

	// 2. Outbound record publisher
	recordPublisher := ingestion.NewRecordPublisher(js, publishChan)
	go func() {
		errChan <- recordPublisher.Run(ctx)
	}()

	// 3. HTTP API server
	go func() {
		errChan <- httpServer.Start()
	}()

	// 4. Prometheus metrics server
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			metricsServer.Shutdown(shutCtx)
		}()
		log.Printf("INFO: Metrics server listening on %s/metrics", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Mark service as ready after all goroutines started
	healthChecker.SetReady(true)

	log.Printf("INFO: StableCore ready (tokens=%s, http=%s, metrics=%s)",
		cfg.CollateralTokens, cfg.HTTPAddr, cfg.MetricsAddr)

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Printf("INFO: received signal %s, shutting down...", sig)
	case err := <-errChan:
		log.Printf("ERROR: goroutine failed: %v, shutting down...", err)
	}

	// --- Graceful shutdown ---
	healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: http shutdown: %v", err)
	}

	priceSubscriber.Stop()
	cancel()

	// Closing the channels lets the workers flush and exit.
	close(persistChan)
	close(publishChan)

	log.Println("INFO: StableCore shutdown complete")
}

// parseCollateralTokens splits "WETH:eth-usd,WBTC:btc-usd" into parallel
// ledger and feed lists in declaration order.
func parseCollateralTokens(spec string) ([]token.Ledger, []string, error) {
	var ledgers []token.Ledger
	var feeds []string

	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		symbol, feed, ok := strings.Cut(pair, ":")
		if !ok || symbol == "" || feed == "" {
			return nil, nil, fmt.Errorf("malformed pair %q, want SYMBOL:FEED", pair)
		}
		ledgers = append(ledgers, token.NewMemoryLedger(symbol))
		feeds = append(feeds, feed)
	}

	if len(ledgers) == 0 {
		return nil, nil, fmt.Errorf("no collateral tokens configured")
	}
	return ledgers, feeds, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}
