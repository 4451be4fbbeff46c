package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/RyanHill92/canvass/internal/config"
	"github.com/RyanHill92/canvass/internal/consumer"
	"github.com/RyanHill92/canvass/internal/household"
	"github.com/RyanHill92/canvass/internal/logger"
	"github.com/RyanHill92/canvass/internal/metrics"
)

const dbWaitLimit = 30 * time.Second

var requiredEnv = []string{
	config.LicenseKeyEnv,
}

func main() {
	configPath := flag.String("config", os.Getenv("CANVASS_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("error running app", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	for _, key := range requiredEnv {
		if _, ok := os.LookupEnv(key); !ok {
			return fmt.Errorf("must set %s", key)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("main")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client, err := consumer.NewClient(cfg.Consumer, m)
	if err != nil {
		return fmt.Errorf("error initializing consumer client: %w", err)
	}

	checks := make(map[string]pinger)
	var fetcher consumer.Fetcher = client
	if cfg.Redis.Enabled() {
		rdb, err := consumer.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("error connecting to redis: %w", err)
		}
		defer func() {
			log.Info("closing redis")
			rdb.Close()
		}()
		cached := consumer.NewCachedFetcher(client, rdb, cfg.Redis.CacheTTL, m)
		checks["redis"] = cached
		fetcher = cached
	}

	var store household.Store = household.NewMemoryStore()
	if cfg.MySQL.Enabled() {
		db, err := sql.Open("mysql", cfg.MySQL.DSN())
		if err != nil {
			return fmt.Errorf("error opening DB connection: %w", err)
		}

		defer func() {
			log.Info("closing database")
			db.Close()
		}()

		if err := waitForDB(db, dbWaitLimit); err != nil {
			return err
		}
		if err := household.EnsureSchema(context.Background(), db); err != nil {
			return err
		}

		mysqlStore, err := household.NewMySQLStore(db)
		if err != nil {
			return fmt.Errorf("error initializing store: %w", err)
		}

		defer func() {
			log.Info("closing store")
			mysqlStore.Close()
		}()

		checks["mysql"] = mysqlStore
		store = mysqlStore
	}

	h := &handler{
		fetcher:  fetcher,
		explorer: household.NewExplorer(store, cfg.Explorer.IdleTTL),
		consumer: cfg.Consumer,
		metrics:  m,
		checks:   checks,
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newRouter(h, m, cfg.Metrics.Enabled),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		log.Info("web service listening", "addr", server.Addr, "cache", cfg.Redis.Enabled(), "mysql", cfg.MySQL.Enabled())
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		server.Close()
		return fmt.Errorf("could not stop server gracefully: %w", err)
	}

	return nil
}

func newRouter(h *handler, m *metrics.Metrics, exposeMetrics bool) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestID, m.Middleware)

	router.HandleFunc("/", h.ReportHealth).Methods("GET")
	if exposeMetrics {
		router.Handle("/metrics", m.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/nearest-houses", h.NearestHouses).Methods("POST")
	api.HandleFunc("/households", h.ListHouseholds).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}/households", h.GetSessionHouseholds).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}/households/{key}", h.SaveAnnotation).Methods("PUT")
	api.HandleFunc("/sessions/{sessionID}", h.DiscardSession).Methods("DELETE")
	api.HandleFunc("/cache", h.InvalidateCache).Methods("DELETE")

	return router
}

// waitForDB polls the database until it answers or limit passes.
func waitForDB(db *sql.DB, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	for {
		time.Sleep(200 * time.Millisecond)
		err := db.Ping()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not reachable after %s: %w", limit, err)
		}
	}
}
