package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/liamcoop/docrules/internal/config"
	"github.com/liamcoop/docrules/internal/logger"
	"github.com/liamcoop/docrules/rules"
	"github.com/liamcoop/docrules/transaction"
)

// components holds everything built from configuration
type components struct {
	db      *sql.DB
	cache   *rules.InMemorySchemaCache
	engine  *rules.Engine
	service *transaction.Service
}

// close releases the database handle, if one was opened
func (c *components) close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func build(cfg *config.Config) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.close()
		}
	}()

	if cfg.NeedsDatabase() {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		c.db = db
	}

	var cache rules.SchemaCache
	if cfg.Schemas.CacheSize > 0 {
		lru, err := rules.NewInMemorySchemaCache(rules.CacheConfig{
			Size: cfg.Schemas.CacheSize,
			TTL:  cfg.Schemas.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		c.cache = lru
		cache = lru
	}

	var store rules.SchemaStore
	switch cfg.Schemas.Source {
	case "postgres":
		store = rules.NewPostgresSchemaStore(c.db, cache)
	default:
		fileStore := rules.NewFileSchemaStore(os.DirFS(cfg.Schemas.Dir), cache)
		failures, err := fileStore.LintAll(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema directory %s: %w", cfg.Schemas.Dir, err)
		}
		for name, ferr := range failures {
			logger.Error("schema will be rejected at load time", "schema", name, "error", ferr)
		}
		store = fileStore
	}

	var repo transaction.Repository
	switch cfg.Storage.Transactions {
	case "postgres":
		repo = transaction.NewPostgresRepository(c.db)
	default:
		repo = transaction.NewMemoryRepository()
	}

	c.engine = rules.NewEngine(store)
	c.service = transaction.NewService(repo, c.engine)
	return c, nil
}

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	if err := logger.Setup(context.Background(), logger.Options{
		Level:           cfg.Log.Level,
		ErrorSampleRate: cfg.Log.ErrorSampleRate,
		OTELEnabled:     cfg.Log.OTELEnabled,
		ServiceName:     cfg.Log.ServiceName,
	}); err != nil {
		logger.Warn("logger setup degraded", "error", err)
	}

	c, err := build(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer c.close()

	server := NewServer(c.engine, c.service, ServerOptions{
		DB:                   c.db,
		Cache:                c.cache,
		RequestTimeout:       cfg.Server.RequestTimeout,
		SlowRequestThreshold: cfg.Server.SlowRequestThreshold,
	})

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting",
			"port", cfg.Server.Port,
			"schemas", cfg.Schemas.Source,
			"transactions", cfg.Storage.Transactions,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}

	logger.Info("server stopped")
}
