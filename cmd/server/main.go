package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saleshub/backend/internal/catalog"
	"saleshub/backend/internal/config"
	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/httpapi"
	"saleshub/backend/internal/ledger"
	"saleshub/backend/internal/sales"
	"saleshub/backend/internal/settings"
	"saleshub/backend/internal/store"
	"saleshub/backend/internal/store/memory"
	pgstore "saleshub/backend/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv load: %v", err)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	settingsStore := settings.Store(settings.NewMemoryStore())
	if cfg.RedisAddr != "" {
		redisStore := settings.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisStore.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), credit defaults kept in memory", err)
		} else {
			settingsStore = redisStore
			closers = append(closers, redisStore.Close)
			log.Println("settings: redis")
		}
	} else {
		log.Println("settings: in-memory")
	}

	catalogSvc := catalog.New(repo)
	fallback := domain.CreditDefaults{MaxAmount: cfg.DefaultMaxAmount, MaxTerm: cfg.DefaultMaxTerm}
	ledgerSvc, err := ledger.New(ctx, repo, settingsStore, fallback)
	if err != nil {
		log.Fatalf("ledger init: %v", err)
	}
	engine := sales.New(repo, catalogSvc, ledgerSvc)
	api := httpapi.New(catalogSvc, ledgerSvc, engine, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("saleshub backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}
