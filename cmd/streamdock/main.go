package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/streamdock/streamdock/internal/cache"
	"github.com/streamdock/streamdock/internal/config"
	"github.com/streamdock/streamdock/internal/query"
	"github.com/streamdock/streamdock/internal/server"
	"github.com/streamdock/streamdock/internal/service"
	"github.com/streamdock/streamdock/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Locate and run migrations.
	absMigrations, err := filepath.Abs("migrations")
	if err != nil {
		absMigrations = "migrations"
	}
	if _, err := os.Stat(absMigrations); err != nil {
		if exe, e := os.Executable(); e == nil {
			absMigrations = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	migrationsPath := "file://" + absMigrations
	if err := store.RunMigrations(cfg.DatabaseURL, migrationsPath); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	// Connect to Redis if REDIS_URL is configured.
	var rds *cache.Redis
	var appStore store.Store = pg
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "redis ping: %v\n", err)
			os.Exit(1)
		}

		appStore = store.NewCachedStore(pg, rds)
		fmt.Fprintln(os.Stderr, "redis connected (caching and async refresh enabled)")
	} else {
		fmt.Fprintln(os.Stderr, "redis disabled (REDIS_URL not set)")
	}

	pager := query.NewPager(appStore)
	importer := &service.Importer{
		Store:     appStore,
		Pager:     pager,
		Locker:    rds,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		ProxyBase: cfg.ProxyPublicURL,
	}

	hardReset := func(context.Context) error {
		return store.Reset(cfg.DatabaseURL, migrationsPath)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background refresh worker needs the queue, so Redis is required.
	if rds != nil {
		go runRefreshWorker(ctx, rds, importer)
	}

	srv := server.New(appStore, pager, importer, cfg, rds, hardReset)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

// runRefreshWorker continuously dequeues playlist refresh jobs and runs
// them. It stops when ctx is cancelled.
func runRefreshWorker(ctx context.Context, rds *cache.Redis, importer *service.Importer) {
	log.Println("refresh worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("refresh worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, rds, cache.DefaultQueue, 5*time.Second)
		if err != nil {
			log.Printf("refresh worker: dequeue error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue // timeout, loop back to check ctx
		}

		log.Printf("refresh worker: refreshing playlist %q (%s)", job.PlaylistName, job.PlaylistID)
		pl, err := importer.Refresh(ctx, job.PlaylistID, func(stage string, count int) {
			if count >= 0 {
				log.Printf("refresh[%s]: %s (%d)", job.PlaylistName, stage, count)
			} else {
				log.Printf("refresh[%s]: %s", job.PlaylistName, stage)
			}
		})
		if err != nil {
			log.Printf("refresh worker: %q: %v", job.PlaylistName, err)
			continue
		}
		log.Printf("refresh worker: %q done, %d channels", pl.Name, pl.ChannelCount)
	}
}
