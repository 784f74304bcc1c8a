package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/watch-progress/internal/platform/auth"
	"github.com/example/watch-progress/internal/platform/db"
	"github.com/example/watch-progress/internal/platform/events"
	"github.com/example/watch-progress/internal/platform/httpserver"
	"github.com/example/watch-progress/internal/platform/logging"
	"github.com/example/watch-progress/internal/platform/natsconn"
	"github.com/example/watch-progress/internal/platform/run"
	"github.com/example/watch-progress/services/progress/internal/config"
	"github.com/example/watch-progress/services/progress/internal/handlers"
	"github.com/example/watch-progress/services/progress/internal/service"
	"github.com/example/watch-progress/services/progress/internal/store"
	"github.com/example/watch-progress/services/progress/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.App.LogLevel, cfg.App.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, err := initStore(context.Background(), cfg, log)
	if err != nil {
		log.Error("progress store", zap.Error(err))
		run.Exit(1)
	}
	defer func() { _ = st.Close() }()

	js, closeNATS := initJetStream(cfg, log)
	if closeNATS != nil {
		defer closeNATS()
	}
	if cfg.AsyncSaves && js == nil {
		log.Error("PROGRESS_ASYNC_SAVES requires a reachable NATS server")
		run.Exit(1)
	}

	var pub *events.Publisher
	if js != nil {
		pub = events.New(js, log)
	}
	svc := service.New(st, pub, log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		Logger: log,
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return svc.Ping(ctx)
		},
	})
	handlers.Mount(r, svc, auth.JWTVerifier{Secret: cfg.JWTSecret}, log)

	srv := httpserver.New(httpserver.Options{
		Name:   cfg.App.ServiceName,
		Addr:   cfg.App.HTTP.Addr,
		Router: r,
		Logger: log,
	})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Start(log) })
		g.Go(func() error {
			<-gctx.Done()
			runner.Graceful(srv.Shutdown)
			return nil
		})
		if cfg.AsyncSaves {
			consumer := worker.NewSaveConsumer(js, svc, log)
			g.Go(func() error { return consumer.Run(gctx) })
		}
		return g.Wait()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the ProgressStore backend: Postgres when DATABASE_URL
// is set, then SQLite, then the development-only memory store.
func initStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.ProgressStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		if cfg.Migrate {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{
			ApplicationName: cfg.App.ServiceName,
			MaxConns:        int32(cfg.DBMaxConns),
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("progress store: postgres")
		return store.NewPostgresProgressStore(pool), nil

	case cfg.SQLitePath != "":
		s, err := store.OpenSQLite(cfg.SQLitePath, store.SQLiteOptions{})
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("progress store: sqlite", zap.String("path", cfg.SQLitePath))
		return s, nil
	}

	log.Warn("DATABASE_URL and SQLITE_PATH not set, using in-memory progress store (development only)")
	return store.NewInMemoryProgressStore(), nil
}

// initJetStream connects to NATS when configured. Failure is non-fatal here;
// events are then simply not published.
func initJetStream(cfg config.Config, log *zap.Logger) (nats.JetStreamContext, func()) {
	if cfg.NATSURL == "" && !cfg.AsyncSaves {
		return nil, nil
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.App.ServiceName})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		return nil, nil
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Error("jetstream", zap.Error(err))
		nc.Close()
		return nil, nil
	}
	if err := natsconn.EnsureStream(js, worker.StreamName, "progress.>"); err != nil {
		log.Error("ensure stream", zap.Error(err))
		nc.Close()
		return nil, nil
	}
	return js, nc.Close
}
