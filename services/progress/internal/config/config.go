package config

import (
	"errors"

	platform "github.com/example/watch-progress/internal/platform/config"
)

type Config struct {
	App         platform.AppConfig
	JWTSecret   []byte
	DatabaseURL string
	DBMaxConns  int
	// Migrate runs the embedded migrations on start (DB_MIGRATE, default on).
	Migrate    bool
	SQLitePath string
	// AsyncSaves enables the JetStream progress.save consumer.
	AsyncSaves bool
	NATSURL    string
}

func Load() (Config, error) {
	app, err := platform.Load("progress")
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		App:         app,
		JWTSecret:   []byte(platform.String("JWT_SECRET", "")),
		DatabaseURL: platform.String("DATABASE_URL", ""),
		DBMaxConns:  platform.Int("DB_MAX_CONNS", 10),
		Migrate:     platform.Bool("DB_MIGRATE", true),
		SQLitePath:  platform.String("SQLITE_PATH", ""),
		AsyncSaves:  platform.Bool("PROGRESS_ASYNC_SAVES", false),
		NATSURL:     platform.String("NATS_URL", ""),
	}
	if len(cfg.JWTSecret) == 0 {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if app.IsProduction() && cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		return Config{}, errors.New("DATABASE_URL or SQLITE_PATH is required in production")
	}
	return cfg, nil
}
