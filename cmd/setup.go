package cmd

import (
	"fmt"

	"cuebase/config"
	"cuebase/db"
	"cuebase/logger"
)

// initRuntime loads config and opens the database for offline commands.
// The caller closes db.DB when done.
func initRuntime() (*config.Config, error) {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
	})

	if err := db.ConnectDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.InitDB(); err != nil {
		db.DB.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	if err := db.ConnectGormDB(); err != nil {
		db.DB.Close()
		return nil, fmt.Errorf("failed to initialize ORM: %w", err)
	}
	return cfg, nil
}
