package app

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"appwatch/internal/checker"
	"appwatch/internal/config"
	"appwatch/internal/history"
	"appwatch/internal/service"
	"appwatch/internal/track"
)

// trackStore returns the registry store rooted at the data directory.
func trackStore(cfg *config.Config) *track.Store {
	return track.NewStore(cfg.DataDir)
}

// loadConfig resolves the data directory (flag over default), makes sure
// it exists, and loads the configuration.
func loadConfig() (*config.Config, error) {
	dir := dataDir
	if dir == "" {
		def, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = def
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures logrus from config and flags. With a log file
// set, output goes through lumberjack for rotation; otherwise stderr.
func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	logPath := cfg.LogFile
	if logFile != "" {
		logPath = logFile
	}
	if logPath != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		})
	}
}

// newService assembles the service stack for one command invocation. The
// returned cleanup closes the history database and must always be called.
func newService(cfg *config.Config) (*service.Service, func(), error) {
	registry := checker.NewRegistry(checker.Options{
		GitHubToken:   cfg.GitHubToken,
		HTTPTimeout:   cfg.HTTPTimeout,
		WingetTimeout: cfg.WingetTimeout,
		BrewTimeout:   cfg.BrewTimeout,
	})
	store := trackStore(cfg)

	opts := []service.Option{service.WithMaxConcurrent(cfg.MaxConcurrentChecks)}
	cleanup := func() {}

	if cfg.HistoryEnabled {
		hist, err := history.New(cfg.HistoryPath())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history database: %w", err)
		}
		if err := hist.CreateSchema(); err != nil {
			hist.Close()
			return nil, nil, fmt.Errorf("failed to create history schema: %w", err)
		}
		opts = append(opts, service.WithHistory(hist))
		cleanup = func() { hist.Close() }
	}

	return service.New(registry, store, opts...), cleanup, nil
}

// openHistory opens the history database read path for the history
// command.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.HistoryEnabled {
		return nil, fmt.Errorf("check history is disabled in the configuration")
	}
	hist, err := history.New(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := hist.CreateSchema(); err != nil {
		hist.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return hist, nil
}
