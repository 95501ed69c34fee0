package cli

import (
	"fmt"

	"github.com/harun/cortex/internal/config"
	"github.com/harun/cortex/internal/logger"
	"github.com/harun/cortex/pkg/cortex"
)

// app bundles what a command needs and releases it in Close
type app struct {
	config *config.Config
	log    *logger.Logger
	cortex *cortex.Cortex
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openApp loads configuration, sets up logging, builds the cortex and
// registers the modules found in the configured directories. Console
// logging is only enabled for long-running commands.
func openApp(console bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Logging.Level,
		File:     cfg.Logging.File,
		Console:  console && cfg.Logging.Console,
		Pretty:   cfg.Logging.Pretty,
		MaxSize:  cfg.Logging.MaxSize,
		MaxAge:   cfg.Logging.MaxAge,
		Compress: cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c, err := cortex.New(cfg, log.GetZerolog())
	if err != nil {
		log.Close()
		return nil, err
	}

	if _, err := c.Discover(); err != nil {
		zl := log.GetZerolog()
		zl.Warn().Err(err).Msg("Some modules failed to register")
	}

	return &app{config: cfg, log: log, cortex: c}, nil
}

func (a *app) Close() error {
	err := a.cortex.Close()
	a.log.Close()
	return err
}
