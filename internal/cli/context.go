package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/asecn/memcore/pkg/config"
	"github.com/asecn/memcore/pkg/memcore"
	"github.com/asecn/memcore/pkg/metrics"
)

// loadConfig reads the config file named by --config, or config.yaml inside
// the store directory, then applies flag overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		dir := storeDir
		if dir == "" {
			dir = os.Getenv(config.EnvDir)
		}
		if dir == "" {
			dir = config.Default().Store.Dir
		}
		path = filepath.Join(dir, config.FileName)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if storeDir != "" {
		cfg.Store.Dir = storeDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// openClient opens a client for the configured store. The caller must Close
// it.
func openClient() (*memcore.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.Enabled && !metrics.Enabled() {
		metrics.Init()
	}
	return memcore.Open(memcore.Options{Config: cfg, Metrics: metrics.Default()})
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
