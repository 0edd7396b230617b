package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Storage drivers.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// Config selects and configures a Store.
type Config struct {
	// Driver is none, postgres or badger. Empty selects postgres when
	// DatabaseURL is set and none otherwise.
	Driver string

	DatabaseURL string
	Badger      BadgerConfig
}

// ResolveDriver returns the effective driver name.
func (c Config) ResolveDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver != "" {
		return driver
	}
	if c.DatabaseURL != "" {
		return DriverPostgres
	}
	return DriverNone
}

// Open creates the Store selected by cfg.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch driver := cfg.ResolveDriver(); driver {
	case DriverNone:
		return NewNoop(), nil
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL, logger)
	case DriverBadger:
		return NewBadger(cfg.Badger, logger)
	default:
		return nil, fmt.Errorf("%w: %s (supported: none, postgres, badger)", ErrUnknownDriver, driver)
	}
}
