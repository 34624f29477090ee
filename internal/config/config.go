// Package config loads runtime settings for the budgetbook client.
package config

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
)

// Config holds runtime settings.
//
//   - RemoteDSN: Postgres connection string of the shared store. Empty means
//     the client can only run in guest mode.
//   - LocalDBPath: SQLite file holding device state and guest data.
//   - JWTSecret: HS256 secret used to verify session access tokens.
//   - ListTimeout: time budget for listing calls against the remote store.
type Config struct {
	RemoteDSN   string
	LocalDBPath string
	JWTSecret   string
	ListTimeout time.Duration
	LogFormat   string
	LogLevel    string
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.RemoteDSN = ""
	c.LocalDBPath = "budgetbook.db"
	c.JWTSecret = ""
	c.ListTimeout = common.DefaultListTimeout
	c.LogFormat = "text"
	c.LogLevel = "info"
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.LocalDBPath == "" {
		errs = append(errs, errors.New("local db path is required"))
	}
	if c.ListTimeout <= 0 {
		errs = append(errs, errors.New("list timeout must be positive"))
	}
	if c.RemoteDSN != "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required when a remote store is configured"))
	}
	return errors.Join(errs...)
}

// LoadConfig applies defaults, then JSON (-c/-config), then environment
// (.env and BUDGETBOOK_*), then command-line flags. Later sources win.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
