package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/budgetbook/internal/flagx"
	"github.com/dmitrijs2005/budgetbook/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept "8s"
// style strings or integer nanoseconds.
type JsonConfig struct {
	RemoteDSN   string         `json:"remote_dsn"`
	LocalDBPath string         `json:"local_db_path"`
	JWTSecret   string         `json:"jwt_secret"`
	ListTimeout timex.Duration `json:"list_timeout"`
	LogFormat   string         `json:"log_format"`
	LogLevel    string         `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c/-config. Only fields that
// are present in the file are applied. Read or decode errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteDSN != "" {
		cfg.RemoteDSN = jc.RemoteDSN
	}
	if jc.LocalDBPath != "" {
		cfg.LocalDBPath = jc.LocalDBPath
	}
	if jc.JWTSecret != "" {
		cfg.JWTSecret = jc.JWTSecret
	}
	if jc.ListTimeout.Duration > 0 {
		cfg.ListTimeout = jc.ListTimeout.Duration
	}
	if jc.LogFormat != "" {
		cfg.LogFormat = jc.LogFormat
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
