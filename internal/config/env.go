package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "BUDGETBOOK_"

// parseEnv loads a .env file from the working directory if there is one and
// overlays cfg with BUDGETBOOK_* variables. A malformed duration panics.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v, ok := lookupEnv("REMOTE_DSN"); ok {
		cfg.RemoteDSN = v
	}
	if v, ok := lookupEnv("LOCAL_DB"); ok {
		cfg.LocalDBPath = v
	}
	if v, ok := lookupEnv("JWT_SECRET"); ok {
		cfg.JWTSecret = v
	}
	if v, ok := lookupEnv("LIST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		cfg.ListTimeout = d
	}
	if v, ok := lookupEnv("LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
