package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/flagx"
)

// parseFlags overlays cfg with command-line flags:
//
//	-d string   remote Postgres DSN
//	-l string   local SQLite path
//	-s string   JWT secret
//	-t int      list timeout in seconds
//
// Other flags are filtered out first so they do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-l", "-s", "-t"})

	fs := flag.NewFlagSet("budgetbook", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteDSN, "d", cfg.RemoteDSN, "remote Postgres DSN")
	fs.StringVar(&cfg.LocalDBPath, "l", cfg.LocalDBPath, "local SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "JWT secret for session tokens")
	timeout := fs.Int("t", int(cfg.ListTimeout.Seconds()), "list timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.ListTimeout = time.Duration(*timeout) * time.Second
		}
	})
}
