// Command accountauth-migrate applies the embedded schema migrations to the
// configured Postgres database and reports the resulting state. Deployments
// that cannot let the service migrate on boot run this as a release step.
//
// Usage:
//
//	accountauth-migrate -config /etc/accountauth/config.yaml
//	accountauth-migrate -dsn postgres://auth@localhost:5432/auth
//
// The DSN flag wins over the config file when both are given.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/veldtec/accountauth/config"
	"github.com/veldtec/accountauth/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	dsn := flag.String("dsn", "", "Postgres DSN (overrides the config file)")
	timeout := flag.Duration("timeout", time.Minute, "overall migration timeout")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	target := *dsn
	if target == "" {
		if *configPath == "" {
			logger.Fatal().Msg("either -config or -dsn is required")
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load config")
		}
		target = cfg.Database.DSN
	}
	if target == "" {
		logger.Fatal().Msg("no database DSN configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// NewPostgres applies pending migrations as part of opening the store.
	store, err := storage.NewPostgres(ctx, target)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	defer store.Close()

	logger.Info().Msg("schema is up to date")
}
