// Command migrate applies the schema migrations embedded in the binary.
// It exists for operators who want to run or roll back migrations outside
// the API server's DB_AUTO_MIGRATE startup path, or inspect the current
// schema version of a Workloy database.
package main

import (
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/workloy/workloy/migrations"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command      string
		steps        int
		forceVersion int
		databaseURL  string
	)

	flag.StringVar(&command, "command", "up", "one of: up, down, force, version, drop")
	flag.IntVar(&steps, "steps", 0, "number of migrations for up/down (0 = all)")
	flag.IntVar(&forceVersion, "force-version", -1, "schema version to force (clears the dirty flag)")
	flag.StringVar(&databaseURL, "database", "", "database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open embedded migrations")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	log.Info().
		Str("command", command).
		Int("steps", steps).
		Msg("Running embedded migrations")

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "force":
		if forceVersion < 0 {
			log.Fatal().Msg("force requires -force-version")
		}
		err = m.Force(forceVersion)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			if verr == migrate.ErrNilVersion {
				log.Info().Msg("No migrations applied yet")
				return
			}
			log.Fatal().Err(verr).Msg("Failed to read schema version")
		}
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Current schema version")
		return
	case "drop":
		err = m.Drop()
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	if err != nil {
		if err == migrate.ErrNoChange {
			log.Info().Msg("Schema already up to date")
			return
		}
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migration finished")
}
