package main

import (
	"os"
	"time"

	"github.com/navetta/navetta/pkg/api"
	"github.com/navetta/navetta/pkg/dbwatch"
	"github.com/navetta/navetta/pkg/tracking"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("NAVETTA_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("NAVETTA_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "navetta",
		Description: "Single binary of truth for Navetta - runs all the services",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			tracking.RegisterCLI(),
			dbwatch.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
