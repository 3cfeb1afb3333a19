package api

import (
	"github.com/navetta/navetta/pkg/api/live"
	"github.com/navetta/navetta/pkg/database"
	"github.com/navetta/navetta/pkg/redis_client"
	"github.com/navetta/navetta/pkg/tracking/coordinator"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the core web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					live.Setup(coordinator.NewRedisBus(redis_client.Client))

					return SetupServer(c.String("listen"))
				},
			},
		},
	}
}
