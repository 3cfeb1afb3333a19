package tracking

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/navetta/navetta/pkg/connectivity"
	"github.com/navetta/navetta/pkg/database"
	"github.com/navetta/navetta/pkg/locationstore"
	"github.com/navetta/navetta/pkg/redis_client"
	"github.com/navetta/navetta/pkg/tracking/coordinator"
	"github.com/navetta/navetta/pkg/tracking/geocoder"
	"github.com/navetta/navetta/pkg/tracking/geosource"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Driver tracking sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a tracking session for a driver",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "driver",
						Usage:    "driver identifier to track",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "trip",
						Usage: "trip identifier to associate captures with",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Value: DefaultCaptureInterval,
						Usage: "time between periodic captures",
					},
					&cli.StringFlag{
						Name:  "route",
						Usage: "simulated route as 'lat,lon;lat,lon;...'",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					route, err := parseRoute(c.String("route"))
					if err != nil {
						return err
					}

					monitor := connectivity.NewProbeMonitor("", 0)
					monitorCtx, cancelMonitor := context.WithCancel(context.Background())
					defer cancelMonitor()
					go monitor.Run(monitorCtx)

					tracker, err := NewTracker(Options{
						DriverID:  c.String("driver"),
						TripID:    c.String("trip"),
						Interval:  c.Duration("interval"),
						UserAgent: fmt.Sprintf("navetta-tracker/%s", c.App.Version),
					},
						geosource.NewSimulatedSource(route, 12),
						geocoder.NewClient(),
						locationstore.NewMongoStore(),
						coordinator.NewRedisBus(redis_client.Client),
						monitor,
					)
					if err != nil {
						return err
					}

					if err := tracker.Start(context.Background()); err != nil {
						return err
					}
					defer tracker.Stop()

					log.Info().Str("driver", c.String("driver")).Msg("Tracking session started")

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					return nil
				},
			},
		},
	}
}

func parseRoute(encoded string) ([]geosource.RoutePoint, error) {
	// Short default drive through central Recife for local testing.
	if encoded == "" {
		encoded = "-8.0476,-34.8813;-8.0529,-34.8817;-8.0578,-34.8829"
	}

	var route []geosource.RoutePoint

	for _, pair := range strings.Split(encoded, ";") {
		coordinates := strings.Split(strings.TrimSpace(pair), ",")
		if len(coordinates) != 2 {
			return nil, fmt.Errorf("invalid route point %q", pair)
		}

		latitude, err := strconv.ParseFloat(strings.TrimSpace(coordinates[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid route latitude %q", coordinates[0])
		}
		longitude, err := strconv.ParseFloat(strings.TrimSpace(coordinates[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid route longitude %q", coordinates[1])
		}

		route = append(route, geosource.RoutePoint{Latitude: latitude, Longitude: longitude})
	}

	return route, nil
}
