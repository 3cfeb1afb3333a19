package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/navetta/navetta/pkg/api/routes"
)

func SetupServer(listen string) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.DriversRouter(group.Group("/drivers"))

	return webApp.Listen(listen)
}
