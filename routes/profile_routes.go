package routes

import (
	"github.com/maximusartimus/am-marketplace-sub000/handlers"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/gofiber/fiber/v2"
)

func ProfileRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	profile := api.Group("/profile", middleware.Protected())
	profile.Get("", handlers.GetProfile)
	profile.Put("", handlers.UpdateProfile)
}
