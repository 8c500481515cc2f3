package routes

import (
	"github.com/maximusartimus/am-marketplace-sub000/handlers"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/listings", handlers.BrowseListings)
	api.Get("/listings/:slug", handlers.GetListingBySlug)
	api.Get("/stores/:slug", handlers.GetStoreBySlug)
	api.Get("/users/:userId/profile", handlers.GetPublicProfile)
	api.Get("/rates", handlers.GetExchangeRates)
}
