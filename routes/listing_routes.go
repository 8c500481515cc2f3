package routes

import (
	"github.com/maximusartimus/am-marketplace-sub000/handlers"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/gofiber/fiber/v2"
)

func ListingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	listings := api.Group("/my/listings", middleware.Protected(), middleware.SellerRequired())
	listings.Post("", handlers.CreateListing)
	listings.Put("/:listingId", handlers.UpdateListing)
	listings.Delete("/:listingId", handlers.DeleteListing)
}
