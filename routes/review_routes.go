package routes

import (
	"github.com/maximusartimus/am-marketplace-sub000/handlers"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/gofiber/fiber/v2"
)

func ReviewRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/listings/:listingId/reviews", handlers.GetListingReviews)
	api.Post("/listings/:listingId/reviews", middleware.Protected(), handlers.CreateReview)
	api.Delete("/reviews/:reviewId", middleware.Protected(), handlers.DeleteMyReview)
}
