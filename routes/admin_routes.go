package routes

import (
	"github.com/maximusartimus/am-marketplace-sub000/handlers"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/dashboard", handlers.AdminDashboard)
	admin.Get("/reports", handlers.ListOpenReports)
	admin.Patch("/reports/:reportId/resolve", handlers.ResolveReport)
	admin.Patch("/listings/:listingId/remove", handlers.RemoveListing)
	admin.Get("/users", handlers.ListUsers)
	admin.Get("/users/export", handlers.ExportUsersCSV)
	admin.Patch("/users/:userId/active", handlers.SetUserActive)
}
