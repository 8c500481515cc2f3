package routes

import (
	"github.com/maximusartimus/am-marketplace-sub000/handlers"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/gofiber/fiber/v2"
)

func StoreRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/stores", middleware.Protected(), handlers.CreateStore)

	myStore := api.Group("/my/store", middleware.Protected())
	myStore.Get("", handlers.GetMyStore)
	myStore.Put("", handlers.UpdateMyStore)
	myStore.Post("/catalog-export", handlers.ExportMyCatalog)
}
