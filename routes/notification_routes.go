package routes

import (
	"github.com/maximusartimus/am-marketplace-sub000/handlers"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/gofiber/fiber/v2"
)

func NotificationRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	notifications := api.Group("/notifications", middleware.Protected())
	notifications.Get("", handlers.GetMyNotifications)
	notifications.Patch("/read-all", handlers.MarkAllNotificationsRead)
	notifications.Patch("/:notificationId/read", handlers.MarkNotificationRead)
}
