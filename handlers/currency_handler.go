package handlers

import (
	"github.com/maximusartimus/am-marketplace-sub000/services"
	"github.com/gofiber/fiber/v2"
)

func GetExchangeRates(c *fiber.Ctx) error {
	rates, err := services.FetchRates()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Exchange rates are currently unavailable"})
	}
	return c.JSON(rates)
}
