package handlers

import (
	"errors"
	"log"

	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/maximusartimus/am-marketplace-sub000/services"
	"github.com/maximusartimus/am-marketplace-sub000/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StoreRequest struct {
	Name        string  `json:"name" validate:"required,min=3,max=80"`
	Description *string `json:"description"`
	LogoURL     *string `json:"logo_url"`
	BannerURL   *string `json:"banner_url"`
}

// CreateStore opens a store for the current user and promotes them to
// seller. One store per user.
func CreateStore(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var req StoreRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var existing models.Store
	if err := database.DB.Where("owner_id = ?", userID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You already have a store"})
	}

	var newStore models.Store
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := utils.GenerateUniqueSlug(tx, &models.Store{}, req.Name)
		if err != nil {
			return err
		}

		newStore = models.Store{
			OwnerID:     userID,
			Name:        req.Name,
			Slug:        slug,
			Description: req.Description,
			LogoURL:     req.LogoURL,
			BannerURL:   req.BannerURL,
		}
		if err := tx.Create(&newStore).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ? AND role = ?", userID, "buyer").
			Update("role", "seller").Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create store"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"store":   newStore,
		"message": "Store created. Log in again to refresh your seller role.",
	})
}

func GetMyStore(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var store models.Store
	if err := database.DB.
		Preload("Listings", "status <> ?", "removed").
		Preload("Listings.Images").
		Where("owner_id = ?", userID).
		First(&store).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "You don't have a store yet"})
	}

	return c.JSON(store)
}

func UpdateMyStore(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var store models.Store
	if err := database.DB.Where("owner_id = ?", userID).First(&store).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "You don't have a store yet"})
	}

	type UpdateRequest struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		LogoURL     *string `json:"logo_url"`
		BannerURL   *string `json:"banner_url"`
	}
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if req.Name != nil {
		store.Name = *req.Name
	}
	if req.Description != nil {
		store.Description = req.Description
	}
	if req.LogoURL != nil {
		store.LogoURL = req.LogoURL
	}
	if req.BannerURL != nil {
		store.BannerURL = req.BannerURL
	}

	if err := database.DB.Save(&store).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update store"})
	}

	return c.JSON(store)
}

// GetStoreBySlug is the public storefront: the store plus its active
// listings.
func GetStoreBySlug(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var store models.Store
	if err := database.DB.
		Preload("Listings", "status = ?", "active").
		Preload("Listings.Images").
		Where("slug = ?", slug).
		First(&store).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Store not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(store)
}

// ExportMyCatalog renders the seller's catalog to a PDF and uploads it.
// The render runs in the background; the seller is notified with the URL
// when it's done.
func ExportMyCatalog(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var store models.Store
	if err := database.DB.
		Preload("Listings", "status = ?", "active").
		Preload("Listings.Images").
		Where("owner_id = ?", userID).
		First(&store).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "You don't have a store yet"})
	}

	go func() {
		if err := services.GenerateCatalogPDF(store); err != nil {
			log.Printf("🔥 Catalog export failed for store %s: %v", store.ID, err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Catalog export started. You will be notified when it's ready."})
}
