package handlers

import (
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/maximusartimus/am-marketplace-sub000/services"
	"github.com/maximusartimus/am-marketplace-sub000/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ListingRequest struct {
	Title        string     `json:"title" validate:"required,min=3,max=120"`
	Description  string     `json:"description" validate:"required,min=10"`
	Category     string     `json:"category" validate:"required,min=2,max=50"`
	Condition    string     `json:"condition" validate:"required,oneof=new like_new used for_parts"`
	Currency     string     `json:"currency" validate:"required,iso4217"`
	Price        float64    `json:"price" validate:"required,gt=0"`
	SalePrice    *float64   `json:"sale_price" validate:"omitempty,gt=0"`
	SaleStartsAt *time.Time `json:"sale_starts_at"`
	SaleEndsAt   *time.Time `json:"sale_ends_at"`
	ImageURLs    []string   `json:"image_urls" validate:"max=8,dive,url"`
}

type listingResponse struct {
	models.Listing
	CurrentPrice    float64  `json:"current_price"`
	DiscountPercent int      `json:"discount_percent"`
	DisplayCurrency *string  `json:"display_currency,omitempty"`
	DisplayPrice    *float64 `json:"display_price,omitempty"`
}

func toListingResponse(l models.Listing, displayCurrency string) listingResponse {
	now := time.Now()
	resp := listingResponse{
		Listing:         l,
		CurrentPrice:    l.CurrentPrice(now),
		DiscountPercent: l.DiscountPercent(now),
	}
	if displayCurrency != "" && displayCurrency != l.Currency {
		converted, err := services.ConvertAmount(resp.CurrentPrice, l.Currency, displayCurrency)
		if err != nil {
			log.Printf("Currency conversion %s -> %s failed: %v", l.Currency, displayCurrency, err)
		} else {
			rounded := math.Round(converted*100) / 100
			resp.DisplayCurrency = &displayCurrency
			resp.DisplayPrice = &rounded
		}
	}
	return resp
}

// BrowseListings is the public search endpoint. Filters: q (title match),
// category, store_id, min_price, max_price; sort: newest, price_asc,
// price_desc, rating.
func BrowseListings(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "24"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 24
	}
	offset := (page - 1) * pageSize

	query := database.DB.Model(&models.Listing{}).Where("status = ?", "active")

	if q := c.Query("q"); q != "" {
		query = query.Where("title ILIKE ?", "%"+q+"%")
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if storeID := c.Query("store_id"); storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if minPrice, err := strconv.ParseFloat(c.Query("min_price"), 64); err == nil {
		query = query.Where("price >= ?", minPrice)
	}
	if maxPrice, err := strconv.ParseFloat(c.Query("max_price"), 64); err == nil {
		query = query.Where("price <= ?", maxPrice)
	}

	switch c.Query("sort", "newest") {
	case "price_asc":
		query = query.Order("price asc")
	case "price_desc":
		query = query.Order("price desc")
	case "rating":
		query = query.Order("rating_average desc, rating_count desc")
	default:
		query = query.Order("created_at desc")
	}

	var total int64
	query.Count(&total)

	var listings []models.Listing
	if err := query.
		Preload("Images").
		Limit(pageSize).
		Offset(offset).
		Find(&listings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch listings"})
	}

	displayCurrency := c.Query("currency")
	responses := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		responses = append(responses, toListingResponse(l, displayCurrency))
	}

	return c.JSON(fiber.Map{
		"listings":    responses,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

func GetListingBySlug(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var listing models.Listing
	if err := database.DB.
		Preload("Images").
		Preload("Store").
		Where("slug = ? AND status <> ?", slug, "removed").
		First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	// View counter is best-effort.
	if err := database.DB.Model(&models.Listing{}).
		Where("id = ?", listing.ID).
		Update("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		log.Printf("Failed to bump view count for listing %s: %v", listing.ID, err)
	}

	return c.JSON(toListingResponse(listing, c.Query("currency")))
}

func CreateListing(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var store models.Store
	if err := database.DB.Where("owner_id = ?", userID).First(&store).Error; err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Create a store before listing items"})
	}

	var req ListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.SalePrice != nil && *req.SalePrice >= req.Price {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Sale price must be below the regular price"})
	}

	var listing models.Listing
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := utils.GenerateUniqueSlug(tx, &models.Listing{}, req.Title)
		if err != nil {
			return err
		}

		listing = models.Listing{
			StoreID:      store.ID,
			SellerID:     userID,
			Title:        req.Title,
			Slug:         slug,
			Description:  req.Description,
			Category:     req.Category,
			Condition:    req.Condition,
			Currency:     req.Currency,
			Price:        req.Price,
			SalePrice:    req.SalePrice,
			SaleStartsAt: req.SaleStartsAt,
			SaleEndsAt:   req.SaleEndsAt,
		}
		if err := tx.Create(&listing).Error; err != nil {
			return err
		}

		for i, url := range req.ImageURLs {
			image := models.ListingImage{ListingID: listing.ID, URL: url, Position: i}
			if err := tx.Create(&image).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create listing"})
	}

	database.DB.Preload("Images").First(&listing, "id = ?", listing.ID)
	return c.Status(fiber.StatusCreated).JSON(listing)
}

func UpdateListing(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	var listing models.Listing
	if err := database.DB.Where("id = ?", listingID).First(&listing).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
	}
	if listing.SellerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You don't own this listing"})
	}
	if listing.Status == "removed" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This listing was removed by moderation"})
	}

	type UpdateRequest struct {
		Title        *string    `json:"title"`
		Description  *string    `json:"description"`
		Category     *string    `json:"category"`
		Condition    *string    `json:"condition"`
		Price        *float64   `json:"price"`
		SalePrice    *float64   `json:"sale_price"`
		SaleStartsAt *time.Time `json:"sale_starts_at"`
		SaleEndsAt   *time.Time `json:"sale_ends_at"`
		Status       *string    `json:"status"`
	}
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Category != nil {
		listing.Category = *req.Category
	}
	if req.Condition != nil {
		listing.Condition = *req.Condition
	}
	if req.Price != nil && *req.Price > 0 {
		listing.Price = *req.Price
	}
	if req.SalePrice != nil {
		if *req.SalePrice <= 0 || *req.SalePrice >= listing.Price {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Sale price must be below the regular price"})
		}
		listing.SalePrice = req.SalePrice
	}
	if req.SaleStartsAt != nil {
		listing.SaleStartsAt = req.SaleStartsAt
	}
	if req.SaleEndsAt != nil {
		listing.SaleEndsAt = req.SaleEndsAt
	}
	if req.Status != nil {
		if *req.Status != "active" && *req.Status != "sold" && *req.Status != "paused" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Status must be active, paused or sold"})
		}
		listing.Status = *req.Status
	}

	if err := database.DB.Save(&listing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update listing"})
	}

	return c.JSON(listing)
}

func DeleteListing(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	var listing models.Listing
	if err := database.DB.Where("id = ?", listingID).First(&listing).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
	}
	if listing.SellerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You don't own this listing"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", listingID).Delete(&models.ListingImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&listing).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete listing"})
	}

	return c.JSON(fiber.Map{"message": "Listing deleted"})
}
