package handlers

import (
	"errors"
	"log"

	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func GetListingReviews(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	var reviews []models.Review
	if err := database.DB.
		Preload("Buyer").
		Where("listing_id = ?", listingID).
		Order("created_at desc").
		Find(&reviews).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reviews"})
	}

	return c.JSON(reviews)
}

func CreateReview(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var listing models.Listing
	if err := database.DB.Where("id = ? AND status <> ?", listingID, "removed").First(&listing).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
	}
	if listing.SellerID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot review your own listing"})
	}

	var existing models.Review
	if err := database.DB.Where("listing_id = ? AND buyer_id = ?", listingID, userID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You have already reviewed this listing"})
	}

	review := models.Review{
		ListingID: listingID,
		BuyerID:   userID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		return recomputeListingRating(tx, listingID)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create review"})
	}

	notification := models.Notification{
		RecipientID: listing.SellerID,
		Kind:        "new_review",
		Preview:     listing.Title,
		Link:        "/listings/" + listing.Slug,
	}
	if err := database.DB.Create(&notification).Error; err != nil {
		log.Printf("Failed to notify seller %s about review %s: %v", listing.SellerID, review.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}

func DeleteMyReview(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	reviewID, err := uuid.Parse(c.Params("reviewId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid review ID"})
	}

	var review models.Review
	if err := database.DB.Where("id = ?", reviewID).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Review not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if review.BuyerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You don't own this review"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&review).Error; err != nil {
			return err
		}
		return recomputeListingRating(tx, review.ListingID)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete review"})
	}

	return c.JSON(fiber.Map{"message": "Review deleted"})
}

func recomputeListingRating(tx *gorm.DB, listingID uuid.UUID) error {
	var stats struct {
		Average float64
		Count   int64
	}
	err := tx.Model(&models.Review{}).
		Where("listing_id = ?", listingID).
		Select("COALESCE(AVG(rating), 0) as average, COUNT(*) as count").
		Scan(&stats).Error
	if err != nil {
		return err
	}

	return tx.Model(&models.Listing{}).
		Where("id = ?", listingID).
		Updates(map[string]interface{}{
			"rating_average": stats.Average,
			"rating_count":   stats.Count,
		}).Error
}
