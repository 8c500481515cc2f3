package handlers

import (
	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ReportRequest struct {
	ListingID      *string `json:"listing_id" validate:"omitempty,uuid"`
	ReportedUserID *string `json:"reported_user_id" validate:"omitempty,uuid"`
	Reason         string  `json:"reason" validate:"required,oneof=spam scam prohibited_item offensive counterfeit other"`
	Details        string  `json:"details" validate:"max=2000"`
}

// CreateReport files a moderation report against a listing or a user.
func CreateReport(c *fiber.Ctx) error {
	reporterID := middleware.CurrentUserID(c)

	var req ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if (req.ListingID == nil) == (req.ReportedUserID == nil) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Report exactly one of listing_id or reported_user_id"})
	}

	report := models.Report{
		ReporterID: reporterID,
		Reason:     req.Reason,
		Details:    req.Details,
	}

	if req.ListingID != nil {
		listingID, _ := uuid.Parse(*req.ListingID)
		var listing models.Listing
		if err := database.DB.Where("id = ?", listingID).First(&listing).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
		}
		report.ListingID = &listingID
	} else {
		reportedID, _ := uuid.Parse(*req.ReportedUserID)
		if reportedID == reporterID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot report yourself"})
		}
		var user models.User
		if err := database.DB.Where("id = ?", reportedID).First(&user).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		report.ReportedUserID = &reportedID
	}

	if err := database.DB.Create(&report).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create report"})
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

func GetMyReports(c *fiber.Ctx) error {
	reporterID := middleware.CurrentUserID(c)

	var reports []models.Report
	if err := database.DB.
		Where("reporter_id = ?", reporterID).
		Order("created_at desc").
		Find(&reports).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reports"})
	}

	return c.JSON(reports)
}
