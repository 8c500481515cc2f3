package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/maximusartimus/am-marketplace-sub000/notifications"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminDashboard(c *fiber.Ctx) error {
	var stats struct {
		Users         int64 `json:"users"`
		Stores        int64 `json:"stores"`
		Listings      int64 `json:"listings"`
		OpenReports   int64 `json:"open_reports"`
		Conversations int64 `json:"conversations"`
		Messages      int64 `json:"messages"`
	}

	database.DB.Model(&models.User{}).Count(&stats.Users)
	database.DB.Model(&models.Store{}).Count(&stats.Stores)
	database.DB.Model(&models.Listing{}).Where("status = ?", "active").Count(&stats.Listings)
	database.DB.Model(&models.Report{}).Where("status = ?", "open").Count(&stats.OpenReports)
	database.DB.Model(&models.Conversation{}).Count(&stats.Conversations)
	database.DB.Model(&models.Message{}).Count(&stats.Messages)

	return c.JSON(stats)
}

func ListOpenReports(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	offset := (page - 1) * pageSize

	var reports []models.Report
	if err := database.DB.
		Preload("Reporter").
		Where("status = ?", "open").
		Order("created_at asc").
		Limit(pageSize).
		Offset(offset).
		Find(&reports).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(reports)
}

// ResolveReport closes a report. action "dismiss" leaves the target alone;
// "remove_listing" pulls the reported listing; "suspend_user" deactivates
// the reported user.
func ResolveReport(c *fiber.Ctx) error {
	reportID, err := uuid.Parse(c.Params("reportId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid report ID"})
	}

	type ResolveRequest struct {
		Action     string `json:"action" validate:"required,oneof=dismiss remove_listing suspend_user"`
		Resolution string `json:"resolution" validate:"max=2000"`
	}
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var report models.Report
	if err := database.DB.Where("id = ?", reportID).First(&report).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Report not found"})
	}
	if report.Status != "open" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Report is already resolved"})
	}

	switch req.Action {
	case "remove_listing":
		if report.ListingID == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Report does not target a listing"})
		}
	case "suspend_user":
		if report.ReportedUserID == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Report does not target a user"})
		}
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		switch req.Action {
		case "remove_listing":
			if err := removeListingTx(tx, *report.ListingID); err != nil {
				return err
			}
		case "suspend_user":
			if err := tx.Model(&models.User{}).
				Where("id = ?", *report.ReportedUserID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}

		report.Status = "resolved"
		if req.Action == "dismiss" {
			report.Status = "dismissed"
		}
		if req.Resolution != "" {
			report.Resolution = &req.Resolution
		}
		return tx.Save(&report).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve report"})
	}

	notification := models.Notification{
		RecipientID: report.ReporterID,
		Kind:        "report_resolved",
		Preview:     fmt.Sprintf("Your report was %s", report.Status),
		Link:        "/reports",
	}
	if err := database.DB.Create(&notification).Error; err != nil {
		log.Printf("Failed to notify reporter %s: %v", report.ReporterID, err)
	}

	return c.JSON(fiber.Map{"message": "Report resolved", "report": report})
}

// RemoveListing pulls a listing from the marketplace directly, outside of
// any report.
func RemoveListing(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	if err := database.DB.Transaction(func(tx *gorm.DB) error {
		return removeListingTx(tx, listingID)
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove listing"})
	}

	return c.JSON(fiber.Map{"message": "Listing removed"})
}

func removeListingTx(tx *gorm.DB, listingID uuid.UUID) error {
	var listing models.Listing
	if err := tx.Preload("Seller").Where("id = ?", listingID).First(&listing).Error; err != nil {
		return err
	}
	if listing.Status == "removed" {
		return nil
	}

	if err := tx.Model(&listing).Update("status", "removed").Error; err != nil {
		return err
	}

	go notifications.SendEmail(
		listing.Seller.FullName,
		listing.Seller.Email,
		"Your listing has been removed",
		fmt.Sprintf("<h1>Listing removed</h1><p>Your listing \"%s\" was removed by our moderation team for violating the marketplace rules.</p>", listing.Title),
	)
	return nil
}

func SetUserActive(c *fiber.Ctx) error {
	userID := c.Params("userId")

	type Request struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if user.Role == "admin" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Admins cannot be suspended"})
	}

	user.IsActive = *req.IsActive
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
	}

	if !user.IsActive {
		go notifications.SendEmail(
			user.FullName,
			user.Email,
			"Your account has been suspended",
			"<h1>Account suspended</h1><p>Your marketplace account has been suspended. Contact support if you believe this is a mistake.</p>",
		)
	}

	return c.JSON(fiber.Map{"message": "User updated", "is_active": user.IsActive})
}

func ListUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	offset := (page - 1) * pageSize

	query := database.DB.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if q := c.Query("q"); q != "" {
		query = query.Where("full_name ILIKE ? OR email ILIKE ?", "%"+q+"%", "%"+q+"%")
	}

	var users []models.User
	if err := query.
		Order("created_at desc").
		Limit(pageSize).
		Offset(offset).
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(users)
}

func ExportUsersCSV(c *fiber.Ctx) error {
	var users []models.User
	if err := database.DB.Order("created_at asc").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"id", "full_name", "email", "role", "is_active", "created_at"})
	for _, user := range users {
		_ = writer.Write([]string{
			user.ID.String(),
			user.FullName,
			user.Email,
			user.Role,
			strconv.FormatBool(user.IsActive),
			user.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=users.csv")
	return c.Send(buf.Bytes())
}
