package jobs

import (
	"log"
	"time"

	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/models"
)

// ClearExpiredSales resets sale fields on listings whose sale window has
// passed, so browse results stop advertising a discount that no longer
// applies.
func ClearExpiredSales() {
	log.Println("Running job: ClearExpiredSales...")

	result := database.DB.Model(&models.Listing{}).
		Where("sale_ends_at IS NOT NULL AND sale_ends_at < ?", time.Now()).
		Updates(map[string]interface{}{
			"sale_price":     nil,
			"sale_starts_at": nil,
			"sale_ends_at":   nil,
		})
	if result.Error != nil {
		log.Printf("Error clearing expired sales: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleared expired sales on %d listing(s)", result.RowsAffected)
	}
}
