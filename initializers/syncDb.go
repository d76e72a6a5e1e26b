package initializers

import (
	"fmt"

	"github.com/Kariqs/readpage-api/models"
	"gorm.io/gorm"
)

// SyncDatabase migrates every table once at startup. Associations are
// declared on the model structs, so nothing is wired per request.
func SyncDatabase(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Book{},
		&models.CartItem{},
		&models.Order{},
		&models.Payment{},
	); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}
