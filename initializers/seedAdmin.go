package initializers

import (
	"errors"
	"fmt"

	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedAdmin makes sure an administrator matching cfg exists. An existing
// admin gets the configured name and password; the email is only moved if
// no other account owns it.
func SeedAdmin(db *gorm.DB, cfg AdminConfig, log *zap.Logger) error {
	if cfg.Password == "" {
		log.Warn("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	passwordHash, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	var admin models.User
	err = db.Where("role = ?", models.RoleAdmin).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		admin = models.User{
			Name:            cfg.Name,
			Username:        cfg.Username,
			Email:           cfg.Email,
			Phone:           cfg.Phone,
			PasswordHash:    passwordHash,
			Role:            models.RoleAdmin,
			IsEmailVerified: true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		log.Info("Seeded default admin", zap.String("email", cfg.Email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}

	updates := map[string]any{
		"name":              cfg.Name,
		"password_hash":     passwordHash,
		"is_email_verified": true,
	}
	if admin.Email != cfg.Email {
		var owners int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", cfg.Email, admin.ID).Count(&owners).Error; err != nil {
			return fmt.Errorf("check admin email: %w", err)
		}
		if owners == 0 {
			updates["email"] = cfg.Email
		}
	}
	if err := db.Model(&admin).Updates(updates).Error; err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	log.Info("Updated existing admin to match configuration", zap.String("email", cfg.Email))
	return nil
}
