package services

import (
	"context"
	"errors"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewCartService(db *gorm.DB, logger *zap.Logger) *CartService {
	return &CartService{db: db, logger: logger}
}

func (s *CartService) List(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&items).Error; err != nil {
		return nil, apperrors.Internal("failed to fetch cart", err)
	}
	return items, nil
}

// Add puts qty copies of a book in the cart, incrementing an existing row for
// the same book. created reports whether a new row was inserted.
func (s *CartService) Add(ctx context.Context, userID, bookID uint, qty int) (item *models.CartItem, created bool, err error) {
	if qty < 1 {
		qty = 1
	}

	var book models.Book
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&book, bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("book not found")
			}
			return err
		}

		var existing models.CartItem
		err := tx.Where("user_id = ? AND book_id = ?", userID, bookID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).UpdateColumn("quantity", gorm.Expr("quantity + ?", qty)).Error; err != nil {
				return err
			}
			existing.Quantity += qty
			item = &existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			// A concurrent add may insert the same row first; fold into it.
			row := models.CartItem{UserID: userID, BookID: bookID, Quantity: qty}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
				DoUpdates: clause.Assignments(map[string]any{"quantity": gorm.Expr("quantity + ?", qty)}),
			}).Create(&row).Error; err != nil {
				return err
			}
			var stored models.CartItem
			if err := tx.Where("user_id = ? AND book_id = ?", userID, bookID).First(&stored).Error; err != nil {
				return err
			}
			item = &stored
			// Existing rows hold at least one copy, so only a fresh insert equals qty.
			created = stored.Quantity == qty
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, wrapInternal(err, "failed to add item to cart")
	}

	item.Book = book
	return item, created, nil
}

// Update sets an absolute quantity. Quantities below one are rejected and
// leave the row as it was.
func (s *CartService) Update(ctx context.Context, userID, itemID uint, qty int) (*models.CartItem, error) {
	if qty < 1 {
		return nil, apperrors.Validation("quantity must be at least 1")
	}

	var item models.CartItem
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("cart item not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch cart item", err)
	}

	if err := s.db.WithContext(ctx).Model(&item).Update("quantity", qty).Error; err != nil {
		return nil, apperrors.Internal("failed to update cart item", err)
	}
	if err := s.db.WithContext(ctx).Preload("Book").First(&item, item.ID).Error; err != nil {
		return nil, apperrors.Internal("failed to fetch cart item", err)
	}
	return &item, nil
}

func (s *CartService) Remove(ctx context.Context, userID, itemID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	if result.Error != nil {
		return apperrors.Internal("failed to remove cart item", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("cart item not found")
	}
	return nil
}

// Clear empties the cart and returns how many rows were removed.
func (s *CartService) Clear(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	if result.Error != nil {
		return 0, apperrors.Internal("failed to clear cart", result.Error)
	}
	return result.RowsAffected, nil
}

// wrapInternal passes classified errors through and wraps everything else.
func wrapInternal(err error, message string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Internal(message, err)
}
