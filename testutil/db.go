// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/Kariqs/readpage-api/initializers"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every query on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, initializers.SyncDatabase(db))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)

	user := &models.User{
		Name:            username + " Example",
		Username:        username,
		Email:           username + "@example.com",
		Phone:           "98" + username,
		Address:         "Kathmandu",
		PasswordHash:    hash,
		Role:            role,
		IsEmailVerified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateBook(t *testing.T, db *gorm.DB, title, price string, stock int) *models.Book {
	t.Helper()

	book := &models.Book{
		Title:    title,
		Author:   "Test Author",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "General",
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func AddToCart(t *testing.T, db *gorm.DB, userID, bookID uint, qty int) *models.CartItem {
	t.Helper()

	item := &models.CartItem{UserID: userID, BookID: bookID, Quantity: qty}
	require.NoError(t, db.Create(item).Error)
	return item
}
