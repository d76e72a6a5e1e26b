package models

import "time"

// CartItem rows are hard-deleted so the (user, book) unique index stays usable.
type CartItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"not null;uniqueIndex:idx_cart_user_book"`
	BookID    uint      `json:"bookId" gorm:"not null;uniqueIndex:idx_cart_user_book"`
	Quantity  int       `json:"quantity" gorm:"not null;default:1"`
	Book      Book      `json:"book" gorm:"foreignKey:BookID"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
