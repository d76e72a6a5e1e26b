package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DefaultController struct {
	db *gorm.DB
}

func NewDefaultController(db *gorm.DB) *DefaultController {
	return &DefaultController{db: db}
}

func (c *DefaultController) GetHome(ctx *gin.Context) {
	message := `Welcome to ReadPage API. Enjoy seamless interaction with this API.

The following are the endpoints for this API:

AUTH
- POST "/auth/register" - Create user account
- POST "/auth/login" - Access user account
- GET "/auth/verify-email?token=" - Verify account email
- POST "/auth/forgot-password" - Request a password reset code
- POST "/auth/reset-password" - Reset password with the emailed code
- GET "/auth/profile" - Current user profile
- PUT "/auth/profile" - Update profile (multipart, optional profilePhoto)
- PUT "/auth/change-password" - Change password
- GET "/auth/orders" - Current user's orders
- GET "/auth/customers" - List customers (admin)
- GET "/auth/users/:id/orders" - A user with their orders (admin)

BOOKS
- GET "/books" - List books (page, limit, search, category)
- GET "/books/:id" - Get book by ID
- POST "/books" - Create book (admin, multipart with coverImage)
- PUT "/books/:id" - Update book (admin)
- DELETE "/books/:id" - Delete book (admin)

CART
- GET "/cart" - List cart items
- POST "/cart" - Add a book to the cart
- PUT "/cart/:id" - Change quantity
- DELETE "/cart/:id" - Remove an item
- DELETE "/cart" - Clear the cart

ORDERS
- GET "/orders" - List orders
- GET "/orders/:id" - Get order by ID
- POST "/orders" - Buy a single book
- POST "/orders/from-cart" - Create orders from cart items
- PATCH "/orders/:id/status" - Update order status (admin)
- GET "/orders/export" - Download all orders as Excel (admin)

PAYMENTS
- POST "/payments/khalti/initiate" - Start a Khalti payment
- POST "/payments/khalti/verify" - Verify a Khalti payment
- GET "/payments/khalti/complete" - Khalti return URL
- GET "/payments/:orderId/status" - Payment status of an order`

	ctx.JSON(http.StatusOK, gin.H{
		"message": message,
	})
}

// Health reports whether the database answers a ping.
func (c *DefaultController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.PingContext(pingCtx)
	}
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}
