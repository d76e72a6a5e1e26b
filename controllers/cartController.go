package controllers

import (
	"net/http"

	"github.com/Kariqs/readpage-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartController struct {
	cart   *services.CartService
	logger *zap.Logger
}

func NewCartController(cart *services.CartService, logger *zap.Logger) *CartController {
	return &CartController{cart: cart, logger: logger}
}

func (c *CartController) GetCart(ctx *gin.Context) {
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	items, err := c.cart.List(ctx.Request.Context(), user.ID)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cartItems": items})
}

// CreateCartItem adds a book or bumps the quantity of the existing row.
// It answers 201 for a new row and 200 for an increment.
func (c *CartController) CreateCartItem(ctx *gin.Context) {
	var body struct {
		BookID   uint `json:"bookId" binding:"required"`
		Quantity int  `json:"quantity"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	item, created, err := c.cart.Add(ctx.Request.Context(), user.ID, body.BookID, body.Quantity)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ctx.JSON(status, item)
}

func (c *CartController) UpdateCartItem(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	var body struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	item, err := c.cart.Update(ctx.Request.Context(), user.ID, id, *body.Quantity)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, item)
}

func (c *CartController) DeleteCartItem(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	if err := c.cart.Remove(ctx.Request.Context(), user.ID, id); err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Removed from cart"})
}

func (c *CartController) ClearCart(ctx *gin.Context) {
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	removed, err := c.cart.Clear(ctx.Request.Context(), user.ID)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Cart cleared", "removed": removed})
}
