package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/services"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderController struct {
	orders   *services.OrderService
	checkout *services.CheckoutService
	logger   *zap.Logger
}

func NewOrderController(orders *services.OrderService, checkout *services.CheckoutService, logger *zap.Logger) *OrderController {
	return &OrderController{orders: orders, checkout: checkout, logger: logger}
}

// CreateOrdersFromCart converts the selected cart rows into orders. When the
// orders are committed but the online payment could not be started, it still
// answers 201 and reports the payment failure alongside the orders.
func (c *OrderController) CreateOrdersFromCart(ctx *gin.Context) {
	var req services.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	result, err := c.checkout.Checkout(ctx.Request.Context(), user, req)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	c.sendCheckoutResult(ctx, result)
}

// CreateOrder buys a single book without going through the cart.
func (c *OrderController) CreateOrder(ctx *gin.Context) {
	var req services.DirectOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	result, err := c.checkout.BuyNow(ctx.Request.Context(), user, req)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	c.sendCheckoutResult(ctx, result)
}

func (c *OrderController) sendCheckoutResult(ctx *gin.Context, result *services.CheckoutResult) {
	body := gin.H{
		"message": "Order created successfully",
		"orders":  result.Orders,
	}
	if result.Payment != nil {
		body["payment"] = result.Payment
	}
	if result.PaymentError != nil {
		body["message"] = "Order created but payment could not be started. Retry payment from your orders."
		paymentError := gin.H{"message": "Failed to initiate payment"}
		var appErr *apperrors.Error
		if errors.As(result.PaymentError, &appErr) {
			paymentError["message"] = appErr.Message
			if appErr.Details != nil {
				paymentError["error"] = appErr.Details
			}
		}
		body["paymentError"] = paymentError
	}
	sendJSONResponse(ctx, http.StatusCreated, body)
}

func (c *OrderController) GetOrders(ctx *gin.Context) {
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	page, limit := utils.ParsePage(ctx.Query("page"), ctx.Query("limit"), 15, 100)

	orders, pagination, err := c.orders.List(ctx.Request.Context(), user, page, limit)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"orders":   orders,
		"metadata": pagination,
	})
}

func (c *OrderController) GetOrderByID(ctx *gin.Context) {
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

	order, err := c.orders.Get(ctx.Request.Context(), user, id)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus is admin only.
func (c *OrderController) UpdateOrderStatus(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	var req services.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}

	order, err := c.orders.UpdateStatus(ctx.Request.Context(), id, req)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// ExportOrders streams every order as an Excel workbook. Admin only.
func (c *OrderController) ExportOrders(ctx *gin.Context) {
	var buf bytes.Buffer
	if err := c.orders.Export(ctx.Request.Context(), &buf); err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	filename := fmt.Sprintf("orders_%s.xlsx", time.Now().Format("20060102_150405"))
	ctx.Header("Content-Description", "File Transfer")
	ctx.Header("Content-Disposition", "attachment; filename="+filename)
	ctx.Header("Content-Transfer-Encoding", "binary")
	ctx.Header("Expires", "0")
	ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
