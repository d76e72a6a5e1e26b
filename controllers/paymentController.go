package controllers

import (
	"net/http"

	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	payments *services.PaymentService
	logger   *zap.Logger
}

func NewPaymentController(payments *services.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{payments: payments, logger: logger}
}

func (c *PaymentController) InitiateKhaltiPayment(ctx *gin.Context) {
	var body struct {
		OrderID uint `json:"orderId" binding:"required"`
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

	result, err := c.payments.Initiate(ctx.Request.Context(), user, body.OrderID)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"message":    "Payment initiated successfully",
		"paymentUrl": result.PaymentURL,
		"pidx":       result.Pidx,
		"paymentId":  result.PaymentID,
		"orderId":    result.OrderID,
		"amount":     result.Amount,
	})
}

func (c *PaymentController) VerifyKhaltiPayment(ctx *gin.Context) {
	var body struct {
		Pidx string `json:"pidx" binding:"required"`
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

	result, err := c.payments.Verify(ctx.Request.Context(), user, body.Pidx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	message := "Payment verified successfully"
	switch result.Status {
	case models.PaymentRecordPending:
		message = "Payment is pending"
	case models.PaymentRecordFailed:
		message = "Payment failed"
	case models.PaymentRecordCancelled:
		message = "Payment was cancelled"
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"message": message,
		"status":  result.Status,
		"data":    result,
	})
}

// CompleteKhaltiPayment is where the gateway sends the browser back. It
// always redirects to the frontend.
func (c *PaymentController) CompleteKhaltiPayment(ctx *gin.Context) {
	var params services.CallbackParams
	_ = ctx.ShouldBindQuery(&params)

	ctx.Redirect(http.StatusFound, c.payments.Complete(ctx.Request.Context(), params))
}

func (c *PaymentController) GetPaymentStatus(ctx *gin.Context) {
	orderID, err := parseID(ctx, "orderId")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	status, err := c.payments.Status(ctx.Request.Context(), user, orderID)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
