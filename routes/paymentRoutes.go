package routes

import (
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/gin-gonic/gin"
)

func PaymentRoutes(server *gin.Engine, c *controllers.PaymentController, requireAuth gin.HandlerFunc) {
	payments := server.Group("/payments")
	payments.POST("/khalti/initiate", requireAuth, c.InitiateKhaltiPayment)
	payments.POST("/khalti/verify", requireAuth, c.VerifyKhaltiPayment)
	payments.GET("/khalti/complete", c.CompleteKhaltiPayment)
	payments.GET("/:orderId/status", requireAuth, c.GetPaymentStatus)
}
