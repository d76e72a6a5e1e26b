package routes

import (
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/Kariqs/readpage-api/middlewares"
	"github.com/gin-gonic/gin"
)

func OrderRoutes(server *gin.Engine, c *controllers.OrderController, requireAuth gin.HandlerFunc) {
	orders := server.Group("/orders", requireAuth)
	orders.GET("", c.GetOrders)
	orders.POST("", c.CreateOrder)
	orders.POST("/from-cart", c.CreateOrdersFromCart)
	orders.GET("/export", middlewares.RequireAdmin(), c.ExportOrders)
	orders.GET("/:id", c.GetOrderByID)
	orders.PATCH("/:id/status", middlewares.RequireAdmin(), c.UpdateOrderStatus)
}
