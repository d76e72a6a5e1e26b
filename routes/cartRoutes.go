package routes

import (
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/gin-gonic/gin"
)

func CartRoutes(server *gin.Engine, c *controllers.CartController, requireAuth gin.HandlerFunc) {
	cart := server.Group("/cart", requireAuth)
	cart.GET("", c.GetCart)
	cart.POST("", c.CreateCartItem)
	cart.PUT("/:id", c.UpdateCartItem)
	cart.DELETE("/:id", c.DeleteCartItem)
	cart.DELETE("", c.ClearCart)
}
