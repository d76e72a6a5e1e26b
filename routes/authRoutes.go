package routes

import (
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/Kariqs/readpage-api/middlewares"
	"github.com/gin-gonic/gin"
)

func AuthRoutes(server *gin.Engine, c *controllers.AuthController, requireAuth gin.HandlerFunc) {
	auth := server.Group("/auth")
	{
		auth.POST("/register", c.Register)
		auth.POST("/login", c.Login)
		auth.GET("/verify-email", c.VerifyEmail)
		auth.POST("/forgot-password", c.ForgotPassword)
		auth.POST("/reset-password", c.ResetPassword)
	}

	account := auth.Group("", requireAuth)
	{
		account.GET("/profile", c.GetProfile)
		account.PUT("/profile", c.UpdateProfile)
		account.PUT("/change-password", c.ChangePassword)
		account.GET("/orders", c.GetMyOrders)
	}

	admin := auth.Group("", requireAuth, middlewares.RequireAdmin())
	{
		admin.GET("/customers", c.GetCustomers)
		admin.GET("/users/:id/orders", c.GetUserWithOrders)
	}
}
