package routes

import (
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/Kariqs/readpage-api/middlewares"
	"github.com/gin-gonic/gin"
)

func BookRoutes(server *gin.Engine, c *controllers.BookController, requireAuth gin.HandlerFunc) {
	books := server.Group("/books")
	books.GET("", c.GetBooks)
	books.GET("/:id", c.GetBook)

	admin := books.Group("", requireAuth, middlewares.RequireAdmin())
	admin.POST("", c.CreateBook)
	admin.PUT("/:id", c.UpdateBook)
	admin.DELETE("/:id", c.DeleteBook)
}
