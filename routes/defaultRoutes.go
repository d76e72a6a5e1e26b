package routes

import (
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/gin-gonic/gin"
)

func DefaultRoutes(server *gin.Engine, c *controllers.DefaultController) {
	server.GET("/", c.GetHome)
	server.GET("/health", c.Health)
}
