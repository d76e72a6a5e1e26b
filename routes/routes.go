package routes

import (
	"github.com/Kariqs/readpage-api/controllers"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the controllers and the auth middleware the route
// groups are registered with.
type Handlers struct {
	Default     *controllers.DefaultController
	Auth        *controllers.AuthController
	Books       *controllers.BookController
	Cart        *controllers.CartController
	Orders      *controllers.OrderController
	Payments    *controllers.PaymentController
	RequireAuth gin.HandlerFunc
}

func Register(server *gin.Engine, h Handlers) {
	DefaultRoutes(server, h.Default)
	AuthRoutes(server, h.Auth, h.RequireAuth)
	BookRoutes(server, h.Books, h.RequireAuth)
	CartRoutes(server, h.Cart, h.RequireAuth)
	OrderRoutes(server, h.Orders, h.RequireAuth)
	PaymentRoutes(server, h.Payments, h.RequireAuth)
}
