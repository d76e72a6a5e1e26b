package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserKey is the context key the authenticated *models.User is stored under.
const UserKey = "user"

// RequireAuth accepts "Authorization: Bearer <jwt>" and loads the user the
// token was issued to. Deleted accounts are rejected even with a valid token.
func RequireAuth(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization token required"})
			return
		}

		claims, err := utils.ParseJWT(strings.TrimSpace(tokenString), secret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		var user models.User
		err = db.WithContext(ctx.Request.Context()).First(&user, claims.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
			return
		}
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		ctx.Set(UserKey, &user)
		ctx.Next()
	}
}

// CurrentUser returns the user set by RequireAuth.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	value, exists := ctx.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}
