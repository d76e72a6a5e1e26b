package initializers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewLogger(ginMode string) (*zap.Logger, error) {
	if ginMode == gin.ReleaseMode {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
