package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"cfd-hedge-backtest/internal/api/models"
	"cfd-hedge-backtest/internal/logger"
)

// ErrorHandler middleware recovers panics into an INTERNAL_ERROR response
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		message := "An unexpected error occurred"
		switch v := recovered.(type) {
		case string:
			message = v
		case error:
			message = v.Error()
		}
		logger.FromContext(c.Request.Context()).Errorw("[API] panic recovered",
			"path", c.Request.URL.Path,
			"panic", fmt.Sprint(recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: message,
			},
		})
	})
}
