package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cfd-hedge-backtest/internal/api/models"
	"cfd-hedge-backtest/internal/data"
	"cfd-hedge-backtest/internal/pipeline"
)

// errorDetail maps a run error to an HTTP status and error body. Upstream
// FMP errors keep their own code; other stage failures use <STAGE>_ERROR.
func errorDetail(err error) (int, models.ErrorDetail) {
	var fetchErr *data.FetchError
	if errors.As(err, &fetchErr) {
		statusCode := http.StatusBadGateway
		switch fetchErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			statusCode = http.StatusUnauthorized
		case http.StatusTooManyRequests:
			statusCode = http.StatusTooManyRequests
		case 0:
			statusCode = http.StatusBadRequest
		}
		return statusCode, models.ErrorDetail{
			Code:    fetchErr.Code,
			Message: fetchErr.Message,
			Details: map[string]interface{}{
				"status_code": fetchErr.StatusCode,
				"retry_after": fetchErr.RetryAfter,
			},
		}
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		statusCode := http.StatusUnprocessableEntity
		if stageErr.Stage == pipeline.StageData {
			statusCode = http.StatusBadRequest
		}
		return statusCode, models.ErrorDetail{
			Code:    stageErr.Code(),
			Message: err.Error(),
			Details: map[string]interface{}{"stage": string(stageErr.Stage)},
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, models.ErrorDetail{
			Code:    "REQUEST_CANCELLED",
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, models.ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: err.Error(),
	}
}

func respondError(c *gin.Context, err error) {
	status, detail := errorDetail(err)
	c.JSON(status, models.ErrorResponse{Error: detail})
}

func badRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}
