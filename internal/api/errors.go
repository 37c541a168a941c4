package api

import (
	"errors"
	"net/http"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const codeInvalidRequest = "INVALID_REQUEST"

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": ..., "code": ...}
func writeError(c *gin.Context, err error) {
	var stockErr *apperror.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      stockErr.Error(),
			"code":       apperror.ErrInsufficientStock.Code,
			"article_id": stockErr.ArticleID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
			"shortfall":  stockErr.Shortfall(),
		})
		return
	}

	kind := apperror.KindOf(err)
	status := statusFor(kind)

	body := gin.H{"error": err.Error()}
	if code := apperror.CodeOf(err); code != "" {
		body["code"] = code
	}

	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(c.Request.Context(), nil).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", kind.String()),
			zap.Error(err))

		// internal causes stay in the log
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			body["error"] = appErr.Message
		} else {
			body["error"] = "internal server error"
		}
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{
		"error": message,
		"code":  codeInvalidRequest,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}
