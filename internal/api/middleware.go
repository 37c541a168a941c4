package api

import (
	"strconv"
	"time"

	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerCustomerID = "X-Customer-ID"
	headerRequestID  = "X-Request-ID"

	customerIDKey = "customer_id"
)

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger attaches a request scoped logger and logs every request
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(headerRequestID, requestID)

		logger := util.GetLogger().With(zap.String("request_id", requestID))
		c.Request = c.Request.WithContext(util.WithLogger(c.Request.Context(), logger))

		c.Next()

		util.LoggerFromContext(c.Request.Context(), logger).Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// customerPrincipal resolves the calling customer from the X-Customer-ID header
func customerPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, err := strconv.ParseInt(c.GetHeader(headerCustomerID), 10, 64)
		if err != nil || customerID <= 0 {
			badRequest(c, "Missing or invalid "+headerCustomerID+" header", nil)
			return
		}

		c.Set(customerIDKey, customerID)

		ctx := c.Request.Context()
		logger := util.LoggerFromContext(ctx, nil).With(zap.Int64("customer_id", customerID))
		c.Request = c.Request.WithContext(util.WithLogger(ctx, logger))

		c.Next()
	}
}

func customerID(c *gin.Context) int64 {
	return c.GetInt64(customerIDKey)
}
