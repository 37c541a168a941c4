package service

import (
	"context"
	"errors"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// retryOnConflict runs fn until it succeeds, fails with something other than
// apperror.ErrConflict, or maxRetries retries are spent.
func retryOnConflict(ctx context.Context, logger *zap.Logger, op string, maxRetries int, fn func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, apperror.ErrConflict) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		util.ConflictRetriesTotal.WithLabelValues(op).Inc()
		logger.Warn("Concurrent modification, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return err
}
