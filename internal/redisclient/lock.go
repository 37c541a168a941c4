package redisclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lockRetryInterval = 25 * time.Millisecond

// CartLocker is a distributed per-customer lock built on SETNX with an owner token
type CartLocker struct {
	client *Client
	ttl    time.Duration
}

// NewCartLocker creates a lock whose keys expire after ttl
func NewCartLocker(client *Client, ttl time.Duration) *CartLocker {
	return &CartLocker{client: client, ttl: ttl}
}

// Lock waits until the customer's cart lock is acquired. Waiting longer than the
// lock ttl is reported as a conflict.
func (l *CartLocker) Lock(ctx context.Context, customerID int64) (func(), error) {
	key := fmt.Sprintf("lock:cart:%d", customerID)
	token := uuid.New().String()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, apperror.Persistence("acquire cart lock", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, apperror.ErrConflict.WithDetail("cart of customer %d is locked", customerID)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire cart lock for customer %d: %w", customerID, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := l.client.unlockScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
				util.GetLogger().Warn("Failed to release cart lock",
					zap.Int64("customer_id", customerID),
					zap.Error(err))
			}
		})
	}, nil
}
