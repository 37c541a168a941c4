package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fulfillment-service/internal/apperror"
	"fulfillment-service/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameCustomer(t *testing.T) {
	l := NewLocalLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), 1)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.locks)
}

func TestLocalLockerIndependentCustomers(t *testing.T) {
	l := NewLocalLocker()

	unlock1, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlock1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock2, err := l.Lock(ctx, 2)
	require.NoError(t, err)
	unlock2()
	unlock2()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock, err = l.Lock(context.Background(), 1)
	require.NoError(t, err)
	unlock()
}

func TestRetryOnConflict(t *testing.T) {
	logger := util.GetLogger()
	ctx := context.Background()

	calls := 0
	err := retryOnConflict(ctx, logger, "test", 2, func() error {
		calls++
		return apperror.ErrConflict
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnConflict(ctx, logger, "test", 2, func() error {
		calls++
		return apperror.ErrInvalidQuantity
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidQuantity))
	assert.Equal(t, 1, calls)
}
