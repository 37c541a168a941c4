package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncInventoryKeepsOutstandingReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addArticle(f.s1.ID, "Lamp", "10.00", 10)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	client := redisclient.NewClientWithRedis(rdb)
	ledger := NewInventoryLedger(client)

	require.NoError(t, SyncInventory(ctx, f.store, client))
	require.NoError(t, ledger.Reserve(ctx, a.ID, 6))

	// A restart syncs from the catalog again while the reservation is still held.
	require.NoError(t, SyncInventory(ctx, f.store, client))

	stock, err := ledger.Stock(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stock)

	b := f.addArticle(f.s2.ID, "Desk", "80.00", 2)
	require.NoError(t, SyncInventory(ctx, f.store, client))
	stock, err = ledger.Stock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)
}
