package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("LEDGER_BACKEND", "")
	t.Setenv("TAX_RATE", "")
	t.Setenv("KAFKA_ENABLED", "")

	cfg := Load()

	assert.Equal(t, BackendPostgres, cfg.Database.StoreBackend)
	assert.Equal(t, BackendPostgres, cfg.Database.LedgerBackend)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "0.21", cfg.Business.TaxRate.String())
	assert.Equal(t, 10*time.Second, cfg.Business.CartLockTTL)
	assert.Equal(t, 3, cfg.Business.ConflictMaxRetries)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.10")
	t.Setenv("SHIPPING_FEE", "not-a-number")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CONFLICT_MAX_RETRIES", "5")
	t.Setenv("LEDGER_BACKEND", "REDIS")

	cfg := Load()

	policy := cfg.Business.PricingPolicy()
	assert.Equal(t, "0.1", policy.TaxRate.String())
	assert.Equal(t, "4.99", policy.ShippingFee.StringFixed(2))
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Business.ConflictMaxRetries)
	assert.True(t, cfg.UsesRedis())
}

func TestMemoryStoreForcesMemoryLedger(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LEDGER_BACKEND", "")

	cfg := Load()

	assert.Equal(t, BackendMemory, cfg.Database.LedgerBackend)
}
