package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateCatalogConfig(t *testing.T) {
	require.NoError(t, ValidateCatalogConfig(DefaultCatalogConfig()))

	cases := map[string]CatalogConfig{
		"empty":             {},
		"blank_name":        {Placements: []PlacementConfig{{Name: " ", Capacity: 1}}},
		"negative_capacity": {Placements: []PlacementConfig{{Name: "results", Capacity: -1}}},
		"duplicate":         {Placements: []PlacementConfig{{Name: "results"}, {Name: "RESULTS"}}},
		"zero_cost":         {Placements: []PlacementConfig{{Name: "results", Prices: []PriceConfig{{DurationDays: 15}}}}},
		"non_positive_days": {Placements: []PlacementConfig{{Name: "results", Prices: []PriceConfig{{CreditCost: 2}}}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateCatalogConfig(cfg))
		})
	}
}

func TestNewCatalogConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	content := `catalog:
  placements:
    - name: results
      capacity: 4
      prices:
        - durationDays: 15
          creditCost: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	holder, err := NewCatalogConfigHolder(Config{CatalogPath: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	require.Len(t, cfg.Placements, 1)
	assert.Equal(t, "results", cfg.Placements[0].Name)
	assert.Equal(t, 4, cfg.Placements[0].Capacity)
	require.Len(t, cfg.Placements[0].Prices, 1)
	assert.Equal(t, 15, cfg.Placements[0].Prices[0].DurationDays)
	assert.Equal(t, int64(2), cfg.Placements[0].Prices[0].CreditCost)
}

func TestCatalogConfigHolderNotifiesListeners(t *testing.T) {
	holder := NewCatalogConfigHolderFrom(DefaultCatalogConfig())

	var received []CatalogConfig
	holder.OnChange(func(cfg CatalogConfig) {
		received = append(received, cfg)
	})

	updated := CatalogConfig{Placements: []PlacementConfig{{Name: "homepage", Capacity: 1}}}
	holder.store(updated)

	require.Len(t, received, 1)
	assert.Equal(t, updated, received[0])
	assert.Equal(t, updated, holder.Get())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RESERVATION_LOCK_BACKEND", "REDIS")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://admin.example.com, ,https://ops.example.com")

	cfg := Load()
	assert.Equal(t, LockBackendRedis, cfg.Reservation.LockBackend)
	assert.Equal(t, []string{"https://admin.example.com", "https://ops.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Redis.Enabled())
}
