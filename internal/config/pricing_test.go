package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingConfigHolder_DefaultsWithoutFile(t *testing.T) {
	holder, err := NewPricingConfigHolderWithPaths(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultPricingConfig(), holder.Get())
}

func TestPricingConfigHolder_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pricing:\n  pricePerTable: 75\n  maxTables: 200\n  annualDiscount: 0.2\n  basicMaxTables: 5\n  proMaxTables: 40\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), content, 0o600))

	holder, err := NewPricingConfigHolderWithPaths(dir)
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 75.0, got.PricePerTable)
	assert.Equal(t, 200, got.MaxTables)
	assert.Equal(t, 0.2, got.AnnualDiscount)
	assert.Equal(t, 5, got.BasicMaxTables)
	assert.Equal(t, 40, got.ProMaxTables)
}

func TestPricingConfigHolder_RejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pricing:\n  pricePerTable: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), content, 0o600))

	_, err := NewPricingConfigHolderWithPaths(dir)
	require.Error(t, err)
}

func TestValidatePricingConfig_Thresholds(t *testing.T) {
	cfg := DefaultPricingConfig()
	cfg.ProMaxTables = cfg.BasicMaxTables

	assert.Error(t, validatePricingConfig(cfg))
}
