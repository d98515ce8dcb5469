package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator() Calculator {
	return NewCalculator(config.DefaultPricingConfig())
}

func TestCalculatePrice_BelowMinimum(t *testing.T) {
	calc := newTestCalculator()

	for _, tables := range []int{0, -1, -100} {
		_, ok := calc.CalculatePrice(tables)
		assert.False(t, ok, "tables=%d", tables)
	}
}

func TestCalculatePrice_SingleTable(t *testing.T) {
	calc := newTestCalculator()

	q, ok := calc.CalculatePrice(1)
	require.True(t, ok)
	assert.True(t, q.MonthlyPrice.Equal(calc.PricePerTable()))
	assert.Equal(t, 1, q.TotalTables)
	assert.Equal(t, PlanBasic, q.Plan)
}

func TestCalculatePrice_AnnualDiscount(t *testing.T) {
	calc := newTestCalculator()

	q, ok := calc.CalculatePrice(3)
	require.True(t, ok)
	// 3 * 50 = 150 monthly; 150 * 12 * 0.9 = 1620
	assert.True(t, q.MonthlyPrice.Equal(decimal.NewFromInt(150)), q.MonthlyPrice.String())
	assert.True(t, q.AnnualPrice.Equal(decimal.NewFromInt(1620)), q.AnnualPrice.String())
}

func TestCalculatePrice_AnnualRounding(t *testing.T) {
	cfg := config.DefaultPricingConfig()
	cfg.PricePerTable = 33.33
	calc := NewCalculator(cfg)

	q, ok := calc.CalculatePrice(1)
	require.True(t, ok)
	// 33.33 * 12 * 0.9 = 359.964 -> 360
	assert.True(t, q.AnnualPrice.Equal(decimal.NewFromInt(360)), q.AnnualPrice.String())
}

func TestCalculatePrice_ClampsAtMaxTables(t *testing.T) {
	calc := newTestCalculator()

	atMax, ok := calc.CalculatePrice(1000)
	require.True(t, ok)
	above, ok := calc.CalculatePrice(5000)
	require.True(t, ok)

	assert.Equal(t, atMax.TotalTables, above.TotalTables)
	assert.True(t, atMax.MonthlyPrice.Equal(above.MonthlyPrice))
	assert.True(t, atMax.AnnualPrice.Equal(above.AnnualPrice))
	assert.Equal(t, atMax.Plan, above.Plan)
}

func TestPlanName_Boundaries(t *testing.T) {
	calc := newTestCalculator()

	cases := map[int]Plan{
		1:   PlanBasic,
		10:  PlanBasic,
		11:  PlanPro,
		50:  PlanPro,
		51:  PlanEnterprise,
		999: PlanEnterprise,
	}
	for tables, want := range cases {
		assert.Equal(t, want, calc.PlanName(tables), "tables=%d", tables)
	}
}

func TestPlanName_Monotonic(t *testing.T) {
	calc := newTestCalculator()
	rank := map[Plan]int{PlanBasic: 0, PlanPro: 1, PlanEnterprise: 2}

	prev := rank[calc.PlanName(1)]
	for tables := 2; tables <= 200; tables++ {
		cur := rank[calc.PlanName(tables)]
		require.GreaterOrEqual(t, cur, prev, "tables=%d", tables)
		prev = cur
	}
}
