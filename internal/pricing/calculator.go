// Package pricing turns a restaurant's table count into a plan and a price.
package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tablebill/internal/config"
)

type Plan string

const (
	PlanBasic      Plan = "BASIC"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// Quote is the price for a clamped table count.
type Quote struct {
	TotalTables   int             `json:"total_tables"`
	PricePerTable decimal.Decimal `json:"price_per_table"`
	MonthlyPrice  decimal.Decimal `json:"monthly_price"`
	AnnualPrice   decimal.Decimal `json:"annual_price"`
	Plan          Plan            `json:"plan"`
}

// Calculator prices table counts against an injected price list.
type Calculator struct {
	cfg config.PricingConfig
}

func NewCalculator(cfg config.PricingConfig) Calculator {
	return Calculator{cfg: cfg}
}

// PricePerTable is the monthly price of a single table.
func (c Calculator) PricePerTable() decimal.Decimal {
	return decimal.NewFromFloat(c.cfg.PricePerTable)
}

// CalculatePrice returns false when totalTables is below one. Counts above
// MaxTables are billed as MaxTables.
func (c Calculator) CalculatePrice(totalTables int) (Quote, bool) {
	if totalTables < 1 {
		return Quote{}, false
	}
	if c.cfg.MaxTables > 0 && totalTables > c.cfg.MaxTables {
		totalTables = c.cfg.MaxTables
	}

	perTable := c.PricePerTable()
	monthly := perTable.Mul(decimal.NewFromInt(int64(totalTables)))
	discount := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(c.cfg.AnnualDiscount))
	annual := monthly.Mul(decimal.NewFromInt(12)).Mul(discount).Round(0)

	return Quote{
		TotalTables:   totalTables,
		PricePerTable: perTable,
		MonthlyPrice:  monthly,
		AnnualPrice:   annual,
		Plan:          c.PlanName(totalTables),
	}, true
}

// PlanName is non-decreasing in totalTables.
func (c Calculator) PlanName(totalTables int) Plan {
	switch {
	case totalTables <= c.cfg.BasicMaxTables:
		return PlanBasic
	case totalTables <= c.cfg.ProMaxTables:
		return PlanPro
	default:
		return PlanEnterprise
	}
}
