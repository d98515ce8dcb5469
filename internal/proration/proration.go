// Package proration computes partial-period charges for mid-period capacity changes.
package proration

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var minimumCharge = decimal.NewFromInt(1)

// Result describes how a prorated amount was derived.
type Result struct {
	Amount        decimal.Decimal `json:"amount"`
	RemainingDays int             `json:"remaining_days"`
	DaysInMonth   int             `json:"days_in_month"`
	FullMonth     bool            `json:"full_month"`
}

// Calculate charges extraUnits at pricePerUnit per month for the days left
// until periodEnd. Elapsed periods and windows longer than the month that
// contains periodEnd are charged a full month. The amount is never below 1.
func Calculate(extraUnits int, pricePerUnit decimal.Decimal, now, periodEnd time.Time) Result {
	monthly := pricePerUnit.Mul(decimal.NewFromInt(int64(extraUnits)))
	remaining := RemainingDays(now, periodEnd)
	dim := DaysInMonth(periodEnd)

	res := Result{RemainingDays: remaining, DaysInMonth: dim}
	if remaining <= 0 || remaining > dim {
		res.FullMonth = true
		res.Amount = atLeastMinimum(monthly.Round(2))
		return res
	}

	amount := monthly.
		Mul(decimal.NewFromInt(int64(remaining))).
		Div(decimal.NewFromInt(int64(dim))).
		Round(2)
	res.Amount = atLeastMinimum(amount)
	return res
}

// RemainingDays rounds the time left until periodEnd up to whole days.
func RemainingDays(now, periodEnd time.Time) int {
	d := periodEnd.Sub(now)
	return int(math.Ceil(d.Hours() / 24))
}

// DaysInMonth returns the length of the calendar month containing t.
func DaysInMonth(t time.Time) int {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNext.AddDate(0, 0, -1).Day()
}

func atLeastMinimum(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(minimumCharge) {
		return minimumCharge
	}
	return amount
}
