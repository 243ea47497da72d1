package database

import "github.com/shopspring/decimal"

// Money columns hold integer cents.

func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
