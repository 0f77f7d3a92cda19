package normalize

import (
	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/shopspring/decimal"
)

var centimetersPerInch = decimal.RequireFromString("2.54")

// ToCentimeters converts v to centimeters. The product is computed in decimal
// so 32in reads back as exactly 81.28.
func ToCentimeters(v float64, unit domain.Unit) float64 {
	if unit != domain.UnitIN {
		return v
	}
	return decimal.NewFromFloat(v).Mul(centimetersPerInch).InexactFloat64()
}

// ToInches is the inverse of ToCentimeters for inch units.
func ToInches(cm float64) float64 {
	return decimal.NewFromFloat(cm).DivRound(centimetersPerInch, 6).InexactFloat64()
}
