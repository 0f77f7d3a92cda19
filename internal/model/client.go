package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/normalize"
	"github.com/shopspring/decimal"
)

const (
	CategoryTops    = "tops"
	CategoryBottoms = "bottoms"

	topsRuleConfidence    = 0.7
	bottomsRuleConfidence = 0.72
)

// Client applies the fit rules for each garment category.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

type InferenceError struct {
	Msg     string
	Missing []string
}

func (e *InferenceError) Error() string {
	if len(e.Missing) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: missing %s", e.Msg, strings.Join(e.Missing, ", "))
}

// Recommend returns one recommendation per category the measurements
// support. It fails only when no category can be sized.
func (c *Client) Recommend(m *domain.NormalizedMeasurement) ([]domain.SizeRecommendation, error) {
	if m == nil {
		return nil, &InferenceError{Msg: "no measurements supplied"}
	}

	recs := make([]domain.SizeRecommendation, 0, 2)
	var missing []string

	if top, ok := recommendTop(m); ok {
		recs = append(recs, top)
	} else {
		missing = append(missing, "chest_cm")
	}

	if bottom, ok := recommendBottom(m); ok {
		recs = append(recs, bottom)
	} else {
		missing = append(missing, "waist_natural_cm", "inseam_cm")
	}

	if len(recs) == 0 {
		return nil, &InferenceError{Msg: "measurements insufficient for any category", Missing: missing}
	}
	return recs, nil
}

func recommendTop(m *domain.NormalizedMeasurement) (domain.SizeRecommendation, bool) {
	if m.ChestCM <= 0 {
		return domain.SizeRecommendation{}, false
	}
	chest := toInches(m.ChestCM)

	var size string
	switch {
	case chest <= 36:
		size = "S"
	case chest <= 40:
		size = "M"
	case chest <= 44:
		size = "L"
	default:
		size = "XL"
	}

	return domain.SizeRecommendation{
		Category:   CategoryTops,
		Size:       size,
		Confidence: scaled(topsRuleConfidence, m.Confidence),
		Rationale: fmt.Sprintf("Based on chest %d in, shoulder %d in, sleeve %d in",
			chest, toInches(m.ShoulderCM), toInches(m.SleeveCM)),
	}, true
}

func recommendBottom(m *domain.NormalizedMeasurement) (domain.SizeRecommendation, bool) {
	if m.WaistNaturalCM <= 0 || m.InseamCM <= 0 {
		return domain.SizeRecommendation{}, false
	}

	var notes []string
	if m.HipLowCM > 0 && m.ThighCM/m.HipLowCM > 0.58 {
		notes = append(notes, "roomy thigh")
	}
	if m.ThighCM > 0 && m.KneeCM/m.ThighCM < 0.67 {
		notes = append(notes, "strong knee taper")
	}
	rationale := "standard ease"
	if len(notes) > 0 {
		rationale = strings.Join(notes, ", ")
	}

	return domain.SizeRecommendation{
		Category:   CategoryBottoms,
		Size:       fmt.Sprintf("%dx%d", toInches(m.WaistNaturalCM), toInches(m.InseamCM)),
		Confidence: scaled(bottomsRuleConfidence, m.Confidence),
		Rationale:  rationale,
	}, true
}

// toInches rounds half to even.
func toInches(cm float64) int64 {
	return decimal.NewFromFloat(normalize.ToInches(cm)).RoundBank(0).IntPart()
}

// scaled discounts the rule confidence by the confidence of the measurements.
func scaled(rule, measured float64) float64 {
	if measured <= 0 || measured > 1 {
		measured = 1
	}
	return math.Round(rule*measured*1000) / 1000
}
