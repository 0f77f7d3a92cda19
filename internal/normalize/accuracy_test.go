package normalize_test

import (
	"testing"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/normalize"
	"github.com/stretchr/testify/assert"
)

func uniformSet(visibility float64) *domain.LandmarkSet {
	set := &domain.LandmarkSet{ImageWidth: 1080, ImageHeight: 1920}
	for range normalize.LandmarkCount {
		set.Landmarks = append(set.Landmarks, domain.Landmark{X: 0.5, Y: 0.5, Visibility: visibility})
	}
	return set
}

func TestConfidenceTiers(t *testing.T) {
	cases := []struct {
		visibility float64
		confidence float64
	}{
		{1.0, 0.95},
		{0.95, 0.95},
		{0.8, 0.90},
		{0.65, 0.85},
		{0.3, 0.80},
		{0.0, 0.80},
	}

	for _, c := range cases {
		set := uniformSet(c.visibility)
		assert.Equal(t, c.confidence, normalize.EstimateConfidence(set, set), "visibility %v", c.visibility)
	}
}

func TestKeyLandmarksGateTheTopTier(t *testing.T) {
	set := uniformSet(0.95)
	for _, idx := range normalize.KeyLandmarks {
		set.Landmarks[idx].Visibility = 0.7
	}

	avg, keyAvg := normalize.VisibilityAverages(set, set)
	assert.Greater(t, avg, 0.85)
	assert.InDelta(t, 0.7, keyAvg, 1e-9)
	assert.Equal(t, 0.85, normalize.EstimateConfidence(set, set))
}

func TestConfidenceIsMonotoneInVisibility(t *testing.T) {
	prev := 0.0
	for step := 0; step <= 100; step++ {
		set := uniformSet(float64(step) / 100)
		c := normalize.EstimateConfidence(set, set)
		assert.GreaterOrEqual(t, c, prev, "visibility %d%%", step)
		prev = c
	}
}

func TestConfidenceIsMonotoneInKeyVisibility(t *testing.T) {
	prev := 0.0
	for step := 0; step <= 100; step++ {
		set := uniformSet(0.9)
		for _, idx := range normalize.KeyLandmarks {
			set.Landmarks[idx].Visibility = float64(step) / 100
		}
		c := normalize.EstimateConfidence(set, set)
		assert.GreaterOrEqual(t, c, prev, "key visibility %d%%", step)
		prev = c
	}
}

func TestUnknownFieldsHelper(t *testing.T) {
	details := normalize.UnknownFields([]string{"chest", "unit", "zeta", "alpha"})

	if assert.Len(t, details, 2) {
		assert.Equal(t, "alpha", details[0].Field)
		assert.Equal(t, "zeta", details[1].Field)
	}
}
