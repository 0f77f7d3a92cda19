package normalize

import "github.com/actuallystonmai/measurement-service/internal/domain"

// KeyLandmarks weigh in separately when grading visibility.
var KeyLandmarks = []int{
	LeftShoulder, RightShoulder,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

type confidenceTier struct {
	minAverage    float64
	minKeyAverage float64
	confidence    float64
}

// Ordered from best to worst; the first satisfied tier wins.
var confidenceTiers = []confidenceTier{
	{minAverage: 0.85, minKeyAverage: 0.9, confidence: 0.95},
	{minAverage: 0.7, minKeyAverage: 0.75, confidence: 0.90},
	{minAverage: 0.5, minKeyAverage: 0.6, confidence: 0.85},
}

const floorConfidence = 0.80

// VisibilityAverages returns the mean visibility over every landmark of both
// sets and over KeyLandmarks only.
func VisibilityAverages(front, side *domain.LandmarkSet) (avg, keyAvg float64) {
	var sum, keySum float64
	var n, keyN int
	for _, set := range []*domain.LandmarkSet{front, side} {
		for _, lm := range set.Landmarks {
			sum += lm.Visibility
			n++
		}
		for _, idx := range KeyLandmarks {
			if idx < len(set.Landmarks) {
				keySum += set.Landmarks[idx].Visibility
				keyN++
			}
		}
	}
	if n > 0 {
		avg = sum / float64(n)
	}
	if keyN > 0 {
		keyAvg = keySum / float64(keyN)
	}
	return avg, keyAvg
}

// EstimateConfidence maps landmark visibility to a confidence tier. It is
// monotone: raising either average never lowers the result.
func EstimateConfidence(front, side *domain.LandmarkSet) float64 {
	avg, keyAvg := VisibilityAverages(front, side)
	return confidenceFor(avg, keyAvg)
}

func confidenceFor(avg, keyAvg float64) float64 {
	for _, t := range confidenceTiers {
		if avg >= t.minAverage && keyAvg >= t.minKeyAverage {
			return t.confidence
		}
	}
	return floorConfidence
}
