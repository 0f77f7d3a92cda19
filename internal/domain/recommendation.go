package domain

type SizeRecommendation struct {
	Category   string  `json:"category"`
	Size       string  `json:"size"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

type RecommendationResponse struct {
	Recommendations       []SizeRecommendation  `json:"recommendations"`
	ProcessedMeasurements NormalizedMeasurement `json:"processed_measurements"`
	ModelVersion          string                `json:"model_version"`
	SessionID             string                `json:"session_id"`
	CacheHit              bool                  `json:"cache_hit"`
}

type BatchItemResult struct {
	Index       int                    `json:"index"`
	Status      string                 `json:"status"`
	Measurement *NormalizedMeasurement `json:"measurement,omitempty"`
	Error       *ErrorEnvelope         `json:"error,omitempty"`
}

type BatchSummary struct {
	SuccessCount     int   `json:"success_count"`
	FailedCount      int   `json:"failed_count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

type BatchResponse struct {
	Results []BatchItemResult `json:"results"`
	Summary BatchSummary      `json:"summary"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)
