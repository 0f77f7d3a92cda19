// Package normalize validates measurement requests and converts them into the
// canonical centimeter record. It performs no I/O and keeps no state between
// calls, so one Engine may be shared by concurrent requests.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CodeUnknownField        = "unknown_field"
	CodeInvalidValue        = "invalid_value"
	CodeIncompleteLandmarks = "incomplete_landmarks"
	CodeInvalidLandmarks    = "invalid_landmarks"
	CodeMalformedBody       = "malformed_body"
	CodeInternal            = "internal"
)

type Engine struct {
	measurer     LandmarkMeasurer
	newSessionID func() string
	modelVersion string
}

type Option func(*Engine)

func WithMeasurer(m LandmarkMeasurer) Option {
	return func(e *Engine) { e.measurer = m }
}

func WithSessionIDFunc(f func() string) Option {
	return func(e *Engine) { e.newSessionID = f }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		measurer:     NewRatioMeasurer(DefaultRatios),
		newSessionID: uuid.NewString,
		modelVersion: domain.ModelVersion,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NormalizeJSON validates the raw key set before any typed decoding, then
// normalizes the decoded request.
func (e *Engine) NormalizeJSON(raw []byte) (*domain.NormalizedMeasurement, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, domain.NewError(domain.ValidationError, CodeMalformedBody,
			"Request body must be a JSON object",
			domain.ErrorDetail{Field: "", Message: err.Error()})
	}
	sessionID := peekSessionID(fields)

	if !present(fields, "front_landmarks") && !present(fields, "side_landmarks") {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		if details := UnknownFields(keys); len(details) > 0 {
			return nil, domain.NewError(domain.ValidationError, CodeUnknownField,
				"One or more fields are not recognized", details...).WithSession(sessionID)
		}
	}

	if details := decodeDetails(fields); len(details) > 0 {
		return nil, domain.NewError(domain.ValidationError, CodeInvalidValue,
			"One or more fields have invalid values", details...).WithSession(sessionID)
	}

	var in domain.MeasurementInput
	if err := json.Unmarshal(raw, &in); err != nil {
		detail := domain.ErrorDetail{Message: err.Error()}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			detail.Field = typeErr.Field
		}
		return nil, domain.NewError(domain.ValidationError, CodeInvalidValue,
			"One or more fields have invalid values", detail).WithSession(sessionID)
	}
	return e.Normalize(&in)
}

func present(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func peekSessionID(fields map[string]json.RawMessage) string {
	var s string
	if v, ok := fields["session_id"]; ok {
		_ = json.Unmarshal(v, &s)
	}
	return s
}

// decodeDetails reports per-field type problems for measurements and unit.
func decodeDetails(fields map[string]json.RawMessage) []domain.ErrorDetail {
	var details []domain.ErrorDetail
	for _, name := range domain.CanonicalFields {
		v, ok := fields[name]
		if !ok {
			continue
		}
		var f *float64
		if err := json.Unmarshal(v, &f); err != nil {
			details = append(details, domain.ErrorDetail{
				Field:   name,
				Message: fmt.Sprintf("%s must be a number", name),
			})
		}
	}
	if v, ok := fields["unit"]; ok {
		var u string
		if err := json.Unmarshal(v, &u); err != nil {
			details = append(details, domain.ErrorDetail{
				Field:   "unit",
				Message: "unit must be a string",
				Hint:    `Use "cm" or "in"`,
			})
		}
	}
	return details
}

// Normalize converts an already decoded request.
func (e *Engine) Normalize(in *domain.MeasurementInput) (*domain.NormalizedMeasurement, error) {
	switch {
	case in.FrontLandmarks != nil && in.SideLandmarks != nil:
		return e.fromLandmarks(in)
	case in.HasLandmarks():
		missing := "side_landmarks"
		if in.FrontLandmarks == nil {
			missing = "front_landmarks"
		}
		return nil, domain.NewError(domain.ValidationError, CodeIncompleteLandmarks,
			"Both front and side landmark sets are required",
			domain.ErrorDetail{Field: missing, Message: fmt.Sprintf("%s is required when landmarks are supplied", missing)},
		).WithSession(in.SessionID)
	default:
		return e.fromUserInput(in)
	}
}

func (e *Engine) fromUserInput(in *domain.MeasurementInput) (*domain.NormalizedMeasurement, error) {
	unit := in.Unit
	if unit == "" {
		unit = domain.UnitCM
	}

	var details []domain.ErrorDetail
	if unit != domain.UnitCM && unit != domain.UnitIN {
		details = append(details, domain.ErrorDetail{
			Field:   "unit",
			Message: fmt.Sprintf("unsupported unit %q", in.Unit),
			Hint:    `Use "cm" or "in"`,
		})
	}

	ms := make(domain.Measurements, len(domain.CanonicalFields))
	for _, name := range domain.CanonicalFields {
		v := in.Field(name)
		if v == nil {
			// absent measurements read as 0, not null
			ms[name] = 0
			continue
		}
		if !finite(*v) || *v <= 0 {
			details = append(details, domain.ErrorDetail{
				Field:   name,
				Message: fmt.Sprintf("%s must be positive", name),
			})
			continue
		}
		cm := ToCentimeters(*v, unit)
		if !finite(cm) {
			details = append(details, domain.ErrorDetail{
				Field:   name,
				Message: fmt.Sprintf("%s is out of range", name),
			})
			continue
		}
		ms[name] = cm
	}
	if len(details) > 0 {
		return nil, domain.NewError(domain.ValidationError, CodeInvalidValue,
			"One or more fields have invalid values", details...).WithSession(in.SessionID)
	}

	out := e.assemble(in, ms)
	out.Source = domain.SourceUserInput
	out.Confidence = 1.0
	out.AccuracyEstimate = 0.0
	return out, nil
}

func (e *Engine) fromLandmarks(in *domain.MeasurementInput) (*domain.NormalizedMeasurement, error) {
	details := append(validateLandmarkSet("front_landmarks", in.FrontLandmarks),
		validateLandmarkSet("side_landmarks", in.SideLandmarks)...)
	if len(details) > 0 {
		return nil, domain.NewError(domain.ValidationError, CodeInvalidLandmarks,
			"Landmark sets do not match the pose schema", details...).WithSession(in.SessionID)
	}

	ms, err := e.measurer.Measure(in.FrontLandmarks, in.SideLandmarks)
	if err != nil {
		return nil, internalError(in.SessionID, err)
	}
	for _, name := range domain.CanonicalFields {
		v, ok := ms[name]
		if !ok || !finite(v) || v < 0 {
			return nil, internalError(in.SessionID,
				fmt.Errorf("%w: measurer produced %s=%v (present=%t)", domain.ErrInvariantViolated, name, v, ok))
		}
	}

	out := e.assemble(in, ms)

	frontID, err := LandmarkSetID(out.SessionID, domain.ViewFront, in.FrontLandmarks)
	if err != nil {
		return nil, internalError(out.SessionID, err)
	}
	sideID, err := LandmarkSetID(out.SessionID, domain.ViewSide, in.SideLandmarks)
	if err != nil {
		return nil, internalError(out.SessionID, err)
	}

	confidence := EstimateConfidence(in.FrontLandmarks, in.SideLandmarks)

	out.Source = domain.SourceLandmarkDerived
	out.Confidence = confidence
	out.AccuracyEstimate = decimal.NewFromInt(1).Sub(decimal.NewFromFloat(confidence)).InexactFloat64()
	out.FrontLandmarksID = frontID
	out.SideLandmarksID = sideID
	return out, nil
}

func (e *Engine) assemble(in *domain.MeasurementInput, ms domain.Measurements) *domain.NormalizedMeasurement {
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = e.newSessionID()
	}
	out := &domain.NormalizedMeasurement{
		ModelVersion:  e.modelVersion,
		SessionID:     sessionID,
		FrontPhotoURL: in.FrontPhotoURL,
		SidePhotoURL:  in.SidePhotoURL,
	}
	out.Apply(ms)
	return out
}

func internalError(sessionID string, err error) error {
	return domain.NewError(domain.ServerError, CodeInternal,
		"An unexpected error occurred during validation",
		domain.ErrorDetail{Field: "", Message: err.Error()},
	).WithSession(sessionID)
}
