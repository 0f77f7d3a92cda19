package domain

type Unit string

const (
	UnitCM Unit = "cm"
	UnitIN Unit = "in"
)

type Source string

const (
	SourceUserInput       Source = "user_input"
	SourceLandmarkDerived Source = "landmark_derived"
)

const ModelVersion = "v1.0-mediapipe"

// CanonicalFields is the closed set of measurement names, in output order.
var CanonicalFields = []string{
	"height",
	"neck",
	"shoulder",
	"chest",
	"underbust",
	"waist_natural",
	"sleeve",
	"bicep",
	"forearm",
	"hip_low",
	"thigh",
	"knee",
	"calf",
	"ankle",
	"front_rise",
	"back_rise",
	"inseam",
	"outseam",
}

// MetadataFields may accompany a measurement request without being measurements.
var MetadataFields = []string{
	"unit",
	"session_id",
	"front_landmarks",
	"side_landmarks",
	"front_photo_url",
	"side_photo_url",
	"source_type",
	"platform",
	"arkit_body_anchor",
	"arkit_depth_map",
	"browser_info",
	"processing_location",
	"device_id",
}

type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

type LandmarkSet struct {
	Landmarks   []Landmark `json:"landmarks"`
	Timestamp   string     `json:"timestamp"`
	ImageWidth  int        `json:"image_width"`
	ImageHeight int        `json:"image_height"`
}

type MeasurementInput struct {
	Height       *float64 `json:"height,omitempty"`
	Neck         *float64 `json:"neck,omitempty"`
	Shoulder     *float64 `json:"shoulder,omitempty"`
	Chest        *float64 `json:"chest,omitempty"`
	Underbust    *float64 `json:"underbust,omitempty"`
	WaistNatural *float64 `json:"waist_natural,omitempty"`
	Sleeve       *float64 `json:"sleeve,omitempty"`
	Bicep        *float64 `json:"bicep,omitempty"`
	Forearm      *float64 `json:"forearm,omitempty"`
	HipLow       *float64 `json:"hip_low,omitempty"`
	Thigh        *float64 `json:"thigh,omitempty"`
	Knee         *float64 `json:"knee,omitempty"`
	Calf         *float64 `json:"calf,omitempty"`
	Ankle        *float64 `json:"ankle,omitempty"`
	FrontRise    *float64 `json:"front_rise,omitempty"`
	BackRise     *float64 `json:"back_rise,omitempty"`
	Inseam       *float64 `json:"inseam,omitempty"`
	Outseam      *float64 `json:"outseam,omitempty"`

	Unit      Unit   `json:"unit,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	FrontLandmarks *LandmarkSet `json:"front_landmarks,omitempty"`
	SideLandmarks  *LandmarkSet `json:"side_landmarks,omitempty"`

	FrontPhotoURL      string         `json:"front_photo_url,omitempty"`
	SidePhotoURL       string         `json:"side_photo_url,omitempty"`
	SourceType         string         `json:"source_type,omitempty"`
	Platform           string         `json:"platform,omitempty"`
	ArkitBodyAnchor    map[string]any `json:"arkit_body_anchor,omitempty"`
	ArkitDepthMap      string         `json:"arkit_depth_map,omitempty"`
	BrowserInfo        map[string]any `json:"browser_info,omitempty"`
	ProcessingLocation string         `json:"processing_location,omitempty"`
	DeviceID           string         `json:"device_id,omitempty"`
}

// Field returns the supplied value for a canonical name, nil when absent or unknown.
func (in *MeasurementInput) Field(name string) *float64 {
	switch name {
	case "height":
		return in.Height
	case "neck":
		return in.Neck
	case "shoulder":
		return in.Shoulder
	case "chest":
		return in.Chest
	case "underbust":
		return in.Underbust
	case "waist_natural":
		return in.WaistNatural
	case "sleeve":
		return in.Sleeve
	case "bicep":
		return in.Bicep
	case "forearm":
		return in.Forearm
	case "hip_low":
		return in.HipLow
	case "thigh":
		return in.Thigh
	case "knee":
		return in.Knee
	case "calf":
		return in.Calf
	case "ankle":
		return in.Ankle
	case "front_rise":
		return in.FrontRise
	case "back_rise":
		return in.BackRise
	case "inseam":
		return in.Inseam
	case "outseam":
		return in.Outseam
	}
	return nil
}

// HasLandmarks reports whether any landmark set was supplied.
func (in *MeasurementInput) HasLandmarks() bool {
	return in.FrontLandmarks != nil || in.SideLandmarks != nil
}

type NormalizedMeasurement struct {
	HeightCM       float64 `json:"height_cm"`
	NeckCM         float64 `json:"neck_cm"`
	ShoulderCM     float64 `json:"shoulder_cm"`
	ChestCM        float64 `json:"chest_cm"`
	UnderbustCM    float64 `json:"underbust_cm"`
	WaistNaturalCM float64 `json:"waist_natural_cm"`
	SleeveCM       float64 `json:"sleeve_cm"`
	BicepCM        float64 `json:"bicep_cm"`
	ForearmCM      float64 `json:"forearm_cm"`
	HipLowCM       float64 `json:"hip_low_cm"`
	ThighCM        float64 `json:"thigh_cm"`
	KneeCM         float64 `json:"knee_cm"`
	CalfCM         float64 `json:"calf_cm"`
	AnkleCM        float64 `json:"ankle_cm"`
	FrontRiseCM    float64 `json:"front_rise_cm"`
	BackRiseCM     float64 `json:"back_rise_cm"`
	InseamCM       float64 `json:"inseam_cm"`
	OutseamCM      float64 `json:"outseam_cm"`

	Source           Source  `json:"source"`
	ModelVersion     string  `json:"model_version"`
	Confidence       float64 `json:"confidence"`
	AccuracyEstimate float64 `json:"accuracy_estimate"`
	SessionID        string  `json:"session_id"`

	FrontPhotoURL    string `json:"front_photo_url,omitempty"`
	SidePhotoURL     string `json:"side_photo_url,omitempty"`
	FrontLandmarksID string `json:"front_landmarks_id,omitempty"`
	SideLandmarksID  string `json:"side_landmarks_id,omitempty"`
}

// Measurements is a canonical-name to centimeter mapping.
type Measurements map[string]float64

func (m *NormalizedMeasurement) fieldPtr(name string) *float64 {
	switch name {
	case "height":
		return &m.HeightCM
	case "neck":
		return &m.NeckCM
	case "shoulder":
		return &m.ShoulderCM
	case "chest":
		return &m.ChestCM
	case "underbust":
		return &m.UnderbustCM
	case "waist_natural":
		return &m.WaistNaturalCM
	case "sleeve":
		return &m.SleeveCM
	case "bicep":
		return &m.BicepCM
	case "forearm":
		return &m.ForearmCM
	case "hip_low":
		return &m.HipLowCM
	case "thigh":
		return &m.ThighCM
	case "knee":
		return &m.KneeCM
	case "calf":
		return &m.CalfCM
	case "ankle":
		return &m.AnkleCM
	case "front_rise":
		return &m.FrontRiseCM
	case "back_rise":
		return &m.BackRiseCM
	case "inseam":
		return &m.InseamCM
	case "outseam":
		return &m.OutseamCM
	}
	return nil
}

// Apply copies every canonical value of ms into m. Missing names resolve to 0.
func (m *NormalizedMeasurement) Apply(ms Measurements) {
	for _, name := range CanonicalFields {
		if p := m.fieldPtr(name); p != nil {
			*p = ms[name]
		}
	}
}

// Measurements returns the canonical values keyed by name.
func (m *NormalizedMeasurement) Measurements() Measurements {
	out := make(Measurements, len(CanonicalFields))
	for _, name := range CanonicalFields {
		if p := m.fieldPtr(name); p != nil {
			out[name] = *p
		}
	}
	return out
}

// HasField reports whether name maps onto an output column.
func (m *NormalizedMeasurement) HasField(name string) bool {
	return m.fieldPtr(name) != nil
}
