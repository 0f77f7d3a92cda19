package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/google/uuid"
)

// Pose landmark indices (MediaPipe Pose, 33 points).
const (
	LandmarkCount = 33

	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
)

// LandmarkMeasurer turns a front/side landmark pair into canonical centimeter
// measurements. Implementations must be deterministic.
type LandmarkMeasurer interface {
	Measure(front, side *domain.LandmarkSet) (domain.Measurements, error)
}

// Ratios is the anthropometric policy of RatioMeasurer.
type Ratios struct {
	ReferenceStatureCM float64
	// NoseHeightFraction is the share of stature between floor and nose.
	NoseHeightFraction float64

	NeckToShoulder    float64
	ChestToShoulder   float64
	UnderbustToChest  float64
	WaistToShoulder   float64
	HipToHipWidth     float64
	SleeveToArm       float64
	BicepToUpperArm   float64
	ForearmToLowerArm float64
	ThighToUpperLeg   float64
	KneeToLowerLeg    float64
	CalfToLowerLeg    float64
	AnkleToLowerLeg   float64
	InseamToLeg       float64
	OutseamToLeg      float64
	FrontRiseToTorso  float64
	BackRiseToTorso   float64
}

var DefaultRatios = Ratios{
	ReferenceStatureCM: 170,
	NoseHeightFraction: 0.936,

	NeckToShoulder:    0.84,
	ChestToShoulder:   2.22,
	UnderbustToChest:  0.85,
	WaistToShoulder:   1.78,
	HipToHipWidth:     3.1,
	SleeveToArm:       1.08,
	BicepToUpperArm:   0.9,
	ForearmToLowerArm: 0.95,
	ThighToUpperLeg:   1.3,
	KneeToLowerLeg:    0.95,
	CalfToLowerLeg:    0.875,
	AnkleToLowerLeg:   0.55,
	InseamToLeg:       0.93,
	OutseamToLeg:      1.22,
	FrontRiseToTorso:  0.48,
	BackRiseToTorso:   0.67,
}

// ReferenceBody is returned for poses whose vertical span cannot anchor a scale.
var ReferenceBody = domain.Measurements{
	"height":        170.0,
	"neck":          38.0,
	"shoulder":      45.0,
	"chest":         100.0,
	"underbust":     85.0,
	"waist_natural": 80.0,
	"sleeve":        60.0,
	"bicep":         30.0,
	"forearm":       25.0,
	"hip_low":       100.0,
	"thigh":         55.0,
	"knee":          38.0,
	"calf":          35.0,
	"ankle":         22.0,
	"front_rise":    25.0,
	"back_rise":     35.0,
	"inseam":        76.0,
	"outseam":       100.0,
}

type RatioMeasurer struct {
	ratios Ratios
}

func NewRatioMeasurer(r Ratios) *RatioMeasurer {
	return &RatioMeasurer{ratios: r}
}

type point struct{ x, y, z float64 }

func pixels(set *domain.LandmarkSet) []point {
	w, h := float64(set.ImageWidth), float64(set.ImageHeight)
	pts := make([]point, len(set.Landmarks))
	for i, lm := range set.Landmarks {
		// z shares the x scale in pose-landmark output
		pts[i] = point{x: lm.X * w, y: lm.Y * h, z: lm.Z * w}
	}
	return pts
}

func dist(a, b point) float64 {
	dx, dy, dz := b.x-a.x, b.y-a.y, b.z-a.z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func mid(a, b point) point {
	return point{x: (a.x + b.x) / 2, y: (a.y + b.y) / 2, z: (a.z + b.z) / 2}
}

// pixelsPerCM anchors the scale on the nose to ankle-midpoint vertical span.
func (m *RatioMeasurer) pixelsPerCM(pts []point) float64 {
	ankles := mid(pts[LeftAnkle], pts[RightAnkle])
	span := math.Abs(ankles.y - pts[Nose].y)
	if span < 1 {
		return 0
	}
	return span / (m.ratios.ReferenceStatureCM * m.ratios.NoseHeightFraction)
}

func (m *RatioMeasurer) Measure(front, side *domain.LandmarkSet) (domain.Measurements, error) {
	if len(front.Landmarks) < LandmarkCount || len(side.Landmarks) < LandmarkCount {
		return nil, fmt.Errorf("landmark sets need %d points, got front=%d side=%d",
			LandmarkCount, len(front.Landmarks), len(side.Landmarks))
	}

	fp, sp := pixels(front), pixels(side)
	frontScale := m.pixelsPerCM(fp)
	if frontScale == 0 {
		out := make(domain.Measurements, len(ReferenceBody))
		for k, v := range ReferenceBody {
			out[k] = v
		}
		return out, nil
	}
	sideScale := m.pixelsPerCM(sp)
	if sideScale == 0 {
		sideScale = frontScale
	}

	cm := func(px float64) float64 { return px / frontScale }
	r := m.ratios

	shoulder := cm(dist(fp[LeftShoulder], fp[RightShoulder]))
	hipWidth := cm(dist(fp[LeftHip], fp[RightHip]))
	upperArm := (cm(dist(fp[LeftShoulder], fp[LeftElbow])) + cm(dist(fp[RightShoulder], fp[RightElbow]))) / 2
	lowerArm := (cm(dist(fp[LeftElbow], fp[LeftWrist])) + cm(dist(fp[RightElbow], fp[RightWrist]))) / 2
	upperLeg := (cm(dist(fp[LeftHip], fp[LeftKnee])) + cm(dist(fp[RightHip], fp[RightKnee]))) / 2
	lowerLeg := (cm(dist(fp[LeftKnee], fp[LeftAnkle])) + cm(dist(fp[RightKnee], fp[RightAnkle]))) / 2
	leg := upperLeg + lowerLeg
	torso := dist(mid(sp[LeftShoulder], sp[RightShoulder]), mid(sp[LeftHip], sp[RightHip])) / sideScale
	chest := shoulder * r.ChestToShoulder

	out := domain.Measurements{
		"height":        r.ReferenceStatureCM,
		"neck":          shoulder * r.NeckToShoulder,
		"shoulder":      shoulder,
		"chest":         chest,
		"underbust":     chest * r.UnderbustToChest,
		"waist_natural": shoulder * r.WaistToShoulder,
		"sleeve":        (upperArm + lowerArm) * r.SleeveToArm,
		"bicep":         upperArm * r.BicepToUpperArm,
		"forearm":       lowerArm * r.ForearmToLowerArm,
		"hip_low":       hipWidth * r.HipToHipWidth,
		"thigh":         upperLeg * r.ThighToUpperLeg,
		"knee":          lowerLeg * r.KneeToLowerLeg,
		"calf":          lowerLeg * r.CalfToLowerLeg,
		"ankle":         lowerLeg * r.AnkleToLowerLeg,
		"front_rise":    torso * r.FrontRiseToTorso,
		"back_rise":     torso * r.BackRiseToTorso,
		"inseam":        leg * r.InseamToLeg,
		"outseam":       leg * r.OutseamToLeg,
	}
	for k, v := range out {
		out[k] = math.Round(v*10) / 10
	}
	return out, nil
}

// validateLandmarkSet checks the fixed schema of a pose landmark set.
func validateLandmarkSet(field string, set *domain.LandmarkSet) []domain.ErrorDetail {
	var details []domain.ErrorDetail
	if len(set.Landmarks) != LandmarkCount {
		details = append(details, domain.ErrorDetail{
			Field:   field + ".landmarks",
			Message: fmt.Sprintf("expected %d landmarks, got %d", LandmarkCount, len(set.Landmarks)),
		})
	}
	if set.ImageWidth <= 0 || set.ImageHeight <= 0 {
		details = append(details, domain.ErrorDetail{
			Field:   field + ".image_width",
			Message: "image_width and image_height must be positive",
		})
	}
	for i, lm := range set.Landmarks {
		if lm.Visibility < 0 || lm.Visibility > 1 || math.IsNaN(lm.Visibility) {
			details = append(details, domain.ErrorDetail{
				Field:   fmt.Sprintf("%s.landmarks[%d].visibility", field, i),
				Message: "visibility must be within [0, 1]",
			})
		}
		if !finite(lm.X) || !finite(lm.Y) || !finite(lm.Z) {
			details = append(details, domain.ErrorDetail{
				Field:   fmt.Sprintf("%s.landmarks[%d]", field, i),
				Message: "coordinates must be finite",
			})
		}
	}
	return details
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

var landmarkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("measurement-service/landmark-sets"))

// LandmarkSetID derives the id of a landmark set from its session, view and
// content. The same set under another session gets a different id.
func LandmarkSetID(sessionID, view string, set *domain.LandmarkSet) (string, error) {
	b, err := json.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("encode %s landmark set: %w", view, err)
	}
	name := append([]byte(fmt.Sprintf("%d:%s:%s:", len(sessionID), sessionID, view)), b...)
	return uuid.NewSHA1(landmarkNamespace, name).String(), nil
}
