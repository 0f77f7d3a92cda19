package seeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/normalize"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	imageWidth  = 1080
	imageHeight = 1920
)

// Setup loads demo capture sessions: synthetic front/side poses and review
// flags for the ones whose visibility grades below the review threshold.
func Setup(ctx context.Context, pool *pgxpool.Pool) error {
	rng := rand.New(rand.NewSource(42))

	slog.Info("[seed] truncating existing data")
	if _, err := pool.Exec(ctx, `TRUNCATE landmark_sets, review_flags RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	slog.Info("[seed] inserting landmark sets")
	flagged, err := seedLandmarkSets(ctx, pool, rng, 20)
	if err != nil {
		return fmt.Errorf("seed landmark sets: %w", err)
	}

	slog.Info("[seed] inserting review flags", "count", len(flagged))
	if err := seedReviewFlags(ctx, pool, flagged); err != nil {
		return fmt.Errorf("seed review flags: %w", err)
	}

	slog.Info("[seed] seeding complete")
	return nil
}

type flaggedSession struct {
	sessionID string
	accuracy  float64
}

func seedLandmarkSets(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, n int) ([]flaggedSession, error) {
	visibilityLevels := []string{"studio", "indoor", "dim"}
	visibilityWeights := []float64{0.5, 0.3, 0.2}
	visibilityByLevel := map[string]float64{"studio": 0.95, "indoor": 0.8, "dim": 0.55}

	rows := []string{}
	args := []any{}
	var flagged []flaggedSession

	for i := range n {
		sessionID := fmt.Sprintf("seed-session-%03d", i+1)
		visibility := visibilityByLevel[weightedChoice(rng, visibilityLevels, visibilityWeights)]

		front := SyntheticPose(rng, "front", visibility)
		side := SyntheticPose(rng, "side", visibility)

		if c := normalize.EstimateConfidence(front, side); 1-c > 0.03 {
			flagged = append(flagged, flaggedSession{sessionID: sessionID, accuracy: math.Round((1-c)*100) / 100})
		}

		for _, v := range []struct {
			view string
			set  *domain.LandmarkSet
		}{{"front", front}, {"side", side}} {
			id, err := normalize.LandmarkSetID(sessionID, v.view, v.set)
			if err != nil {
				return nil, err
			}
			landmarks, err := json.Marshal(v.set.Landmarks)
			if err != nil {
				return nil, fmt.Errorf("encode landmarks: %w", err)
			}

			base := len(args)
			rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7))
			args = append(args, id, sessionID, v.view, landmarks, v.set.ImageWidth, v.set.ImageHeight, v.set.Timestamp)
		}
	}

	if len(rows) == 0 {
		return flagged, nil
	}

	query := "INSERT INTO landmark_sets (id, session_id, view, landmarks, image_width, image_height, captured_at) VALUES " +
		strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return flagged, err
}

func seedReviewFlags(ctx context.Context, pool *pgxpool.Pool, flagged []flaggedSession) error {
	rows := []string{}
	args := []any{}

	for _, f := range flagged {
		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, f.sessionID, f.accuracy, string(domain.SourceLandmarkDerived))
	}

	if len(rows) == 0 {
		return nil
	}

	query := "INSERT INTO review_flags (session_id, accuracy_estimate, source) VALUES " + strings.Join(rows, ", ")

	_, err := pool.Exec(ctx, query, args...)
	return err
}

// joint anchors in normalized image coordinates for a standing subject
var frontAnchors = map[int][2]float64{
	normalize.Nose:          {0.500, 0.120},
	normalize.LeftShoulder:  {0.695, 0.220},
	normalize.RightShoulder: {0.305, 0.220},
	normalize.LeftElbow:     {0.700, 0.367},
	normalize.RightElbow:    {0.300, 0.367},
	normalize.LeftWrist:     {0.705, 0.494},
	normalize.RightWrist:    {0.295, 0.494},
	normalize.LeftHip:       {0.640, 0.520},
	normalize.RightHip:      {0.360, 0.520},
	normalize.LeftKnee:      {0.640, 0.726},
	normalize.RightKnee:     {0.360, 0.726},
	normalize.LeftAnkle:     {0.640, 0.900},
	normalize.RightAnkle:    {0.360, 0.900},
}

// SyntheticPose builds a 33-point landmark set of a standing subject. Points
// without an anchor sit near the nearest body region. The result depends only
// on the rng state, so a seeded rng reproduces the same pose.
func SyntheticPose(rng *rand.Rand, view string, visibility float64) *domain.LandmarkSet {
	landmarks := make([]domain.Landmark, normalize.LandmarkCount)
	for i := range landmarks {
		anchor, ok := frontAnchors[i]
		if !ok {
			anchor = fillerAnchor(i)
		}
		x, y := anchor[0], anchor[1]
		z := 0.0
		if view == "side" {
			// profile: lateral spread collapses, depth opens up
			z = (x - 0.5) * 0.6
			x = 0.5 + (x-0.5)*0.15
		}
		jitter := func() float64 { return (rng.Float64() - 0.5) * 0.004 }
		vis := math.Max(0, math.Min(1, visibility+(rng.Float64()-0.5)*0.04))
		landmarks[i] = domain.Landmark{
			X:          round4(x + jitter()),
			Y:          round4(y + jitter()),
			Z:          round4(z),
			Visibility: round4(vis),
		}
	}
	return &domain.LandmarkSet{
		Landmarks:   landmarks,
		Timestamp:   "2025-10-26T15:00:00Z",
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
	}
}

func fillerAnchor(i int) [2]float64 {
	switch {
	case i <= 10:
		// face
		return [2]float64{0.5 + float64(i%3-1)*0.02, 0.11 + float64(i%2)*0.01}
	case i <= 22:
		// hands
		if i%2 == 1 {
			return [2]float64{0.71, 0.52}
		}
		return [2]float64{0.29, 0.52}
	default:
		// feet
		if i%2 == 1 {
			return [2]float64{0.645, 0.93}
		}
		return [2]float64{0.355, 0.93}
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func weightedChoice(rng *rand.Rand, choices []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
