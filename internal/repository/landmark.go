package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Save a landmark set under its id. Ids are unique per session, so a repeated
// submission leaves the stored row untouched.
func (r *Repository) SaveLandmarkSet(ctx context.Context, id, sessionID, view string, set *domain.LandmarkSet) error {
	landmarks, err := json.Marshal(set.Landmarks)
	if err != nil {
		return fmt.Errorf("encode landmarks for %s: %w", id, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO landmark_sets (id, session_id, view, landmarks, image_width, image_height, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		id, sessionID, view, landmarks, set.ImageWidth, set.ImageHeight, set.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save landmark set %s: %w", id, err)
	}
	return nil
}

// Get single landmark set
func (r *Repository) GetLandmarkSet(ctx context.Context, id string) (*domain.StoredLandmarkSet, error) {
	stored := &domain.StoredLandmarkSet{}
	var landmarks []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id::text, session_id, view, landmarks, image_width, image_height, captured_at, created_at
		FROM landmark_sets WHERE id = $1`,
		id,
	).Scan(&stored.ID, &stored.SessionID, &stored.View, &landmarks,
		&stored.Set.ImageWidth, &stored.Set.ImageHeight, &stored.Set.Timestamp, &stored.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLandmarksMissing
		}
		return nil, fmt.Errorf("query landmark set id=%s: %w", id, err)
	}

	if err := json.Unmarshal(landmarks, &stored.Set.Landmarks); err != nil {
		return nil, fmt.Errorf("decode landmarks for %s: %w", id, err)
	}
	return stored, nil
}

func (r *Repository) ListLandmarkSets(ctx context.Context, sessionID string) ([]domain.StoredLandmarkSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, session_id, view, landmarks, image_width, image_height, captured_at, created_at
		FROM landmark_sets
		WHERE session_id = $1
		ORDER BY view`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query landmark sets for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var items []domain.StoredLandmarkSet
	for rows.Next() {
		var s domain.StoredLandmarkSet
		var landmarks []byte
		if err := rows.Scan(&s.ID, &s.SessionID, &s.View, &landmarks,
			&s.Set.ImageWidth, &s.Set.ImageHeight, &s.Set.Timestamp, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan landmark set: %w", err)
		}
		if err := json.Unmarshal(landmarks, &s.Set.Landmarks); err != nil {
			return nil, fmt.Errorf("decode landmarks for %s: %w", s.ID, err)
		}
		items = append(items, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over landmark sets: %w", err)
	}
	return items, nil
}
