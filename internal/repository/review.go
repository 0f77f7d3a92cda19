package repository

import (
	"context"
	"fmt"

	"github.com/actuallystonmai/measurement-service/internal/domain"
)

func (r *Repository) FlagForReview(ctx context.Context, sessionID string, accuracy float64, source domain.Source) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO review_flags (session_id, accuracy_estimate, source) VALUES ($1, $2, $3)`,
		sessionID, accuracy, string(source),
	)
	if err != nil {
		return fmt.Errorf("flag session %s for review: %w", sessionID, err)
	}
	return nil
}

// Most recent flags first
func (r *Repository) ListReviewFlags(ctx context.Context, limit int) ([]domain.ReviewFlag, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, accuracy_estimate, source, created_at
		FROM review_flags
		ORDER BY created_at DESC, id DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query review flags: %w", err)
	}
	defer rows.Close()

	var flags []domain.ReviewFlag
	for rows.Next() {
		var f domain.ReviewFlag
		var source string
		if err := rows.Scan(&f.ID, &f.SessionID, &f.AccuracyEstimate, &source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review flag: %w", err)
		}
		f.Source = domain.Source(source)
		flags = append(flags, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over review flags: %w", err)
	}
	return flags, nil
}

func (r *Repository) CountReviewFlags(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM review_flags`,
	).Scan(&total)

	if err != nil {
		return 0, fmt.Errorf("count review flags: %w", err)
	}
	return total, nil
}
