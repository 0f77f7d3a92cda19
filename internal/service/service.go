package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/actuallystonmai/measurement-service/internal/cache"
	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/model"
	"github.com/actuallystonmai/measurement-service/internal/normalize"
	"github.com/actuallystonmai/measurement-service/internal/repository"
)

const (
	defaultReviewThreshold  = 0.03
	defaultBatchConcurrency = 10
	maxBatchSize            = 100
	reviewFlagLimit         = 50
)

const (
	CodeStorageUnavailable       = "storage_unavailable"
	CodeInsufficientMeasurements = "insufficient_measurements"
	CodeBatchTooLarge            = "batch_too_large"
)

type Options struct {
	ReviewThreshold  float64
	BatchConcurrency int
}

type Service struct {
	engine      *normalize.Engine
	repo        *repository.Repository
	cache       *cache.Cache
	modelClient *model.Client

	reviewThreshold  float64
	batchConcurrency int
}

func NewService(engine *normalize.Engine, repo *repository.Repository, cache *cache.Cache, modelClient *model.Client, opts Options) *Service {
	if opts.ReviewThreshold <= 0 {
		opts.ReviewThreshold = defaultReviewThreshold
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}
	return &Service{
		engine:           engine,
		repo:             repo,
		cache:            cache,
		modelClient:      modelClient,
		reviewThreshold:  opts.ReviewThreshold,
		batchConcurrency: opts.BatchConcurrency,
	}
}

// Validate normalizes one raw request. Landmark-derived results have their
// landmark sets stored under the returned ids and, when the accuracy estimate
// is above the review threshold, a review flag.
func (s *Service) Validate(ctx context.Context, raw []byte) (*domain.NormalizedMeasurement, error) {
	out, err := s.engine.NormalizeJSON(raw)
	if err != nil {
		slog.Warn("[service] validation rejected", "error", err)
		return nil, err
	}

	if out.Source == domain.SourceLandmarkDerived {
		if err := s.storeLandmarks(ctx, raw, out); err != nil {
			slog.Error("[service] landmark storage failed", "session_id", out.SessionID, "error", err)
			return nil, domain.NewError(domain.ServerError, CodeStorageUnavailable,
				"Landmark sets could not be stored",
				domain.ErrorDetail{Message: err.Error()},
			).WithSession(out.SessionID)
		}

		if out.AccuracyEstimate > s.reviewThreshold {
			if err := s.repo.FlagForReview(ctx, out.SessionID, out.AccuracyEstimate, out.Source); err != nil {
				slog.Error("[service] review flag failed", "session_id", out.SessionID, "error", err)
			} else {
				slog.Info("[service] session flagged for review", "session_id", out.SessionID, "accuracy_estimate", out.AccuracyEstimate)
			}
		}
	}

	// A new record replaces whatever the session had cached
	if err := s.cache.ClearSession(ctx, out.SessionID); err != nil {
		slog.Warn("[service] cache invalidation error", "session_id", out.SessionID, "error", err)
	}
	if err := s.cache.SetMeasurement(ctx, out); err != nil {
		slog.Warn("[service] cache set error", "session_id", out.SessionID, "error", err)
	}

	return out, nil
}

func (s *Service) storeLandmarks(ctx context.Context, raw []byte, out *domain.NormalizedMeasurement) error {
	var in domain.MeasurementInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode landmark sets: %w", err)
	}
	if in.FrontLandmarks == nil || in.SideLandmarks == nil {
		return fmt.Errorf("%w: landmark result without both landmark sets", domain.ErrInvariantViolated)
	}

	if err := s.repo.SaveLandmarkSet(ctx, out.FrontLandmarksID, out.SessionID, domain.ViewFront, in.FrontLandmarks); err != nil {
		return err
	}
	return s.repo.SaveLandmarkSet(ctx, out.SideLandmarksID, out.SessionID, domain.ViewSide, in.SideLandmarks)
}

// ValidateBatch validates every item independently with bounded concurrency.
// Results keep the input order.
func (s *Service) ValidateBatch(ctx context.Context, items []json.RawMessage) (*domain.BatchResponse, error) {
	if len(items) > maxBatchSize {
		return nil, domain.NewError(domain.ValidationError, CodeBatchTooLarge,
			fmt.Sprintf("A batch may hold at most %d items", maxBatchSize),
			domain.ErrorDetail{Field: "items", Message: fmt.Sprintf("got %d items", len(items))})
	}

	start := time.Now()

	// Process items concurrently with bounded worker pool. Items of one
	// session run in input order on a single worker, so the last of them is
	// the record left in the cache.
	results := make([]domain.BatchItemResult, len(items))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.batchConcurrency) // semaphore

	for _, group := range groupBySession(items) {
		wg.Add(1)
		go func(indexes []int) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			for _, idx := range indexes {
				results[idx] = s.processItemForBatch(ctx, idx, items[idx])
			}
		}(group)
	}
	wg.Wait()

	// summary
	successCount := 0
	failedCount := 0
	for _, r := range results {
		if r.Status == domain.StatusSuccess {
			successCount++
		} else {
			failedCount++
		}
	}

	return &domain.BatchResponse{
		Results: results,
		Summary: domain.BatchSummary{
			SuccessCount:     successCount,
			FailedCount:      failedCount,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

// groupBySession returns item indexes grouped by session id, in input order.
// Items without a readable session id form groups of one.
func groupBySession(items []json.RawMessage) [][]int {
	var groups [][]int
	bySession := make(map[string]int)
	for i, raw := range items {
		var head struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.SessionID == "" {
			groups = append(groups, []int{i})
			continue
		}
		if g, ok := bySession[head.SessionID]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		bySession[head.SessionID] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

func (s *Service) processItemForBatch(ctx context.Context, idx int, raw json.RawMessage) domain.BatchItemResult {
	out, err := s.Validate(ctx, raw)
	if err != nil {
		return domain.BatchItemResult{
			Index:  idx,
			Status: domain.StatusFailed,
			Error:  CategorizeError(err),
		}
	}
	return domain.BatchItemResult{
		Index:       idx,
		Status:      domain.StatusSuccess,
		Measurement: out,
	}
}

// Recommend sizes a normalized record. A cached response is reused only when
// it was computed from the same record.
func (s *Service) Recommend(ctx context.Context, m *domain.NormalizedMeasurement) (*domain.RecommendationResponse, error) {
	if m.SessionID != "" {
		cached, found, err := s.cache.GetRecommendations(ctx, m.SessionID)
		if err != nil {
			slog.Warn("[service] cache get error", "session_id", m.SessionID, "error", err)
		}
		if found && cached.ProcessedMeasurements == *m {
			cached.CacheHit = true
			return cached, nil
		}
	}

	recs, err := s.modelClient.Recommend(m)
	if err != nil {
		var inference *model.InferenceError
		if errors.As(err, &inference) {
			details := make([]domain.ErrorDetail, 0, len(inference.Missing))
			for _, field := range inference.Missing {
				details = append(details, domain.ErrorDetail{Field: field, Message: fmt.Sprintf("%s must be positive", field)})
			}
			return nil, domain.NewError(domain.ValidationError, CodeInsufficientMeasurements,
				"Measurements are insufficient for a size recommendation", details...).WithSession(m.SessionID)
		}
		return nil, fmt.Errorf("recommend sizes: %w", err)
	}

	version := m.ModelVersion
	if version == "" {
		version = domain.ModelVersion
	}
	resp := &domain.RecommendationResponse{
		Recommendations:       recs,
		ProcessedMeasurements: *m,
		ModelVersion:          version,
		SessionID:             m.SessionID,
	}

	if m.SessionID != "" {
		if cacheErr := s.cache.SetRecommendations(ctx, resp); cacheErr != nil {
			slog.Warn("[service] cache set error", "session_id", m.SessionID, "error", cacheErr)
		}
	}
	return resp, nil
}

// GetSession returns the latest normalized record of a session and its
// stored landmark sets.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	m, found, err := s.cache.GetMeasurement(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}
	if !found {
		return nil, domain.ErrSessionNotFound
	}

	landmarks, err := s.repo.ListLandmarkSets(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch landmark sets: %w", err)
	}
	if landmarks == nil {
		landmarks = []domain.StoredLandmarkSet{}
	}

	return &domain.SessionRecord{
		SessionID:   sessionID,
		Measurement: m,
		Landmarks:   landmarks,
	}, nil
}

// GetLandmarkSet resolves a landmark id from a normalized record.
func (s *Service) GetLandmarkSet(ctx context.Context, id string) (*domain.StoredLandmarkSet, error) {
	return s.repo.GetLandmarkSet(ctx, id)
}

// ReviewFlags returns the latest flags and the total number stored.
func (s *Service) ReviewFlags(ctx context.Context) ([]domain.ReviewFlag, int, error) {
	flags, err := s.repo.ListReviewFlags(ctx, reviewFlagLimit)
	if err != nil {
		return nil, 0, err
	}
	if flags == nil {
		flags = []domain.ReviewFlag{}
	}

	total, err := s.repo.CountReviewFlags(ctx)
	if err != nil {
		return nil, 0, err
	}
	return flags, total, nil
}

// Health pings each backing store; a nil entry means healthy.
func (s *Service) Health(ctx context.Context) map[string]error {
	return map[string]error{
		"postgres": s.repo.Ping(ctx),
		"redis":    s.cache.Ping(ctx),
	}
}

// Handle response error
func CategorizeError(err error) *domain.ErrorEnvelope {
	if env, ok := domain.AsEnvelope(err); ok {
		return env
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.TimeoutError, "request_timeout", "Request timed out, please try again")
	}
	return domain.NewError(domain.ServerError, normalize.CodeInternal, "An unexpected error occurred")
}
