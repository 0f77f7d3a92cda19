// Package invoker calls the remote validate and recommend operations with
// bounded retry and a circuit breaker per operation. Every failure comes back
// as a *domain.ErrorEnvelope.
package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

type Config struct {
	BaseURL           string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	APIKey            string        `env:"X_API_KEY" envDefault:"staging-secret-key"`
	Timeout           time.Duration `env:"INVOKER_TIMEOUT" envDefault:"10s"`
	MaxRetries        int           `env:"INVOKER_MAX_RETRIES" envDefault:"1"`
	FailureThreshold  int           `env:"BREAKER_THRESHOLD" envDefault:"3"`
	BackoffUnit       time.Duration `env:"BACKOFF_UNIT" envDefault:"1s"`
	RateLimitCooldown time.Duration `env:"RATE_LIMIT_COOLDOWN" envDefault:"5s"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:8080",
		APIKey:            "staging-secret-key",
		Timeout:           10 * time.Second,
		MaxRetries:        1,
		FailureThreshold:  3,
		BackoffUnit:       time.Second,
		RateLimitCooldown: 5 * time.Second,
	}
}

type Operation struct {
	Name string
	Path string
}

var (
	OpValidate  = Operation{Name: "validate", Path: "/measurements/validate"}
	OpRecommend = Operation{Name: "recommend", Path: "/measurements/recommend"}
)

const (
	CodeCircuitOpen       = "circuit_open"
	CodeRetriesExhausted  = "retries_exhausted"
	CodeRateLimited       = "rate_limited"
	CodeUnexpectedStatus  = "unexpected_status"
	CodeInvalidResponse   = "invalid_response"
	CodeTimeout           = "timeout"
	CodeCancelled         = "cancelled"
	CodeConnectionFailed  = "connection_failed"
	CodeDownstreamInvalid = "downstream_invalid"
)

// Sleeper blocks for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

type Invoker struct {
	cfg      Config
	client   *resty.Client
	breakers *Registry
	sleep    Sleeper
	logger   *slog.Logger
}

type Option func(*Invoker)

// WithRegistry shares breakers between invokers.
func WithRegistry(r *Registry) Option {
	return func(inv *Invoker) { inv.breakers = r }
}

func WithSleeper(s Sleeper) Option {
	return func(inv *Invoker) { inv.sleep = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(inv *Invoker) { inv.logger = l }
}

func New(cfg Config, opts ...Option) *Invoker {
	inv := &Invoker{
		cfg: cfg,
		client: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("X-API-Key", cfg.APIKey).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		sleep:  sleepContext,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.breakers == nil {
		inv.breakers = NewRegistry(cfg.FailureThreshold)
	}
	return inv
}

func (inv *Invoker) Breakers() *Registry {
	return inv.breakers
}

// Validate posts a raw measurement payload to the remote validate operation.
func (inv *Invoker) Validate(ctx context.Context, payload json.RawMessage) (*domain.NormalizedMeasurement, error) {
	var out domain.NormalizedMeasurement
	if err := inv.Call(ctx, OpValidate, []byte(payload), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (inv *Invoker) Recommend(ctx context.Context, m *domain.NormalizedMeasurement) (*domain.RecommendationResponse, error) {
	var out domain.RecommendationResponse
	if err := inv.Call(ctx, OpRecommend, m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Call performs one logical call: at most MaxRetries+1 attempts, and at most
// one breaker update however many attempts were made.
func (inv *Invoker) Call(ctx context.Context, op Operation, body, out any) error {
	breaker := inv.breakers.Breaker(op.Name)
	if !breaker.Allow() {
		inv.logger.Warn("circuit open, skipping call", "op", op.Name)
		return domain.NewError(domain.CircuitBreakerError, CodeCircuitOpen,
			"Circuit breaker is open. Too many recent failures.")
	}

	attempts := inv.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		retriesLeft := attempt < attempts-1

		res, err := inv.client.R().
			SetContext(ctx).
			SetBody(body).
			Post(op.Path)

		if err != nil {
			if ctx.Err() != nil {
				return cancelled(op, ctx.Err())
			}
			if isTimeout(err) {
				if retriesLeft {
					inv.logger.Warn("request timed out, retrying", "op", op.Name, "attempt", attempt+1)
					if err := inv.sleep(ctx, inv.backoff(attempt)); err != nil {
						return cancelled(op, err)
					}
					continue
				}
				breaker.RecordFailure()
				return domain.NewError(domain.TimeoutError, CodeTimeout, "Request timed out",
					domain.ErrorDetail{Message: err.Error()})
			}
			breaker.RecordFailure()
			inv.logger.Error("request failed", "op", op.Name, "error", err)
			return domain.NewError(domain.ConnectionError, CodeConnectionFailed,
				fmt.Sprintf("Request failed: %v", err))
		}

		status := res.StatusCode()
		switch {
		case status == http.StatusOK:
			if out != nil {
				if err := json.Unmarshal(res.Body(), out); err != nil {
					breaker.RecordFailure()
					return domain.NewError(domain.UnexpectedError, CodeInvalidResponse,
						"Response body could not be decoded",
						domain.ErrorDetail{Message: err.Error()}).WithStatus(status)
				}
			}
			breaker.RecordSuccess()
			return nil

		case status == http.StatusUnprocessableEntity:
			// the downstream is healthy, the input is not
			breaker.RecordSuccess()
			return validationDetail(res.Body()).WithStatus(status)

		case isServerError(status):
			if retriesLeft {
				inv.logger.Warn("server error, retrying", "op", op.Name, "attempt", attempt+1, "status", status)
				if err := inv.sleep(ctx, inv.backoff(attempt)); err != nil {
					return cancelled(op, err)
				}
				continue
			}
			breaker.RecordFailure()
			return domain.NewError(domain.ServerError, CodeRetriesExhausted,
				fmt.Sprintf("Server error after %d attempts", attempts)).WithStatus(status)

		case status == http.StatusTooManyRequests:
			if retriesLeft {
				inv.logger.Warn("rate limited, cooling down", "op", op.Name, "attempt", attempt+1)
				if err := inv.sleep(ctx, inv.cfg.RateLimitCooldown); err != nil {
					return cancelled(op, err)
				}
				continue
			}
			return domain.NewError(domain.RateLimitError, CodeRateLimited, "Rate limit exceeded").WithStatus(status)

		default:
			breaker.RecordFailure()
			return domain.NewError(domain.UnexpectedError, CodeUnexpectedStatus,
				fmt.Sprintf("Unexpected status code: %d", status)).WithStatus(status)
		}
	}

	return fmt.Errorf("%w: %s retry loop ended after %d attempts without a result",
		domain.ErrInvariantViolated, op.Name, attempts)
}

func (inv *Invoker) backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * inv.cfg.BackoffUnit
}

func isServerError(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func cancelled(op Operation, err error) error {
	return domain.NewError(domain.TimeoutError, CodeCancelled,
		fmt.Sprintf("%s call cancelled by caller", op.Name),
		domain.ErrorDetail{Message: err.Error()})
}

// validationDetail reads the {"detail": envelope} body of a 422 response.
func validationDetail(body []byte) *domain.ErrorEnvelope {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var env domain.ErrorEnvelope
		if err := json.Unmarshal(payload.Detail, &env); err == nil && env.Type != "" {
			if env.Errors == nil {
				env.Errors = []domain.ErrorDetail{}
			}
			return &env
		}
		return domain.NewError(domain.ValidationError, CodeDownstreamInvalid,
			"Downstream rejected the request",
			domain.ErrorDetail{Message: string(payload.Detail)})
	}
	return domain.NewError(domain.ValidationError, CodeDownstreamInvalid,
		"Downstream rejected the request",
		domain.ErrorDetail{Message: string(body)})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
