// Package jobs runs quote recalculations in the background on asynq.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/atoll-quote/internal/common"
	"github.com/noah-isme/atoll-quote/internal/obs"
	"github.com/noah-isme/atoll-quote/internal/quote"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// TypeRecalculate is the asynq task type of a quote recalculation.
const TypeRecalculate = "quote:recalculate"

// RecalculatePayload is the task body.
type RecalculatePayload struct {
	QuoteID string `json:"quote_id"`
}

// NewRecalculateTask builds the task for quoteID.
func NewRecalculateTask(quoteID string) (*asynq.Task, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return nil, errors.New("jobs: quote id is required")
	}
	payload, err := json.Marshal(RecalculatePayload{QuoteID: quoteID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecalculate, payload), nil
}

// TaskEnqueuer is the part of *asynq.Client used by Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client publishes recalculation tasks. Requests for the same quote within
// DedupTTL collapse into one task.
type Client struct {
	Q           TaskEnqueuer
	Queue       string
	MaxAttempts int
	DedupTTL    time.Duration
	Timeout     time.Duration
}

// EnqueueRecalculate queues a recalculation and returns the task id. When a
// recalculation of the quote was queued within DedupTTL it returns an empty
// id and no error.
func (c Client) EnqueueRecalculate(ctx context.Context, quoteID string) (string, error) {
	if c.Q == nil {
		return "", errors.New("jobs: client not configured")
	}
	task, err := NewRecalculateTask(quoteID)
	if err != nil {
		return "", err
	}
	info, err := c.Q.EnqueueContext(ctx, task, c.options()...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return "", nil
		}
		return "", fmt.Errorf("enqueue recalculation: %w", err)
	}
	return info.ID, nil
}

func (c Client) options() []asynq.Option {
	queue := c.Queue
	if queue == "" {
		queue = "default"
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	opts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(attempts),
		asynq.Timeout(timeout),
	}
	if c.DedupTTL > 0 {
		opts = append(opts, asynq.Unique(c.DedupTTL))
	}
	return opts
}

// Recalculator re-prices a stored quote.
type Recalculator interface {
	Recalculate(ctx context.Context, quoteID string) (quote.Version, error)
}

// Handler processes recalculation tasks.
type Handler struct {
	Svc    Recalculator
	Logger *zerolog.Logger
}

// ProcessTask implements asynq.Handler. Failures that cannot succeed on retry
// are wrapped with asynq.SkipRetry.
func (h Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if h.Svc == nil {
		return errors.New("jobs: recalculator not configured")
	}
	var p RecalculatePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || strings.TrimSpace(p.QuoteID) == "" {
		obs.ObserveJob("invalid")
		return fmt.Errorf("jobs: invalid %s payload: %w", t.Type(), asynq.SkipRetry)
	}

	log := h.logger().With().Str("task", t.Type()).Str("quote_id", p.QuoteID).Logger()
	v, err := h.Svc.Recalculate(ctx, p.QuoteID)
	if err != nil {
		if retryable(err) {
			obs.ObserveJob("retry")
			log.Warn().Err(err).Msg("recalculation failed, will retry")
			return err
		}
		obs.ObserveJob("failed")
		log.Error().Err(err).Msg("recalculation failed")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	obs.ObserveJob("success")
	log.Info().Int("version", v.Number).Str("calculation_id", v.CalculationID).Msg("quote recalculated")
	return nil
}

func (h Handler) logger() *zerolog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// retryable reports whether a recalculation error may clear up on its own:
// retryable calculation codes, lock contention and infrastructure errors.
func retryable(err error) bool {
	if validation.IsRetryable(err) {
		return true
	}
	if _, ok := validation.CodeOf(err); ok {
		return false
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == string(validation.CodeQuoteLocked) {
			return true
		}
		return appErr.HTTPStatus >= http.StatusInternalServerError
	}
	return true
}

// NewMux routes recalculation tasks to h.
func NewMux(h Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeRecalculate, h)
	return mux
}
