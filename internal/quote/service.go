package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/atoll-quote/internal/cache"
	"github.com/noah-isme/atoll-quote/internal/common"
	"github.com/noah-isme/atoll-quote/internal/engine"
	"github.com/noah-isme/atoll-quote/internal/lock"
	"github.com/noah-isme/atoll-quote/internal/obs"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

var tracer = otel.Tracer("github.com/noah-isme/atoll-quote/internal/quote")

// Catalog is the reference data a calculation runs against.
type Catalog interface {
	engine.DataAccess
	Checksum() string
}

// Locker serialises work on one key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Calculator runs one quote calculation.
type Calculator interface {
	Calculate(ctx context.Context, in engine.QuoteInput, data engine.DataAccess) (engine.Result, error)
}

// Service prices quotes and persists their versions.
type Service struct {
	Engine  Calculator
	Store   Store
	Data    Catalog
	Cache   *cache.Cache
	Locker  Locker
	LockTTL time.Duration
	Log     zerolog.Logger
	Now     func() time.Time
	NewID   func() string
}

// Preview calculates req without persisting anything. Failed calculations are
// returned as a Result with Success false; only engine defects are errors.
func (s *Service) Preview(ctx context.Context, req CalculateRequest) (engine.Result, error) {
	if err := s.ready(); err != nil {
		return engine.Result{}, err
	}
	if err := req.Validate(); err != nil {
		return engine.Result{}, err
	}
	in, err := req.ToInput()
	if err != nil {
		return engine.Result{}, err
	}

	key := s.previewKey(in)
	var cached engine.Result
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("preview cache read failed")
	} else if hit {
		obs.ObserveCache("hit")
		return cached, nil
	} else if s.Cache.Enabled() {
		obs.ObserveCache("miss")
	}

	res, err := s.calculate(ctx, "preview", in)
	if err != nil {
		return engine.Result{}, err
	}
	if res.Success {
		if err := s.Cache.SetJSON(ctx, key, res); err != nil {
			s.Log.Warn().Err(err).Str("key", key).Msg("preview cache write failed")
		}
	}
	return res, nil
}

// CreateVersion calculates req and stores the outcome as the next version of
// quoteID. A calculation with blocking items stores nothing.
func (s *Service) CreateVersion(ctx context.Context, quoteID, consultantID string, req CalculateRequest) (Version, error) {
	if err := s.ready(); err != nil {
		return Version{}, err
	}
	if err := validQuoteID(quoteID); err != nil {
		return Version{}, err
	}
	if err := req.Validate(); err != nil {
		return Version{}, err
	}
	return s.persist(ctx, quoteID, consultantID, TriggerAPI, req)
}

// Recalculate re-runs the request of the latest version of quoteID against
// the current reference data and stores the outcome as a new version.
func (s *Service) Recalculate(ctx context.Context, quoteID string) (Version, error) {
	if err := s.ready(); err != nil {
		return Version{}, err
	}
	if err := validQuoteID(quoteID); err != nil {
		return Version{}, err
	}
	latest, err := s.Store.Latest(ctx, quoteID)
	if err != nil {
		return Version{}, mapStoreError(err, validation.CodeQuoteNotFound)
	}
	return s.persist(ctx, quoteID, latest.ConsultantID, TriggerRecalculate, latest.Request)
}

// ListVersions pages through the versions of quoteID, newest first.
func (s *Service) ListVersions(ctx context.Context, quoteID string, limit, offset int) ([]Summary, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	if err := validQuoteID(quoteID); err != nil {
		return nil, 0, err
	}
	versions, total, err := s.Store.List(ctx, quoteID, limit, offset)
	if err != nil {
		return nil, 0, mapStoreError(err, validation.CodeQuoteNotFound)
	}
	if total == 0 {
		return nil, 0, mapStoreError(ErrNotFound, validation.CodeQuoteNotFound)
	}
	out := make([]Summary, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Summary())
	}
	return out, total, nil
}

// GetVersion returns one stored version.
func (s *Service) GetVersion(ctx context.Context, quoteID string, number int) (Version, error) {
	if err := s.ready(); err != nil {
		return Version{}, err
	}
	if err := validQuoteID(quoteID); err != nil {
		return Version{}, err
	}
	if number < 1 {
		return Version{}, common.NewAppError("BAD_REQUEST", "invalid version number", http.StatusBadRequest, nil)
	}
	v, err := s.Store.Get(ctx, quoteID, number)
	if err != nil {
		return Version{}, mapStoreError(err, validation.CodeQuoteVersionNotFound)
	}
	return v, nil
}

func (s *Service) persist(ctx context.Context, quoteID, consultantID, trigger string, req CalculateRequest) (Version, error) {
	ctx, span := tracer.Start(ctx, "quote.CreateVersion")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID), attribute.String("quote.trigger", trigger))

	in, err := req.ToInput()
	if err != nil {
		return Version{}, err
	}

	var created Version
	err = s.Locker.WithLock(ctx, lock.QuoteKey(quoteID), s.LockTTL, func(ctx context.Context) error {
		next := 1
		latest, err := s.Store.Latest(ctx, quoteID)
		switch {
		case err == nil:
			next = latest.Number + 1
		case !errors.Is(err, ErrNotFound):
			return err
		}

		res, err := s.calculate(ctx, "version", in)
		if err != nil {
			return err
		}
		if !res.Success {
			return common.NewAppError("CALCULATION_FAILED", "quote has blocking validation errors", http.StatusUnprocessableEntity, nil).
				WithDetails(map[string]any{
					"calculation_id": res.CalculationID,
					"errors":         validation.BlockingOnly(res.Warnings),
				})
		}

		v, err := buildVersion(res, in, assembly{
			QuoteID:         quoteID,
			Number:          next,
			ConsultantID:    consultantID,
			Trigger:         trigger,
			RefdataChecksum: s.Data.Checksum(),
			Request:         req,
			Now:             s.now(),
			NewID:           s.newID,
		})
		if err != nil {
			return err
		}
		if err := s.Store.Create(ctx, v); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Version{}, mapPersistError(err)
	}

	obs.ObserveVersion(trigger)
	s.Log.Info().
		Str("quote_id", quoteID).
		Int("version", created.Number).
		Str("calculation_id", created.CalculationID).
		Str("trigger", trigger).
		Str("total_sell", created.Totals.TotalSell.String()).
		Msg("quote_version_created")
	return created, nil
}

// calculate runs the engine and records the outcome. A CalcError is mapped to
// an AppError carrying its code.
func (s *Service) calculate(ctx context.Context, operation string, in engine.QuoteInput) (engine.Result, error) {
	start := time.Now()
	res, err := s.Engine.Calculate(ctx, in, s.Data)
	elapsed := time.Since(start)

	evt := s.Log.Info()
	result := "success"
	switch {
	case err != nil:
		result = "error"
		evt = s.Log.Error().Err(err)
	case !res.Success:
		result = "blocked"
	}
	obs.ObserveCalculation(operation, result, elapsed)
	obs.ObserveWarnings(warningCodes(res.Warnings))
	evt.
		Str("operation", operation).
		Str("calculation_id", res.CalculationID).
		Bool("success", res.Success).
		Int("legs", len(in.Legs)).
		Int("warnings", len(res.Warnings)).
		Dur("duration", elapsed).
		Msg("quote_calculated")

	if err != nil {
		return res, calcAppError(err)
	}
	return res, nil
}

func (s *Service) previewKey(in engine.QuoteInput) string {
	payload, err := json.Marshal(in)
	if err != nil {
		return ""
	}
	return cache.KeyPreview(s.Data.Checksum(), common.Sha256HexBytes(payload))
}

func (s *Service) ready() error {
	if s == nil || s.Engine == nil || s.Store == nil || s.Data == nil || s.Locker == nil {
		return errors.New("quote service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func validQuoteID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.NewAppError("BAD_REQUEST", "invalid quote id", http.StatusBadRequest, err)
	}
	return nil
}

func warningCodes(items []validation.Item) []string {
	codes := make([]string, 0, len(items))
	for _, it := range items {
		if !it.IsBlocking() {
			codes = append(codes, string(it.Code))
		}
	}
	return codes
}

func calcAppError(err error) error {
	code, ok := validation.CodeOf(err)
	if !ok {
		return err
	}
	status := http.StatusInternalServerError
	if validation.IsRetryable(err) {
		status = http.StatusServiceUnavailable
	}
	return common.NewAppError(string(code), "quote calculation failed", status, err)
}

func mapStoreError(err error, code validation.Code) error {
	if errors.Is(err, ErrNotFound) {
		msg := "quote not found"
		if code == validation.CodeQuoteVersionNotFound {
			msg = "quote version not found"
		}
		return common.NewAppError(string(code), msg, http.StatusNotFound, err)
	}
	return err
}

func mapPersistError(err error) error {
	switch {
	case common.IsAppError(err):
		return err
	case errors.Is(err, lock.ErrNotAcquired):
		return common.NewAppError(string(validation.CodeQuoteLocked), "quote is being updated", http.StatusConflict, err)
	case errors.Is(err, ErrVersionConflict):
		return common.NewAppError(string(validation.CodeQuoteLocked), "quote version was created concurrently", http.StatusConflict, err)
	default:
		return fmt.Errorf("create quote version: %w", err)
	}
}
