// Package engine composes the pricing stages into a full quote calculation.
// Stages never call each other; the engine threads their results through
// the leg pipeline and records every step on an audit builder it owns.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/atoll-quote/internal/audit"
	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Defaults applied by New when an option is left at its zero value.
const (
	DefaultMaxLegs            = 10
	DefaultMaxStayNights      = 60
	DefaultLongStayNights     = 21
	DefaultValidityDays       = 14
	DefaultMaxValidityDays    = 90
	DefaultLowMarginThreshold = 5
)

var (
	minExchangeRate = decimal.New(1, -4)
	maxExchangeRate = decimal.New(1, 4)
)

var tracer = otel.Tracer("github.com/noah-isme/atoll-quote/internal/engine")

// Options tune an Engine. Zero values fall back to the package defaults.
type Options struct {
	Now    func() time.Time
	NewID  func() string
	Logger *zerolog.Logger

	MaxLegs         int
	MaxStayNights   int
	LongStayNights  int
	ValidityDays    int
	MaxValidityDays int
	// LowMarginThreshold is a percentage of total sell. Nil selects
	// DefaultLowMarginThreshold; zero turns the LOW_MARGIN warning off.
	LowMarginThreshold *decimal.Decimal
}

// Engine runs quote calculations. It holds no per-calculation state and is
// safe for concurrent use.
type Engine struct {
	opts      Options
	log       zerolog.Logger
	lowMargin decimal.Decimal
}

// New builds an Engine.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.MaxLegs <= 0 {
		opts.MaxLegs = DefaultMaxLegs
	}
	if opts.MaxStayNights <= 0 {
		opts.MaxStayNights = DefaultMaxStayNights
	}
	if opts.LongStayNights <= 0 {
		opts.LongStayNights = DefaultLongStayNights
	}
	if opts.ValidityDays <= 0 {
		opts.ValidityDays = DefaultValidityDays
	}
	if opts.MaxValidityDays <= 0 {
		opts.MaxValidityDays = DefaultMaxValidityDays
	}
	lowMargin := decimal.NewFromInt(DefaultLowMarginThreshold)
	if opts.LowMarginThreshold != nil {
		lowMargin = *opts.LowMarginThreshold
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Engine{opts: opts, log: log, lowMargin: lowMargin}
}

// Calculate prices the quote against data. Problems with the input come back
// as blocking items in a Result with Success false; the returned error is a
// *validation.CalcError and signals an engine or configuration defect.
func (e *Engine) Calculate(ctx context.Context, in QuoteInput, data DataAccess) (Result, error) {
	_, span := tracer.Start(ctx, "engine.Calculate")
	defer span.End()

	res, err := e.calculate(in, data)
	span.SetAttributes(
		attribute.String("calculation.id", res.CalculationID),
		attribute.Bool("calculation.success", res.Success),
		attribute.Int("calculation.legs", len(in.Legs)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return res, err
}

func (e *Engine) calculate(in QuoteInput, data DataAccess) (Result, error) {
	now := e.opts.Now().UTC()
	calcID := e.opts.NewID()
	if data == nil {
		return Result{CalculationID: calcID, CalculatedAt: now},
			validation.NewCalcError(validation.CodeCalcInitFailed, "reference data unavailable", nil)
	}
	c := &calculation{
		engine: e,
		data:   data,
		input:  in,
		now:    now,
		today:  calendar.DateOf(now),
		trail:  audit.NewBuilder(calcID, e.opts.Now),
		log:    e.log.With().Str("calculation_id", calcID).Logger(),
	}
	res := Result{CalculationID: calcID, CalculatedAt: now}

	if err := c.validateInput(); err != nil {
		return c.fail(res), err
	}
	res.ExchangeRate = c.exchangeRate()
	if validation.HasBlocking(c.items) {
		return c.fail(res), nil
	}

	for i := range in.Legs {
		leg, ok, err := c.priceLeg(i)
		if err != nil {
			return c.fail(res), asCalcError(err)
		}
		if ok {
			res.Legs = append(res.Legs, leg)
		}
	}
	if validation.HasBlocking(c.items) {
		return c.fail(res), nil
	}

	transfers, err := c.priceTransfers(res.Legs)
	if err != nil {
		return c.fail(res), asCalcError(err)
	}
	if validation.HasBlocking(c.items) {
		return c.fail(res), nil
	}
	res.InterResortTransfers = transfers

	if err := c.aggregate(&res); err != nil {
		return c.fail(res), asCalcError(err)
	}

	c.trail.Warn(c.items...)
	trail, err := c.trail.Build()
	if err != nil {
		return c.fail(res), validation.NewCalcError(validation.CodeCalcInitFailed, "audit trail unavailable", err)
	}
	if err := audit.EnsureTotals(trail, res.Totals.TotalSell); err != nil {
		return c.fail(res), err
	}
	res.Success = true
	res.Audit = trail
	res.Warnings = c.items
	return res, nil
}

// asCalcError passes a *validation.CalcError through and maps pricing
// failures to their calculation error code.
func asCalcError(err error) error {
	var calcErr *validation.CalcError
	if errors.As(err, &calcErr) {
		return err
	}
	switch {
	case errors.Is(err, pricing.ErrDivisionByZero):
		return validation.NewCalcError(validation.CodeCalcDivisionByZero, "division by zero", err)
	case errors.Is(err, pricing.ErrNonFinite):
		return validation.NewCalcError(validation.CodeCalcNonFiniteResult, "non-finite result", err)
	default:
		return validation.NewCalcError(validation.CodeCalcArithmeticOverflow, "arithmetic overflow", err)
	}
}

// calculation is the state of one Calculate call. It is owned by a single
// goroutine and discarded afterwards.
type calculation struct {
	engine   *Engine
	data     DataAccess
	input    QuoteInput
	now      time.Time
	today    calendar.Date
	currency refdata.Currency
	trail    *audit.Builder
	items    []validation.Item
	log      zerolog.Logger
}

func (c *calculation) add(items ...validation.Item) {
	c.items = append(c.items, items...)
}

func (c *calculation) addForLeg(index int, items ...validation.Item) {
	c.items = append(c.items, validation.AttachLeg(items, index)...)
}

// fail strips every priced figure, keeping the identifiers and the items.
func (c *calculation) fail(res Result) Result {
	return Result{
		Success:       false,
		CalculationID: res.CalculationID,
		CalculatedAt:  res.CalculatedAt,
		Warnings:      c.items,
	}
}

func (c *calculation) exchangeRate() ExchangeRate {
	return ExchangeRate{
		CurrencyCode:  c.currency.Code,
		RateToBase:    c.currency.ExchangeRateToBase,
		DecimalPlaces: c.currency.DecimalPlaces,
		CapturedAt:    c.now,
	}
}
