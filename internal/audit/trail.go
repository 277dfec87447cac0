// Package audit records the step-by-step trail of a quote calculation and
// verifies totals against it.
package audit

import (
	"errors"
	"time"

	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// StepType classifies one recorded calculation action.
type StepType string

const (
	StepInputValidation     StepType = "INPUT_VALIDATION"
	StepRateResolution      StepType = "RATE_RESOLUTION"
	StepOccupancyResolution StepType = "OCCUPANCY_RESOLUTION"
	StepExtraPersonCharges  StepType = "EXTRA_PERSON_CHARGES"
	StepComponentPricing    StepType = "COMPONENT_PRICING"
	StepDiscountApplication StepType = "DISCOUNT_APPLICATION"
	StepTaxCalculation      StepType = "TAX_CALCULATION"
	StepMarkupApplication   StepType = "MARKUP_APPLICATION"
	StepLegTotal            StepType = "LEG_TOTAL"
	StepInterResortTransfer StepType = "INTER_RESORT_TRANSFER"
	StepQuoteMarkupOverride StepType = "QUOTE_MARKUP_OVERRIDE"
	StepQuoteAggregation    StepType = "QUOTE_AGGREGATION"
)

// ErrAlreadyBuilt is returned when Build is called twice.
var ErrAlreadyBuilt = errors.New("audit: trail already built")

// Step is one immutable entry of the trail. LegID stays empty until the
// calling service assigns leg ids.
type Step struct {
	Number    int               `json:"step_number"`
	Type      StepType          `json:"step_type"`
	LegIndex  *int              `json:"leg_index,omitempty"`
	LegID     string            `json:"leg_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Inputs    map[string]string `json:"inputs"`
	Outputs   map[string]string `json:"outputs"`
	Amount    pricing.Money     `json:"amount"`
}

// Trail is the frozen audit of one calculation.
type Trail struct {
	CalculationID string            `json:"calculation_id"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   time.Time         `json:"completed_at"`
	Steps         []Step            `json:"steps"`
	Warnings      []validation.Item `json:"warnings"`
}

// Builder accumulates steps for a single calculation. It is owned by one
// goroutine and becomes unusable once Build has been called.
type Builder struct {
	calculationID string
	now           func() time.Time
	startedAt     time.Time
	steps         []Step
	warnings      []validation.Item
	built         bool
}

// NewBuilder starts a trail. now supplies every timestamp.
func NewBuilder(calculationID string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{calculationID: calculationID, now: now, startedAt: now().UTC()}
}

// Record appends a step. Maps are copied, so callers may reuse them.
func (b *Builder) Record(t StepType, legIndex *int, inputs, outputs map[string]string, amount pricing.Money) {
	if b.built {
		panic("audit: Record after Build")
	}
	var leg *int
	if legIndex != nil {
		idx := *legIndex
		leg = &idx
	}
	b.steps = append(b.steps, Step{
		Number:    len(b.steps) + 1,
		Type:      t,
		LegIndex:  leg,
		Timestamp: b.now().UTC(),
		Inputs:    cloneMap(inputs),
		Outputs:   cloneMap(outputs),
		Amount:    amount,
	})
}

// Warn attaches non-blocking items to the trail.
func (b *Builder) Warn(items ...validation.Item) {
	if b.built {
		panic("audit: Warn after Build")
	}
	b.warnings = append(b.warnings, items...)
}

// Len returns the number of recorded steps.
func (b *Builder) Len() int { return len(b.steps) }

// Build freezes the trail.
func (b *Builder) Build() (Trail, error) {
	if b.built {
		return Trail{}, ErrAlreadyBuilt
	}
	b.built = true
	steps := make([]Step, len(b.steps))
	copy(steps, b.steps)
	warnings := make([]validation.Item, len(b.warnings))
	copy(warnings, b.warnings)
	return Trail{
		CalculationID: b.calculationID,
		StartedAt:     b.startedAt,
		CompletedAt:   b.now().UTC(),
		Steps:         steps,
		Warnings:      warnings,
	}, nil
}

// Find returns the last step of type t.
func (t Trail) Find(st StepType) (Step, bool) {
	for i := len(t.Steps) - 1; i >= 0; i-- {
		if t.Steps[i].Type == st {
			return t.Steps[i], true
		}
	}
	return Step{}, false
}

// WithLegIDs returns a copy of the trail whose leg-scoped steps carry the id
// assigned to their leg index. Indices without an id are left empty.
func (t Trail) WithLegIDs(ids []string) Trail {
	steps := make([]Step, len(t.Steps))
	for i, st := range t.Steps {
		if st.LegIndex != nil && *st.LegIndex >= 0 && *st.LegIndex < len(ids) {
			st.LegID = ids[*st.LegIndex]
		}
		steps[i] = st
	}
	t.Steps = steps
	return t
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
