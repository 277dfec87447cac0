// Package markup applies consultant markup to priced lines. Taxes pass
// through unmarked unless the configuration opts them in, and green tax is
// never marked up.
package markup

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Catalog is the reference data the markup engine reads.
type Catalog interface {
	MarkupFor(resortID string) (cfg refdata.MarkupConfiguration, global bool, ok bool)
}

// Override is a quote-level markup replacing every line markup.
type Override struct {
	Type   refdata.MarkupType `json:"type"`
	Amount pricing.Money      `json:"amount"`
}

// CheckOverride validates a quote-level override. Only fixed, non-negative
// overrides are supported.
func CheckOverride(o *Override) []validation.Item {
	if o == nil {
		return nil
	}
	if o.Type == refdata.MarkupPercentage {
		return []validation.Item{validation.NewBlocking(validation.CodePercentageOverrideNotSupported,
			"quote-level markup override must be a fixed amount")}
	}
	if o.Type != refdata.MarkupFixed {
		return []validation.Item{validation.NewBlocking(validation.CodeInvalidMarkupOverride,
			"unknown markup override type %q", o.Type)}
	}
	if o.Amount.IsNegative() {
		return []validation.Item{validation.NewBlocking(validation.CodeInvalidMarkupOverride,
			"quote-level markup override cannot be negative")}
	}
	return nil
}

// Applier prices markup for the lines of one resort.
type Applier struct {
	cfg      refdata.MarkupConfiguration
	override bool
}

// NewApplier resolves the resort's markup configuration, falling back to the
// global one. With an override active every line markup is zero, so a
// missing configuration is not an error.
func NewApplier(cat Catalog, resortID string, override bool) (*Applier, []validation.Item) {
	cfg, global, ok := cat.MarkupFor(resortID)
	if !ok {
		if override {
			return &Applier{override: true}, nil
		}
		return nil, []validation.Item{validation.NewBlocking(validation.CodeMarkupConfigNotFound,
			"no markup configuration for resort %s", resortID).With("resort_id", resortID)}
	}
	var items []validation.Item
	if cfg.Value.IsNegative() || (cfg.MarkupType != refdata.MarkupPercentage && cfg.MarkupType != refdata.MarkupFixed) {
		return nil, []validation.Item{validation.NewBlocking(validation.CodeMarkupConfigInvalid,
			"markup configuration %s is invalid", cfg.ID).With("markup_config_id", cfg.ID)}
	}
	if global {
		items = append(items, validation.NewWarning(validation.CodeGlobalMarkupFallback,
			"resort %s has no markup configuration, global markup used", resortID).With("resort_id", resortID))
	}
	return &Applier{cfg: cfg, override: override}, items
}

// Config returns the configuration in use.
func (a *Applier) Config() refdata.MarkupConfiguration { return a.cfg }

// Line returns the markup for one line of the given kind. kind is a
// ComponentType or, for taxes, the TaxType.
func (a *Applier) Line(kind string, isTax bool, cost pricing.Money) (pricing.Money, error) {
	switch {
	case a.override:
		return pricing.Zero, nil
	case isTax && kind == string(refdata.TaxGreen):
		return pricing.Zero, nil
	case isTax && !a.cfg.AppliesToTaxes:
		return pricing.Zero, nil
	case a.cfg.Excludes(kind):
		return pricing.Zero, nil
	case !cost.IsPositive():
		return pricing.Zero, nil
	}
	if a.cfg.MarkupType == refdata.MarkupFixed {
		return pricing.NewMoney(a.cfg.Value)
	}
	return cost.Mul(a.cfg.Value.Div(decimal.NewFromInt(100)))
}

// Apply returns b with its markup layer set for a line of the given kind.
func (a *Applier) Apply(kind string, isTax bool, b pricing.Breakdown) (pricing.Breakdown, error) {
	m, err := a.Line(kind, isTax, b.Cost)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return b.WithMarkup(m)
}
