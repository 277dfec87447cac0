package pricing

// Breakdown is the three-layer unit used wherever money is tracked:
// cost owed to the supplier, consultant markup, and the client-facing sell
// price. Sell always equals Cost + Markup.
type Breakdown struct {
	Cost   Money `json:"cost_amount"`
	Markup Money `json:"markup_amount"`
	Sell   Money `json:"sell_amount"`
}

// NewBreakdown derives Sell from cost and markup.
func NewBreakdown(cost, markup Money) (Breakdown, error) {
	sell, err := cost.Add(markup)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{Cost: cost, Markup: markup, Sell: sell}, nil
}

// CostOnly returns a breakdown with no markup.
func CostOnly(cost Money) Breakdown {
	return Breakdown{Cost: cost, Sell: cost}
}

// WithMarkup replaces the markup layer and re-derives Sell.
func (b Breakdown) WithMarkup(markup Money) (Breakdown, error) {
	return NewBreakdown(b.Cost, markup)
}

// Add sums two breakdowns layer by layer.
func (b Breakdown) Add(o Breakdown) (Breakdown, error) {
	cost, err := b.Cost.Add(o.Cost)
	if err != nil {
		return Breakdown{}, err
	}
	markup, err := b.Markup.Add(o.Markup)
	if err != nil {
		return Breakdown{}, err
	}
	return NewBreakdown(cost, markup)
}

// Sub subtracts o layer by layer.
func (b Breakdown) Sub(o Breakdown) (Breakdown, error) {
	cost, err := b.Cost.Sub(o.Cost)
	if err != nil {
		return Breakdown{}, err
	}
	markup, err := b.Markup.Sub(o.Markup)
	if err != nil {
		return Breakdown{}, err
	}
	return NewBreakdown(cost, markup)
}

// Balanced reports whether Sell equals Cost + Markup within one cent.
func (b Breakdown) Balanced() bool {
	return b.Cost.Decimal().Add(b.Markup.Decimal()).Sub(b.Sell.Decimal()).Abs().LessThanOrEqual(cent)
}

// IsNegative reports whether any layer is below zero.
func (b Breakdown) IsNegative() bool {
	return b.Cost.IsNegative() || b.Markup.IsNegative() || b.Sell.IsNegative()
}

// Round rounds every layer to places decimals, re-deriving Sell from the rounded layers.
func (b Breakdown) Round(places int32) Breakdown {
	cost := b.Cost.Round(places)
	markup := b.Markup.Round(places)
	return Breakdown{Cost: cost, Markup: markup, Sell: Money{d: cost.d.Add(markup.d)}}
}

// SumBreakdowns adds all breakdowns.
func SumBreakdowns(items ...Breakdown) (Breakdown, error) {
	total := Breakdown{}
	for _, item := range items {
		next, err := total.Add(item)
		if err != nil {
			return Breakdown{}, err
		}
		total = next
	}
	return total, nil
}
