package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atoll-quote/internal/audit"
	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/markup"
	"github.com/noah-isme/atoll-quote/internal/occupancy"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/refdata/refdatatest"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

var fixedNow = time.Date(2026, 12, 1, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return New(Options{
		Now:   func() time.Time { return fixedNow },
		NewID: func() string { return "calc-test" },
	})
}

func money(s string) pricing.Money { return pricing.MustMoney(s) }

func date(s string) calendar.Date { return calendar.MustParseDate(s) }

func age(n int) *int { return &n }

func azureLeg() LegInput {
	return LegInput{
		ResortID:       "res-azure",
		RoomTypeID:     "rt-azure-water-villa",
		CheckIn:        date("2027-03-10"),
		CheckOut:       date("2027-03-14"),
		Adults:         2,
		MealPlanID:     "mp-azure-hb",
		TransferTypeID: "tt-azure-seaplane",
	}
}

func coralLeg() LegInput {
	return LegInput{
		ResortID:       "res-coral",
		RoomTypeID:     "rt-coral-garden",
		CheckIn:        date("2027-03-14"),
		CheckOut:       date("2027-03-17"),
		Adults:         2,
		TransferTypeID: "tt-coral-speedboat",
	}
}

func quote(legs ...LegInput) QuoteInput {
	return QuoteInput{
		ClientName:   "Ada Example",
		ClientEmail:  "ada@example.com",
		CurrencyCode: "USD",
		ValidityDays: 14,
		Legs:         legs,
	}
}

func calculate(t *testing.T, in QuoteInput) Result {
	t.Helper()
	res, err := newTestEngine().Calculate(context.Background(), in, refdatatest.Store(t))
	require.NoError(t, err)
	return res
}

func codes(items []validation.Item) []validation.Code {
	out := make([]validation.Code, 0, len(items))
	for _, it := range items {
		out = append(out, it.Code)
	}
	return out
}

func findItem(items []validation.Item, code validation.Code) (validation.Item, bool) {
	for _, it := range items {
		if it.Code == code {
			return it, true
		}
	}
	return validation.Item{}, false
}

func requireMoney(t *testing.T, want string, got pricing.Money) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s", want, got)
}

func TestCalculateSingleLeg(t *testing.T) {
	res := calculate(t, quote(azureLeg()))
	require.True(t, res.Success, "items: %v", codes(res.Warnings))
	require.Empty(t, res.Blocking())
	require.Len(t, res.Legs, 1)

	leg := res.Legs[0]
	require.Equal(t, 4, leg.Nights)
	requireMoney(t, "2600", leg.Subtotals.Room)
	requireMoney(t, "2060", leg.Subtotals.Components)
	requireMoney(t, "4660", leg.Subtotals.PreTax)
	requireMoney(t, "4660", leg.Subtotals.PostDiscount)
	requireMoney(t, "1334.16", leg.Subtotals.Tax)
	requireMoney(t, "932", leg.LineItemMarkupTotal)

	require.Len(t, leg.Taxes, 3)
	requireMoney(t, "466", leg.Taxes[0].Pricing.Cost)
	requireMoney(t, "820.16", leg.Taxes[1].Pricing.Cost)
	requireMoney(t, "48", leg.Taxes[2].Pricing.Cost)
	for _, line := range leg.Taxes {
		require.True(t, line.Pricing.Markup.IsZero(), "tax %s marked up", line.TaxType)
	}
	for _, n := range leg.NightlyRates {
		requireMoney(t, "130", n.Pricing.Markup)
	}

	requireMoney(t, "5994.16", res.Totals.TotalCost)
	requireMoney(t, "932", res.Totals.TotalMarkup)
	requireMoney(t, "6926.16", res.Totals.TotalSell)
	requireMoney(t, "1334.16", res.Totals.TaxTotal)
	require.Equal(t, "15.55", res.Totals.MarkupPercentage.StringFixed(2))
	require.Equal(t, "13.46", res.Totals.MarginPercentage.StringFixed(2))

	require.Equal(t, "USD", res.ExchangeRate.CurrencyCode)
	require.True(t, res.ExchangeRate.RateToBase.Equal(decimal.NewFromInt(1)))
	require.Equal(t, date("2026-12-15"), res.ValidUntil)
	require.Equal(t, "calc-test", res.CalculationID)
}

func TestCalculateBreakdownsBalance(t *testing.T) {
	in := quote(azureLeg(), coralLeg())
	in.InterResortTransfers = []TransferInput{{FromLegIndex: 0, ToLegIndex: 1, TransferTypeID: "tt-inter-domestic"}}
	res := calculate(t, in)
	require.True(t, res.Success)

	for _, leg := range res.Legs {
		require.True(t, leg.Totals.Balanced())
		for _, n := range leg.NightlyRates {
			require.True(t, n.Pricing.Balanced())
		}
		for _, c := range leg.Components {
			require.True(t, c.Pricing.Balanced())
		}
		for _, tx := range leg.Taxes {
			require.True(t, tx.Pricing.Balanced())
		}
	}
	for _, tr := range res.InterResortTransfers {
		require.True(t, tr.Pricing.Balanced())
	}
	sell, err := res.Totals.TotalCost.Add(res.Totals.TotalMarkup)
	require.NoError(t, err)
	require.True(t, sell.Equal(res.Totals.TotalSell))
}

func TestCalculateChildExtraAndGreenTax(t *testing.T) {
	leg := azureLeg()
	leg.Children = []occupancy.ChildInput{{Age: age(8)}}
	res := calculate(t, quote(leg))
	require.True(t, res.Success, "items: %v", codes(res.Warnings))

	got := res.Legs[0]
	requireMoney(t, "300", got.Subtotals.ExtraPerson)
	require.Len(t, got.ExtraPersonCharges, 1)
	require.Equal(t, "epc-awv-child", got.ExtraPersonCharges[0].ChargeID)

	green := got.Taxes[2]
	require.Equal(t, refdata.TaxGreen, green.TaxType)
	require.Equal(t, 3, green.GuestCount)
	requireMoney(t, "72", green.Pricing.Cost)
	require.True(t, green.Pricing.Markup.IsZero())
}

func TestCalculateRoomOnlyDiscount(t *testing.T) {
	leg := LegInput{
		ResortID:      "res-azure",
		RoomTypeID:    "rt-azure-water-villa",
		CheckIn:       date("2027-06-15"),
		CheckOut:      date("2027-06-22"),
		Adults:        2,
		DiscountCodes: []string{"stay7"},
	}
	res := calculate(t, quote(leg))
	require.True(t, res.Success, "items: %v", codes(res.Warnings))
	_, ok := findItem(res.Warnings, validation.CodeNoMealPlanSelected)
	require.True(t, ok)

	got := res.Legs[0]
	requireMoney(t, "3150", got.Subtotals.Room)
	require.Len(t, got.Discounts, 1)
	d := got.Discounts[0]
	requireMoney(t, "315", d.Reduction.Cost)
	requireMoney(t, "63", d.Reduction.Markup)
	requireMoney(t, "378", d.Reduction.Sell)
	requireMoney(t, "2835", got.Subtotals.PostDiscount)
	requireMoney(t, "866.46", got.Subtotals.Tax)

	requireMoney(t, "630", got.LineItemMarkupTotal)
	requireMoney(t, "3701.46", got.Totals.Cost)
	requireMoney(t, "567", got.Totals.Markup)
	requireMoney(t, "4268.46", got.Totals.Sell)
	requireMoney(t, "315", res.Totals.DiscountTotal)

	step, ok := res.Audit.Find(audit.StepDiscountApplication)
	require.True(t, ok)
	require.Equal(t, "STAY7", step.Inputs["code"])
}

func TestCalculateSeasonBoundary(t *testing.T) {
	leg := azureLeg()
	leg.CheckIn, leg.CheckOut = date("2027-04-28"), date("2027-05-03")
	res := calculate(t, quote(leg))
	require.True(t, res.Success)
	requireMoney(t, "2850", res.Legs[0].Subtotals.Room)

	item, ok := findItem(res.Warnings, validation.CodeSeasonBoundaryCrossing)
	require.True(t, ok)
	require.NotNil(t, item.LegIndex)
	require.Equal(t, 0, *item.LegIndex)
}

func TestCalculateMarkupOverride(t *testing.T) {
	in := quote(azureLeg())
	in.MarkupOverride = &markup.Override{Type: refdata.MarkupFixed, Amount: money("500")}
	res := calculate(t, in)
	require.True(t, res.Success)

	for _, leg := range res.Legs {
		require.True(t, leg.LineItemMarkupTotal.IsZero())
		require.True(t, leg.Totals.Markup.IsZero())
	}
	requireMoney(t, "5994.16", res.Totals.TotalCost)
	requireMoney(t, "500", res.Totals.TotalMarkup)
	requireMoney(t, "6494.16", res.Totals.TotalSell)
	require.NotNil(t, res.MarkupOverride)
	_, ok := findItem(res.Warnings, validation.CodeQuoteLevelMarkupApplied)
	require.True(t, ok)
	_, ok = res.Audit.Find(audit.StepQuoteMarkupOverride)
	require.True(t, ok)
}

func TestCalculatePercentageOverrideRejected(t *testing.T) {
	in := quote(azureLeg())
	in.MarkupOverride = &markup.Override{Type: refdata.MarkupPercentage, Amount: money("10")}
	res := calculate(t, in)
	require.False(t, res.Success)
	require.Contains(t, codes(res.Blocking()), validation.CodePercentageOverrideNotSupported)
	require.Nil(t, res.Legs)
	require.True(t, res.Totals.TotalSell.IsZero())
	require.Empty(t, res.Audit.Steps)
}

func TestCalculateMultiLegWithTransfer(t *testing.T) {
	in := quote(azureLeg(), coralLeg())
	in.InterResortTransfers = []TransferInput{{FromLegIndex: 0, ToLegIndex: 1, TransferTypeID: "tt-inter-domestic"}}
	res := calculate(t, in)
	require.True(t, res.Success, "items: %v", codes(res.Warnings))
	require.Len(t, res.Legs, 2)
	_, missing := findItem(res.Warnings, validation.CodeInterResortTransferMissing)
	require.False(t, missing)

	coral := res.Legs[1]
	requireMoney(t, "1200", coral.Subtotals.Room)
	requireMoney(t, "256.8", coral.Subtotals.Tax)
	requireMoney(t, "1636.8", coral.Totals.Cost)
	requireMoney(t, "160.08", coral.Totals.Markup)
	require.Equal(t, "mk-coral", coral.MarkupConfigID)

	require.Len(t, res.InterResortTransfers, 1)
	tr := res.InterResortTransfers[0]
	require.Equal(t, 0, tr.FromLegIndex)
	require.Equal(t, 1, tr.ToLegIndex)
	requireMoney(t, "640", tr.Pricing.Cost)
	requireMoney(t, "128", tr.Pricing.Markup)

	requireMoney(t, "8270.96", res.Totals.TotalCost)
	requireMoney(t, "1220.08", res.Totals.TotalMarkup)
	requireMoney(t, "9491.04", res.Totals.TotalSell)

	require.Len(t, res.Taxes, 3)
	require.Equal(t, refdata.TaxGST, res.Taxes[1].TaxType)
	requireMoney(t, "1040.96", res.Taxes[1].Pricing.Cost)
}

func TestCalculateMissingInterResortTransferWarns(t *testing.T) {
	res := calculate(t, quote(azureLeg(), coralLeg()))
	require.True(t, res.Success)
	item, ok := findItem(res.Warnings, validation.CodeInterResortTransferMissing)
	require.True(t, ok)
	require.Equal(t, 1, *item.LegIndex)
}

func TestCalculateSequenceChecks(t *testing.T) {
	t.Run("overlap blocks", func(t *testing.T) {
		second := coralLeg()
		second.CheckIn = date("2027-03-13")
		res := calculate(t, quote(azureLeg(), second))
		require.False(t, res.Success)
		item, ok := findItem(res.Warnings, validation.CodeLegDatesOverlap)
		require.True(t, ok)
		require.True(t, item.IsBlocking())
		require.Equal(t, 1, *item.LegIndex)
	})
	t.Run("gap warns", func(t *testing.T) {
		second := coralLeg()
		second.CheckIn, second.CheckOut = date("2027-03-16"), date("2027-03-18")
		res := calculate(t, quote(azureLeg(), second))
		require.True(t, res.Success)
		item, ok := findItem(res.Warnings, validation.CodeLegDateGap)
		require.True(t, ok)
		require.Equal(t, "2", item.Context["gap_days"])
	})
	t.Run("same resort warns", func(t *testing.T) {
		second := azureLeg()
		second.CheckIn, second.CheckOut = date("2027-03-14"), date("2027-03-16")
		res := calculate(t, quote(azureLeg(), second))
		require.True(t, res.Success)
		require.Contains(t, codes(res.Warnings), validation.CodeSameResortConsecutiveLegs)
		require.NotContains(t, codes(res.Warnings), validation.CodeInterResortTransferMissing)
	})
}

func TestCalculateTransferInputValidation(t *testing.T) {
	tests := []struct {
		name     string
		transfer TransferInput
		want     validation.Code
	}{
		{"same leg", TransferInput{FromLegIndex: 0, ToLegIndex: 0, TransferTypeID: "tt-inter-domestic"}, validation.CodeInvalidTransferLegIndex},
		{"out of range", TransferInput{FromLegIndex: 0, ToLegIndex: 2, TransferTypeID: "tt-inter-domestic"}, validation.CodeInvalidTransferLegIndex},
		{"negative", TransferInput{FromLegIndex: -1, ToLegIndex: 1, TransferTypeID: "tt-inter-domestic"}, validation.CodeInvalidTransferLegIndex},
		{"unknown type", TransferInput{FromLegIndex: 0, ToLegIndex: 1, TransferTypeID: "tt-nope"}, validation.CodeInterResortTransferTypeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := quote(azureLeg(), coralLeg())
			in.InterResortTransfers = []TransferInput{tc.transfer}
			res := calculate(t, in)
			require.False(t, res.Success)
			require.Contains(t, codes(res.Blocking()), tc.want)
		})
	}
}

func TestCalculateInputValidation(t *testing.T) {
	longLeg := azureLeg()
	longLeg.CheckOut = longLeg.CheckIn.AddDays(61)
	reversed := azureLeg()
	reversed.CheckIn, reversed.CheckOut = reversed.CheckOut, reversed.CheckIn
	undated := azureLeg()
	undated.CheckOut = calendar.Date{}
	closed := LegInput{ResortID: "res-closed", RoomTypeID: "rt-closed-hut", CheckIn: date("2027-03-10"), CheckOut: date("2027-03-12"), Adults: 2}
	wrongRoom := azureLeg()
	wrongRoom.RoomTypeID = "rt-coral-garden"

	tooMany := make([]LegInput, DefaultMaxLegs+1)
	for i := range tooMany {
		tooMany[i] = azureLeg()
	}

	tests := []struct {
		name string
		in   QuoteInput
		want validation.Code
	}{
		{"no legs", quote(), validation.CodeNoLegs},
		{"too many legs", quote(tooMany...), validation.CodeTooManyLegs},
		{"missing dates", quote(undated), validation.CodeMissingDates},
		{"reversed dates", quote(reversed), validation.CodeInvalidDateRange},
		{"stay too long", quote(longLeg), validation.CodeStayTooLong},
		{"inactive resort", quote(closed), validation.CodeResortInactive},
		{"room of another resort", quote(wrongRoom), validation.CodeRoomTypeResortMismatch},
		{"unknown currency", func() QuoteInput { q := quote(azureLeg()); q.CurrencyCode = "XYZ"; return q }(), validation.CodeCurrencyNotFound},
		{"currency mismatch", func() QuoteInput { q := quote(azureLeg()); q.CurrencyCode = "EUR"; return q }(), validation.CodeCurrencyMismatch},
		{"validity days", func() QuoteInput { q := quote(azureLeg()); q.ValidityDays = 400; return q }(), validation.CodeInvalidValidityDays},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := calculate(t, tc.in)
			require.False(t, res.Success)
			require.Contains(t, codes(res.Blocking()), tc.want)
			require.True(t, res.Totals.TotalSell.IsZero())
		})
	}
}

func TestCalculateReportsEveryLegProblem(t *testing.T) {
	first := azureLeg()
	first.MealPlanID = "mp-missing"
	second := coralLeg()
	second.TransferTypeID = ""
	in := quote(first, second)
	in.InterResortTransfers = []TransferInput{{FromLegIndex: 0, ToLegIndex: 1, TransferTypeID: "tt-inter-seaplane"}}

	res := calculate(t, in)
	require.False(t, res.Success)
	blocking := res.Blocking()
	require.Contains(t, codes(blocking), validation.CodeMealPlanNotFound)
	require.Contains(t, codes(blocking), validation.CodeTransferRequiredMissing)
}

func TestCalculateWarnings(t *testing.T) {
	leg := coralLeg()
	leg.CheckIn, leg.CheckOut = date("2026-12-10"), date("2026-12-12")
	res := calculate(t, quote(leg))
	require.True(t, res.Success, "items: %v", codes(res.Warnings))
	require.Contains(t, codes(res.Warnings), validation.CodeQuoteValidityExceedsCheckIn)
	require.Contains(t, codes(res.Warnings), validation.CodeDefaultSeasonFallback)
	requireMoney(t, "600", res.Legs[0].Subtotals.Room)

	past := coralLeg()
	past.CheckIn, past.CheckOut = date("2026-11-20"), date("2026-11-22")
	res = calculate(t, quote(past))
	require.True(t, res.Success)
	require.Contains(t, codes(res.Warnings), validation.CodeCheckInDatePassed)
}

func TestCalculateZeroMarkupWarns(t *testing.T) {
	in := quote(azureLeg())
	in.MarkupOverride = &markup.Override{Type: refdata.MarkupFixed, Amount: pricing.Zero}
	res := calculate(t, in)
	require.True(t, res.Success)
	require.Contains(t, codes(res.Warnings), validation.CodeZeroMarkup)
}

func TestCalculateLowMarginThreshold(t *testing.T) {
	in := quote(azureLeg())
	in.MarkupOverride = &markup.Override{Type: refdata.MarkupFixed, Amount: money("100")}

	res := calculate(t, in)
	require.True(t, res.Success)
	item, ok := findItem(res.Warnings, validation.CodeLowMargin)
	require.True(t, ok, "default threshold should flag a 1.64%% margin")
	require.Equal(t, "1.64", item.Context["margin_percentage"])

	off := decimal.Zero
	res, err := New(Options{
		Now:                func() time.Time { return fixedNow },
		NewID:              func() string { return "calc-test" },
		LowMarginThreshold: &off,
	}).Calculate(context.Background(), in, refdatatest.Store(t))
	require.NoError(t, err)
	require.True(t, res.Success)
	if _, ok := findItem(res.Warnings, validation.CodeLowMargin); ok {
		t.Fatalf("zero threshold must disable LOW_MARGIN, got %v", codes(res.Warnings))
	}
}

func TestCalculateAuditTrail(t *testing.T) {
	res := calculate(t, quote(azureLeg()))
	require.True(t, res.Success)

	steps := res.Audit.Steps
	require.NotEmpty(t, steps)
	require.Equal(t, audit.StepInputValidation, steps[0].Type)
	require.Equal(t, audit.StepQuoteAggregation, steps[len(steps)-1].Type)
	for i, s := range steps {
		require.Equal(t, i+1, s.Number)
		require.Equal(t, fixedNow, s.Timestamp)
	}
	require.Equal(t, "calc-test", res.Audit.CalculationID)

	v := audit.VerifyTotals(res.Audit, res.Totals.TotalSell)
	require.True(t, v.Valid, v.Reason)

	tax, ok := res.Audit.Find(audit.StepTaxCalculation)
	require.True(t, ok)
	require.Equal(t, "GREEN_TAX", tax.Inputs["tax_type"])
	require.Equal(t, 0, *tax.LegIndex)
}

func TestCalculateDeterministic(t *testing.T) {
	in := quote(azureLeg(), coralLeg())
	in.InterResortTransfers = []TransferInput{{FromLegIndex: 0, ToLegIndex: 1, TransferTypeID: "tt-inter-seaplane"}}
	store := refdatatest.Store(t)
	e := newTestEngine()

	first, err := e.Calculate(context.Background(), in, store)
	require.NoError(t, err)
	second, err := e.Calculate(context.Background(), in, store)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

type brokenRateData struct {
	*refdata.Store
}

func (brokenRateData) Currency(code string) (refdata.Currency, bool) {
	return refdata.Currency{Code: code, DecimalPlaces: 2}, true
}

func TestCalculateErrors(t *testing.T) {
	e := newTestEngine()

	_, err := e.Calculate(context.Background(), quote(azureLeg()), nil)
	code, ok := validation.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, validation.CodeCalcInitFailed, code)
	require.True(t, validation.IsRetryable(err))

	res, err := e.Calculate(context.Background(), quote(azureLeg()), brokenRateData{refdatatest.Store(t)})
	code, ok = validation.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, validation.CodeCalcFXLockFailed, code)
	require.True(t, validation.IsRetryable(err))
	require.False(t, res.Success)
}

func TestAsCalcErrorMapsArithmetic(t *testing.T) {
	_, err := money("1").Div(decimal.Zero)
	code, ok := validation.CodeOf(asCalcError(err))
	require.True(t, ok)
	require.Equal(t, validation.CodeCalcDivisionByZero, code)

	_, err = money("900000000000").Add(money("900000000000"))
	mapped := asCalcError(err)
	code, _ = validation.CodeOf(mapped)
	require.Equal(t, validation.CodeCalcArithmeticOverflow, code)
	require.False(t, validation.IsRetryable(mapped))

	passthrough := validation.NewCalcError(validation.CodeCalcNegativeFinalAmount, "negative", nil)
	require.Same(t, passthrough, asCalcError(passthrough))
}
