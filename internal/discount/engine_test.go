package discount

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/refdata/refdatatest"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

type stubCatalog struct {
	discounts []refdata.Discount
}

func (s stubCatalog) DiscountsByCode(code string) []refdata.Discount {
	var out []refdata.Discount
	for _, d := range s.discounts {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func intPtr(n int) *int { return &n }

func money(s string) pricing.Money { return pricing.MustMoney(s) }

func pct(code, value string, stackable ...string) refdata.Discount {
	return refdata.Discount{
		ID:            "disc-" + code,
		Code:          code,
		Name:          code,
		DiscountType:  refdata.DiscountPercentage,
		BaseType:      refdata.BaseRoomOnly,
		Value:         decimal.RequireFromString(value),
		StackableWith: stackable,
		IsActive:      true,
	}
}

func stay(nights int) Stay {
	in := calendar.MustParseDate("2027-06-15")
	return Stay{ResortID: "res-azure", CheckIn: in, CheckOut: in.AddDays(nights), Nights: nights}
}

func TestComputePercent(t *testing.T) {
	reduction, clamped, err := Compute(money("3150"), pct("STAY7", "10"))
	require.NoError(t, err)
	require.False(t, clamped)
	require.True(t, reduction.Equal(money("315")))
}

func TestComputeFixedClampedToBase(t *testing.T) {
	d := pct("CREDIT", "500")
	d.DiscountType = refdata.DiscountFixedAmount
	reduction, clamped, err := Compute(money("320"), d)
	require.NoError(t, err)
	require.True(t, clamped)
	require.True(t, reduction.Equal(money("320")))
}

func TestStackedDiscountsDoNotCompound(t *testing.T) {
	cat := stubCatalog{discounts: []refdata.Discount{pct("D1", "10", "D2"), pct("D2", "5", "D1")}}
	res, items, err := Apply(cat, []string{"D1", "D2"}, stay(3), Base{Room: money("1000")})
	require.NoError(t, err)
	require.Empty(t, items)
	require.Len(t, res.Applied, 2)
	require.True(t, res.Applied[0].BaseAmount.Equal(money("1000")))
	require.True(t, res.Applied[1].BaseAmount.Equal(money("1000")))
	require.True(t, res.TotalCost.Equal(money("150")), res.TotalCost.String())
}

func TestStackingRequiresMutualDeclaration(t *testing.T) {
	cat := stubCatalog{discounts: []refdata.Discount{pct("D1", "10", "D2"), pct("D2", "5")}}
	res, items, err := Apply(cat, []string{"D1", "D2"}, stay(3), Base{Room: money("1000")})
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	require.Len(t, items, 1)
	require.Equal(t, validation.CodeDiscountAutoRemoved, items[0].Code)
	require.Equal(t, "NOT_STACKABLE", items[0].Context["reason"])
	require.True(t, res.TotalCost.Equal(money("100")))
}

func TestValidateEligibility(t *testing.T) {
	d := pct("X", "10")
	d.MinNights = intPtr(7)
	require.ErrorIs(t, Validate(d, stay(6)), ErrMinimumNightsUnmet)
	require.NoError(t, Validate(d, stay(7)))

	d = pct("X", "10")
	d.MaxNights = intPtr(3)
	require.ErrorIs(t, Validate(d, stay(4)), ErrMaximumNightsExceeded)

	d = pct("X", "10")
	d.MinDaysBeforeArrival = intPtr(60)
	require.ErrorIs(t, Validate(d, stay(3)), ErrBookingDateRequired)
	s := stay(3)
	s.BookingDate = s.CheckIn.AddDays(-30)
	require.ErrorIs(t, Validate(d, s), ErrBookingWindow)
	s.BookingDate = s.CheckIn.AddDays(-90)
	require.NoError(t, Validate(d, s))

	d = pct("X", "10")
	d.BlackoutSeasonIDs = []string{"sea-azure-festive"}
	s = stay(3)
	s.SeasonIDs = []string{"sea-azure-low", "sea-azure-festive"}
	require.ErrorIs(t, Validate(d, s), ErrBlackoutSeason)

	d = pct("X", "10")
	d.ValidTo = calendar.MustParseDate("2027-06-14")
	require.ErrorIs(t, Validate(d, stay(3)), ErrOutsideValidity)

	d = pct("X", "10")
	d.ResortID = "res-coral"
	require.ErrorIs(t, Validate(d, stay(3)), ErrWrongResort)

	d = pct("X", "10")
	d.IsActive = false
	require.ErrorIs(t, Validate(d, stay(3)), ErrInactive)
}

func TestInvalidConfigIsBlocking(t *testing.T) {
	cat := stubCatalog{discounts: []refdata.Discount{pct("BROKEN", "150")}}
	res, items, err := Apply(cat, []string{"broken"}, stay(3), Base{Room: money("1000")})
	require.NoError(t, err)
	require.Empty(t, res.Applied)
	require.Len(t, items, 1)
	require.True(t, items[0].IsBlocking())
	require.Equal(t, validation.CodeDiscountConfigInvalid, items[0].Code)
	require.True(t, errors.Is(CheckConfig(pct("NEG", "-1")), ErrInvalidConfig))
}

func TestPreTaxBaseExcludesFestiveUnlessOptedIn(t *testing.T) {
	base := Base{Room: money("1000"), ExtraPerson: money("100"), Components: money("400"), Festive: money("700")}

	d := pct("PT", "10")
	d.BaseType = refdata.BasePreTaxTotal
	amount, err := base.For(d)
	require.NoError(t, err)
	require.True(t, amount.Equal(money("1500")))

	d.IncludeFestiveSupplements = true
	amount, err = base.For(d)
	require.NoError(t, err)
	require.True(t, amount.Equal(money("2200")))
}

func TestCombinedReductionClampedToSubtotal(t *testing.T) {
	a := pct("A", "500", "B")
	a.DiscountType = refdata.DiscountFixedAmount
	b := pct("B", "400", "A")
	b.DiscountType = refdata.DiscountFixedAmount
	res, items, err := Apply(stubCatalog{discounts: []refdata.Discount{a, b}}, []string{"A", "B"}, stay(2), Base{Room: money("600")})
	require.NoError(t, err)
	require.True(t, res.TotalCost.Equal(money("600")))
	require.True(t, res.Applied[1].Reduction.Cost.Equal(money("100")))
	require.Equal(t, validation.CodeDiscountExceedsBase, items[len(items)-1].Code)
}

func TestApplyMarkupProportional(t *testing.T) {
	cat := stubCatalog{discounts: []refdata.Discount{pct("D1", "10")}}
	res, _, err := Apply(cat, []string{"D1"}, stay(3), Base{Room: money("1000")})
	require.NoError(t, err)

	total, err := res.ApplyMarkup(Base{Room: money("200")})
	require.NoError(t, err)
	require.True(t, total.Equal(money("20")))
	require.True(t, res.Applied[0].Reduction.Sell.Equal(money("120")))
	require.True(t, res.Applied[0].Reduction.Balanced())
}

func TestApplyAgainstFixture(t *testing.T) {
	store := refdatatest.Store(t)
	s := stay(7)
	s.SeasonIDs = []string{"sea-azure-low"}
	res, items, err := Apply(store, []string{"STAY7", "PAUSED", "OLD2025", "DIVE100", "NOPE", "stay7"}, s, Base{Room: money("3150")})
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	require.True(t, res.TotalCost.Equal(money("315")))

	reasons := map[string]string{}
	for _, it := range items {
		reasons[it.Context["code"]] = it.Context["reason"]
	}
	require.Equal(t, "INACTIVE", reasons["PAUSED"])
	require.Equal(t, "OUTSIDE_VALIDITY", reasons["OLD2025"])
	require.Equal(t, "WRONG_RESORT", reasons["DIVE100"])
	require.Equal(t, "UNKNOWN_CODE", reasons["NOPE"])
	require.Equal(t, "", reasons["STAY7"], "duplicate warning carries no reason")
}
