package quote

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atoll-quote/internal/engine"
	"github.com/noah-isme/atoll-quote/internal/pricing"
)

func TestRoundTotalsKeepsSellBalanced(t *testing.T) {
	totals := engine.Totals{
		TotalCost:        pricing.MustMoney("100.005"),
		TotalMarkup:      pricing.MustMoney("10.005"),
		TotalSell:        pricing.MustMoney("110.01"),
		TaxTotal:         pricing.MustMoney("12.345"),
		DiscountTotal:    pricing.MustMoney("0"),
		MarkupPercentage: decimal.RequireFromString("10.0049"),
		MarginPercentage: decimal.RequireFromString("9.0946"),
	}

	got := roundTotals(totals, 2)
	require.Equal(t, "100.01", got.TotalCost.StringFixed(2))
	require.Equal(t, "10.01", got.TotalMarkup.StringFixed(2))
	sum, err := got.TotalCost.Add(got.TotalMarkup)
	require.NoError(t, err)
	if !got.TotalSell.Equal(sum) {
		t.Fatalf("sell %s does not equal cost %s + markup %s", got.TotalSell, got.TotalCost, got.TotalMarkup)
	}
	require.Equal(t, "110.02", got.TotalSell.StringFixed(2))
	require.Equal(t, "12.35", got.TaxTotal.StringFixed(2))
	require.True(t, got.MarkupPercentage.Equal(decimal.NewFromInt(10)))
}
