package season

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atoll-quote/internal/refdata/refdatatest"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

func TestCheckRestrictionsBlackout(t *testing.T) {
	store := refdatatest.Store(t)
	items := CheckRestrictions(store, "res-azure", "rt-azure-beach-villa", date("2027-05-28"), date("2027-06-02"), []string{"sea-azure-low"})
	require.Len(t, items, 1)
	require.Equal(t, validation.CodeBlackoutDate, items[0].Code)

	items = CheckRestrictions(store, "res-azure", "rt-azure-water-villa", date("2027-05-28"), date("2027-06-02"), []string{"sea-azure-low"})
	require.Empty(t, items, "blackout is scoped to the beach villa")
}

func TestCheckRestrictionsCheckOutDayIsNotANight(t *testing.T) {
	store := refdatatest.Store(t)
	items := CheckRestrictions(store, "res-azure", "rt-azure-beach-villa", date("2027-05-28"), date("2027-06-01"), []string{"sea-azure-low"})
	require.Empty(t, items)
}

func TestCheckRestrictionsMinimumStay(t *testing.T) {
	store := refdatatest.Store(t)
	items := CheckRestrictions(store, "res-azure", "rt-azure-water-villa", date("2027-12-22"), date("2027-12-25"), []string{"sea-azure-festive"})
	require.Len(t, items, 1)
	require.Equal(t, validation.CodeMinimumStayNotMet, items[0].Code)
	require.Equal(t, "msr-azure-festive", items[0].Context["rule_id"])

	items = CheckRestrictions(store, "res-azure", "rt-azure-water-villa", date("2027-12-22"), date("2027-12-27"), []string{"sea-azure-festive"})
	require.Empty(t, items)
}
