package salesagg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowMatches(t *testing.T) {
	march := newSale(1, StatusConfirmed, 2024, 3, "1", nil)
	pending := newSale(2, StatusPending, 2024, 3, "1", nil)
	undated := Sale{ID: 3, Status: StatusInvoiced, CreatedAt: "31/02/2024"}

	assert.True(t, Overall().Matches(march))
	assert.False(t, Overall().Matches(pending))
	assert.True(t, Overall().Matches(undated), "overall ignores the period")

	assert.True(t, YearWindow(2024).Matches(march))
	assert.False(t, YearWindow(2023).Matches(march))
	assert.False(t, YearWindow(2024).Matches(undated))

	assert.True(t, MonthWindow(2024, 3).Matches(march))
	assert.False(t, MonthWindow(2024, 4).Matches(march))
	assert.False(t, Window{View: "weekly"}.Matches(march))
}

func TestResolvePeriodPrefersExplicitFields(t *testing.T) {
	s := Sale{Year: intp(2022), Month: intp(11), CreatedAt: "2024-01-05T00:00:00Z"}
	p := ResolvePeriod(s)
	assert.Equal(t, Period{Year: 2022, Month: 11, YearOK: true, MonthOK: true}, p)

	partial := Sale{Month: intp(6), CreatedAt: "2024-01-05T00:00:00Z"}
	p = ResolvePeriod(partial)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, 6, p.Month)
}

func TestResolvePeriodFallsBackToDate(t *testing.T) {
	p := ResolvePeriod(Sale{Date: "2023-07-01 09:30:00"})
	assert.True(t, p.YearOK && p.MonthOK)
	assert.Equal(t, 2023, p.Year)
	assert.Equal(t, 7, p.Month)

	p = ResolvePeriod(Sale{CreatedAt: "yesterday", Date: "2023-07-01"})
	assert.False(t, p.YearOK, "an unparseable createdAt is not replaced")
}

func TestStatusActiveIsCaseInsensitive(t *testing.T) {
	assert.True(t, SaleStatus("invoiced").Active())
	assert.True(t, SaleStatus(" CONFIRMED ").Active())
	assert.False(t, StatusCancelled.Active())
	assert.False(t, SaleStatus("").Active())
}
