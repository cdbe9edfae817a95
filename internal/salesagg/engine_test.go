package salesagg

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(productID int64, qty int64, amount string) SaleItem {
	return SaleItem{
		Product:  &ProductRef{ID: productID, Name: "Product " + formatID(productID)},
		Quantity: qty,
		Amount:   dec(amount),
	}
}

func variantItem(productID, variationID int64, label string, qty int64, amount string) SaleItem {
	it := item(productID, qty, amount)
	it.Variation = &VariationRef{ID: variationID, Label: label}
	return it
}

type saleOpt func(*Sale)

func atBranch(id int64, name string) saleOpt {
	return func(s *Sale) { s.Branch = &BranchRef{ID: id, Name: name, Code: "BR" + formatID(id)} }
}

func atCompany(id int64, name string) saleOpt {
	return func(s *Sale) { s.Company = &CompanyRef{ID: id, Name: name} }
}

func newSale(id int64, status SaleStatus, year, month int, total string, items []SaleItem, opts ...saleOpt) Sale {
	s := Sale{
		ID:          id,
		Status:      status,
		TotalAmount: dec(total),
		Year:        intp(year),
		Month:       intp(month),
		Items:       items,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func TestMonthlySeriesExcludesInactiveSales(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 3, "500", []SaleItem{item(1, 2, "500")}),
		newSale(2, StatusPending, 2024, 3, "999", []SaleItem{item(1, 9, "999")}),
	}
	series := NewEngine(nil).MonthlySeries(sales, 2024, FilterAll, FilterAll)

	require.Len(t, series, 12)
	march := series[2]
	assert.Equal(t, 3, march.Month)
	assert.Equal(t, "Mar", march.Label)
	assert.True(t, march.Revenue.Equal(dec("500")), "revenue %s", march.Revenue)
	assert.Equal(t, 1, march.Count)
	for i, b := range series {
		if i == 2 {
			continue
		}
		assert.True(t, b.Revenue.IsZero())
		assert.Zero(t, b.Count)
	}
}

func TestMonthlySeriesFiltersCompanyAndBranch(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "100", nil, atCompany(1, "Acme"), atBranch(10, "North")),
		newSale(2, StatusInvoiced, 2024, 1, "200", nil, atCompany(1, "Acme"), atBranch(11, "South")),
		newSale(3, StatusInvoiced, 2024, 2, "300", nil, atCompany(2, "Globex"), atBranch(20, "East")),
		newSale(4, StatusInvoiced, 2023, 2, "400", nil, atCompany(1, "Acme"), atBranch(10, "North")),
	}
	engine := NewEngine(nil)

	acme := engine.MonthlySeries(sales, 2024, "Acme", "")
	assert.True(t, acme[0].Revenue.Equal(dec("300")))
	assert.Equal(t, 2, acme[0].Count)
	assert.True(t, acme[1].Revenue.IsZero())

	north := engine.MonthlySeries(sales, 2024, "Acme", "North")
	assert.True(t, north[0].Revenue.Equal(dec("100")))
	assert.Equal(t, 1, north[0].Count)
}

func TestMonthlySeriesDiscardsOutOfRangeMonth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 13, "100", nil),
		newSale(2, StatusConfirmed, 2024, 0, "100", nil),
		newSale(3, StatusConfirmed, 2024, 12, "50", nil),
	}
	series := NewEngine(logger).MonthlySeries(sales, 2024, "", "")

	total := decimal.Zero
	for _, b := range series {
		total = total.Add(b.Revenue)
	}
	assert.True(t, total.Equal(dec("50")))
	assert.Equal(t, 1, series[11].Count)
	assert.Contains(t, buf.String(), "out of range")
}

func TestMonthlySeriesParsesTimestampsWhenPeriodMissing(t *testing.T) {
	sales := []Sale{
		{ID: 1, Status: StatusConfirmed, TotalAmount: dec("10"), CreatedAt: "2024-05-03T10:00:00Z"},
		{ID: 2, Status: StatusConfirmed, TotalAmount: dec("20"), Date: "2024-05-20"},
		{ID: 3, Status: StatusConfirmed, TotalAmount: dec("40"), CreatedAt: "not a date"},
	}
	series := NewEngine(nil).MonthlySeries(sales, 2024, "", "")
	assert.True(t, series[4].Revenue.Equal(dec("30")))
	assert.Equal(t, 2, series[4].Count)
}

func TestTopProductsRanksByQuantity(t *testing.T) {
	catalog := NewCatalog([]Product{{ID: 3, Name: "Tea", Category: "Drinks"}})
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "1000", []SaleItem{
			item(1, 1, "900"),
			item(2, 5, "50"),
			item(3, 3, "50"),
		}),
		newSale(2, StatusInvoiced, 2024, 1, "100", []SaleItem{
			variantItem(2, 7, "Large", 4, "100"),
		}),
	}
	rows := NewEngine(nil).TopProducts(sales, catalog, Query{Window: YearWindow(2024)})

	require.Len(t, rows, 4)
	assert.Equal(t, BaseKey(2), rows[0].Key)
	assert.Equal(t, VariationKey(2, 7), rows[1].Key)
	assert.Equal(t, "Product 2 (Large)", rows[1].DisplayName)
	assert.Equal(t, BaseKey(3), rows[2].Key)
	assert.Equal(t, "Drinks", rows[2].Category)
	assert.Equal(t, BaseKey(1), rows[3].Key, "highest revenue ranks last by quantity")
	assert.Equal(t, Uncategorized, rows[3].Category)
}

func TestTopProductsStableOnTies(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "30", []SaleItem{
			item(5, 2, "10"),
			item(4, 2, "10"),
			item(6, 2, "10"),
		}),
	}
	rows := NewEngine(nil).TopProducts(sales, nil, Query{})
	require.Len(t, rows, 3)
	assert.Equal(t, []ProductKey{BaseKey(5), BaseKey(4), BaseKey(6)}, []ProductKey{rows[0].Key, rows[1].Key, rows[2].Key})
}

func TestTopProductsCategoryFilter(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "30", []SaleItem{
			{Product: &ProductRef{ID: 1, Name: "Coffee", Category: "Drinks"}, Quantity: 1, Amount: dec("10")},
			{Product: &ProductRef{ID: 2, Name: "Bread", Category: "Bakery"}, Quantity: 5, Amount: dec("20")},
		}),
	}
	rows := NewEngine(nil).TopProducts(sales, nil, Query{Category: "Drinks"})
	require.Len(t, rows, 1)
	assert.Equal(t, "Coffee", rows[0].DisplayName)
}

func TestTopProductsCountsTransactionsPerSale(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "50", []SaleItem{item(7, 3, "30"), item(7, 2, "20")}),
		newSale(2, StatusConfirmed, 2024, 1, "10", []SaleItem{item(7, 1, "10")}),
	}
	rows := NewEngine(nil).TopProducts(sales, nil, Query{})
	require.Len(t, rows, 1)
	assert.Equal(t, int64(6), rows[0].Quantity)
	assert.Equal(t, 2, rows[0].TransactionCount)
}

func TestTopProductsHandlesMissingProduct(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "5", []SaleItem{{Quantity: 1, Amount: dec("5")}}),
	}
	rows := NewEngine(nil).TopProducts(sales, nil, Query{})
	require.Len(t, rows, 1)
	assert.Equal(t, UnknownProduct, rows[0].DisplayName)
	assert.Equal(t, Uncategorized, rows[0].Category)
}

func TestTopBranchesScopedToProductSumsMatchingLines(t *testing.T) {
	key := BaseKey(7)
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "1000", []SaleItem{item(7, 2, "100"), item(8, 1, "900")}, atBranch(1, "North")),
		newSale(2, StatusConfirmed, 2024, 1, "5000", []SaleItem{item(8, 1, "5000")}, atBranch(2, "South")),
		newSale(3, StatusConfirmed, 2024, 1, "300", []SaleItem{item(7, 1, "150"), item(7, 1, "150")}, atBranch(1, "North")),
	}
	rows := NewEngine(nil).TopBranches(sales, Query{Product: &key})

	require.Len(t, rows, 1, "branches without the product are excluded")
	north := rows[0]
	assert.Equal(t, "North", north.Name)
	assert.True(t, north.Revenue.Equal(dec("400")), "revenue %s", north.Revenue)
	assert.Equal(t, int64(4), north.Quantity)
	assert.Equal(t, 2, north.SalesCount)
	assert.True(t, north.AverageOrderValue.Equal(dec("200")))
}

func TestTopBranchesWithoutProductUsesSaleTotals(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "1000", []SaleItem{item(7, 2, "100")}, atBranch(1, "North")),
		newSale(2, StatusConfirmed, 2024, 1, "5000", []SaleItem{item(8, 1, "5000")}, atBranch(2, "South")),
		newSale(3, StatusCancelled, 2024, 1, "9000", []SaleItem{item(8, 1, "9000")}, atBranch(1, "North")),
		newSale(4, StatusConfirmed, 2024, 1, "10", nil),
	}
	rows := NewEngine(nil).TopBranches(sales, Query{})

	require.Len(t, rows, 3)
	assert.Equal(t, "South", rows[0].Name)
	assert.True(t, rows[1].Revenue.Equal(dec("1000")))
	assert.Equal(t, int64(2), rows[1].Quantity)
	assert.Equal(t, UnknownBranch, rows[2].Name)
}

func TestTopCompaniesRanksByRevenue(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "100", nil, atCompany(1, "Acme")),
		newSale(2, StatusConfirmed, 2024, 1, "300", nil, atCompany(2, "Globex")),
		newSale(3, StatusInvoiced, 2024, 2, "50", nil, atCompany(1, "Acme")),
		newSale(4, StatusInvoiced, 2023, 2, "5000", nil, atCompany(1, "Acme")),
	}
	rows := NewEngine(nil).TopCompanies(sales, Query{Window: YearWindow(2024)})

	require.Len(t, rows, 2)
	assert.Equal(t, "Globex", rows[0].Name)
	assert.Equal(t, "Acme", rows[1].Name)
	assert.Equal(t, 2, rows[1].SalesCount)
	assert.True(t, rows[1].AverageOrderValue.Equal(dec("75")))
}

func TestRankingsKeepUnidentifiedRefsApart(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 3, "100", []SaleItem{item(1, 1, "100")}),
		newSale(2, StatusConfirmed, 2024, 3, "300", []SaleItem{item(1, 3, "300")}, atBranch(0, "Kiosk"), atCompany(0, "Walk-in")),
	}
	q := Query{Window: YearWindow(2024)}
	e := NewEngine(nil)

	branches := e.TopBranches(sales, q)
	require.Len(t, branches, 2)
	assert.Equal(t, "Kiosk", branches[0].Name)
	assert.Equal(t, "300", branches[0].Revenue.String())
	assert.Equal(t, UnknownBranch, branches[1].Name)
	assert.Equal(t, "100", branches[1].Revenue.String())

	companies := e.TopCompanies(sales, q)
	require.Len(t, companies, 2)
	assert.Equal(t, "Walk-in", companies[0].Name)
	assert.Equal(t, UnknownCompany, companies[1].Name)
	assert.Equal(t, 1, companies[1].SalesCount)
}

func TestCompanyBranchBreakdown(t *testing.T) {
	key := VariationKey(4, 2)
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 6, "100", []SaleItem{variantItem(4, 2, "Red", 1, "60"), item(4, 1, "40")}, atCompany(1, "Acme"), atBranch(1, "North")),
		newSale(2, StatusConfirmed, 2024, 6, "70", []SaleItem{variantItem(4, 2, "Red", 1, "70")}, atCompany(1, "Acme"), atBranch(2, "South")),
		newSale(3, StatusConfirmed, 2024, 6, "999", []SaleItem{variantItem(4, 2, "Red", 1, "999")}, atCompany(2, "Globex"), atBranch(3, "East")),
	}
	engine := NewEngine(nil)

	all := engine.CompanyBranchBreakdown(sales, "Acme", Query{Window: MonthWindow(2024, 6)})
	require.Len(t, all, 2)
	assert.Equal(t, "North", all[0].Name)

	scoped := engine.CompanyBranchBreakdown(sales, "Acme", Query{Window: MonthWindow(2024, 6), Product: &key})
	require.Len(t, scoped, 2)
	assert.Equal(t, "South", scoped[0].Name)
	assert.True(t, scoped[1].Revenue.Equal(dec("60")))
}

func TestProductStatsCountsDistinctSales(t *testing.T) {
	key := BaseKey(7)
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "100", []SaleItem{item(7, 3, "60"), item(7, 2, "40"), item(9, 1, "1")}),
	}
	stats := NewEngine(nil).ProductStats(sales, Query{Product: &key})

	assert.Equal(t, 1, stats.Transactions)
	assert.Equal(t, int64(5), stats.TotalQuantity)
	assert.True(t, stats.TotalRevenue.Equal(dec("100")))
	assert.True(t, stats.AvgPerUnit.Equal(dec("20")))
}

func TestProductStatsZeroQuantity(t *testing.T) {
	key := BaseKey(7)
	sales := []Sale{newSale(1, StatusConfirmed, 2024, 1, "0", []SaleItem{item(7, 0, "0")})}
	stats := NewEngine(nil).ProductStats(sales, Query{Product: &key})
	assert.Equal(t, 1, stats.Transactions)
	assert.True(t, stats.AvgPerUnit.IsZero())

	empty := NewEngine(nil).ProductStats(sales, Query{})
	assert.Zero(t, empty.Transactions)
}

func TestSummary(t *testing.T) {
	sales := []Sale{
		newSale(1, StatusConfirmed, 2024, 1, "100", []SaleItem{item(1, 2, "100")}),
		newSale(2, StatusInvoiced, 2024, 2, "300", []SaleItem{item(1, 1, "200"), item(2, 1, "100")}),
		newSale(3, StatusPending, 2024, 2, "700", []SaleItem{item(3, 1, "700")}),
	}
	s := NewEngine(nil).Summary(sales, Query{Window: YearWindow(2024)})
	assert.True(t, s.Revenue.Equal(dec("400")))
	assert.Equal(t, 2, s.SalesCount)
	assert.Equal(t, int64(4), s.Quantity)
	assert.Equal(t, 2, s.ProductsSold)
	assert.True(t, s.AverageOrderValue.Equal(dec("200")))

	none := NewEngine(nil).Summary(nil, Query{})
	assert.True(t, none.AverageOrderValue.IsZero())
}
