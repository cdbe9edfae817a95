package salesagg

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TopLimit caps every ranking view.
const TopLimit = 10

// FilterAll disables a company, branch or category filter.
const FilterAll = "all"

// Query carries the window plus the optional category and product scoping.
type Query struct {
	Window
	Category string
	Product  *ProductKey
}

// Engine computes aggregate views. Every method is a pure function of its arguments: it reads
// the sales slice and returns freshly allocated results.
type Engine struct {
	logger *slog.Logger
}

// NewEngine constructs an Engine. A nil logger falls back to slog.Default.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// MonthlySeries returns twelve buckets, January through December, summing TotalAmount and
// counting the active sales of year. companyFilter and branchFilter match names; empty or
// "all" disables them.
func (e *Engine) MonthlySeries(sales []Sale, year int, companyFilter, branchFilter string) []MonthlyBucket {
	buckets := make([]MonthlyBucket, 12)
	for i := range buckets {
		buckets[i] = MonthlyBucket{Month: i + 1, Label: time.Month(i + 1).String()[:3], Revenue: decimal.Zero}
	}
	window := YearWindow(year)
	for _, s := range sales {
		if !window.Matches(s) {
			continue
		}
		if !filterMatches(companyFilter, s.CompanyName()) || !filterMatches(branchFilter, s.BranchName()) {
			continue
		}
		p := ResolvePeriod(s)
		if !p.MonthOK || p.Month < 1 || p.Month > 12 {
			e.logger.Warn("salesagg: sale month out of range", slog.Int64("sale_id", s.ID), slog.Int("month", p.Month), slog.Bool("resolved", p.MonthOK))
			continue
		}
		b := &buckets[p.Month-1]
		b.Revenue = b.Revenue.Add(s.TotalAmount)
		b.Count++
	}
	return buckets
}

// TopProducts ranks product keys by quantity sold in the window, descending, keeping input
// order on ties, and returns at most TopLimit rows.
func (e *Engine) TopProducts(sales []Sale, catalog Catalog, q Query) []ProductStat {
	rows := e.productRollup(sales, catalog, q)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Quantity > rows[j].Quantity
	})
	return truncate(rows, TopLimit)
}

func (e *Engine) productRollup(sales []Sale, catalog Catalog, q Query) []ProductStat {
	positions := make(map[ProductKey]int)
	lastSale := make(map[ProductKey]int)
	rows := make([]ProductStat, 0)
	for si, s := range sales {
		if !q.Matches(s) {
			continue
		}
		for _, item := range s.Items {
			category := catalog.CategoryOf(item)
			if !filterMatches(q.Category, category) {
				continue
			}
			key := KeyOf(item)
			pos, ok := positions[key]
			if !ok {
				pos = len(rows)
				positions[key] = pos
				rows = append(rows, ProductStat{
					Key:         key,
					DisplayName: item.DisplayName(),
					Category:    category,
					Revenue:     decimal.Zero,
				})
			}
			row := &rows[pos]
			row.Revenue = row.Revenue.Add(item.Amount)
			row.Quantity += item.Quantity
			if seen, ok := lastSale[key]; !ok || seen != si {
				lastSale[key] = si
				row.TransactionCount++
			}
		}
	}
	return rows
}

// TopBranches ranks branches by revenue in the window and returns at most TopLimit rows. When
// q.Product is set only sales containing that product count, and only the matching lines
// contribute revenue and quantity.
func (e *Engine) TopBranches(sales []Sale, q Query) []BranchStat {
	rows := e.branchRollup(sales, q, nil)
	return truncate(rows, TopLimit)
}

// CompanyBranchBreakdown applies the branch ranking to the sales of one company and returns
// every branch, ordered by revenue.
func (e *Engine) CompanyBranchBreakdown(sales []Sale, companyName string, q Query) []BranchStat {
	return e.branchRollup(sales, q, func(s Sale) bool {
		return s.CompanyName() == companyName
	})
}

// bucketKey identifies a ranking row. Refs without an id are told apart by name.
type bucketKey struct {
	id   int64
	name string
}

func bucketOf(id int64, name string) bucketKey {
	if id != 0 {
		return bucketKey{id: id}
	}
	return bucketKey{name: name}
}

func (e *Engine) branchRollup(sales []Sale, q Query, keep func(Sale) bool) []BranchStat {
	positions := make(map[bucketKey]int)
	rows := make([]BranchStat, 0)
	for _, s := range sales {
		if !q.Matches(s) || (keep != nil && !keep(s)) {
			continue
		}
		c, ok := contributionOf(s, q.Product)
		if !ok {
			continue
		}
		ref := s.branchRef()
		key := bucketOf(ref.ID, ref.Name)
		pos, seen := positions[key]
		if !seen {
			pos = len(rows)
			positions[key] = pos
			rows = append(rows, BranchStat{BranchID: ref.ID, Name: ref.Name, Code: ref.Code, Revenue: decimal.Zero})
		}
		row := &rows[pos]
		row.Revenue = row.Revenue.Add(c.revenue)
		row.Quantity += c.quantity
		row.SalesCount++
	}
	for i := range rows {
		rows[i].AverageOrderValue = ratio(rows[i].Revenue, decimal.NewFromInt(int64(rows[i].SalesCount)))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Revenue.GreaterThan(rows[j].Revenue)
	})
	return rows
}

// TopCompanies ranks companies by revenue in the window with the same product scoping as
// TopBranches.
func (e *Engine) TopCompanies(sales []Sale, q Query) []CompanyStat {
	positions := make(map[bucketKey]int)
	rows := make([]CompanyStat, 0)
	for _, s := range sales {
		if !q.Matches(s) {
			continue
		}
		c, ok := contributionOf(s, q.Product)
		if !ok {
			continue
		}
		id, name := s.companyID(), s.CompanyName()
		key := bucketOf(id, name)
		pos, seen := positions[key]
		if !seen {
			pos = len(rows)
			positions[key] = pos
			rows = append(rows, CompanyStat{CompanyID: id, Name: name, Revenue: decimal.Zero})
		}
		row := &rows[pos]
		row.Revenue = row.Revenue.Add(c.revenue)
		row.SalesCount++
	}
	for i := range rows {
		rows[i].AverageOrderValue = ratio(rows[i].Revenue, decimal.NewFromInt(int64(rows[i].SalesCount)))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Revenue.GreaterThan(rows[j].Revenue)
	})
	return truncate(rows, TopLimit)
}

// ProductStats summarises q.Product over the window. Transactions counts distinct sales, not
// matching lines. A query without a product yields a zero summary.
func (e *Engine) ProductStats(sales []Sale, q Query) ProductSummary {
	summary := ProductSummary{TotalRevenue: decimal.Zero, AvgPerUnit: decimal.Zero}
	if q.Product == nil {
		return summary
	}
	summary.Key = *q.Product
	for _, s := range sales {
		if !q.Matches(s) {
			continue
		}
		c, ok := contributionOf(s, q.Product)
		if !ok {
			continue
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(c.revenue)
		summary.TotalQuantity += c.quantity
		summary.Transactions++
	}
	summary.AvgPerUnit = ratio(summary.TotalRevenue, decimal.NewFromInt(summary.TotalQuantity))
	return summary
}

// Summary computes the headline figures of the window.
func (e *Engine) Summary(sales []Sale, q Query) Summary {
	out := Summary{Revenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	products := make(map[ProductKey]struct{})
	for _, s := range sales {
		if !q.Matches(s) {
			continue
		}
		out.Revenue = out.Revenue.Add(s.TotalAmount)
		out.SalesCount++
		for _, item := range s.Items {
			out.Quantity += item.Quantity
			products[KeyOf(item)] = struct{}{}
		}
	}
	out.ProductsSold = len(products)
	out.AverageOrderValue = ratio(out.Revenue, decimal.NewFromInt(int64(out.SalesCount)))
	return out
}

type contribution struct {
	revenue  decimal.Decimal
	quantity int64
}

// contributionOf returns what a sale adds to a branch or company bucket. Without a product
// scope it is the whole sale; with one, only the matching lines, and false when none match.
func contributionOf(s Sale, product *ProductKey) (contribution, bool) {
	c := contribution{revenue: decimal.Zero}
	if product == nil {
		c.revenue = s.TotalAmount
		for _, item := range s.Items {
			c.quantity += item.Quantity
		}
		return c, true
	}
	matched := false
	for _, item := range s.Items {
		if KeyOf(item) != *product {
			continue
		}
		matched = true
		c.revenue = c.revenue.Add(item.Amount)
		c.quantity += item.Quantity
	}
	return c, matched
}

func filterMatches(filter, value string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" || strings.EqualFold(filter, FilterAll) {
		return true
	}
	return filter == value
}

func truncate[T any](rows []T, limit int) []T {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
