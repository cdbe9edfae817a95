package analytics

import (
	"context"
	"errors"
	"strconv"

	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

// ErrProductRequired is returned by views that need a selected product.
var ErrProductRequired = errors.New("analytics: product selection required")

// ViewFilter scopes a ranking or statistics view.
type ViewFilter struct {
	Window   salesagg.Window
	Category string
	Product  *salesagg.ProductKey
}

func (f ViewFilter) query() salesagg.Query {
	return salesagg.Query{Window: f.Window, Category: f.Category, Product: f.Product}
}

func (f ViewFilter) keyParts() []string {
	product := "-"
	if f.Product != nil {
		product = f.Product.String()
	}
	category := f.Category
	if category == "" {
		category = salesagg.FilterAll
	}
	return []string{string(f.Window.View), strconv.Itoa(f.Window.Year), strconv.Itoa(f.Window.Month), category, product}
}

// MonthlyFilter scopes the monthly revenue series.
type MonthlyFilter struct {
	Year    int
	Company string
	Branch  string
}

// Dashboard is the summary card set for a window.
type Dashboard struct {
	Summary    salesagg.Summary `json:"summary"`
	Deliveries map[string]int   `json:"deliveries"`
	OpenAlerts int              `json:"open_alerts"`
	Snapshot   SnapshotInfo     `json:"snapshot"`
}

// Options feeds the dashboard filter selectors.
type Options struct {
	Years      []int                    `json:"years"`
	Categories []string                 `json:"categories"`
	Companies  []string                 `json:"companies"`
	Branches   []string                 `json:"branches"`
	Products   []salesagg.ProductOption `json:"products"`
}

// MonthlySeries returns the twelve monthly revenue buckets of a year.
func (s *Service) MonthlySeries(ctx context.Context, filter MonthlyFilter) ([]salesagg.MonthlyBucket, error) {
	parts := []string{strconv.Itoa(filter.Year), nameToken(filter.Company), nameToken(filter.Branch)}
	return cached(ctx, s, "monthly", parts, func(st *snapshotState) []salesagg.MonthlyBucket {
		sales := st.index.Select(salesagg.YearWindow(filter.Year))
		return s.engine.MonthlySeries(sales, filter.Year, filter.Company, filter.Branch)
	})
}

// TopProducts ranks products by quantity sold.
func (s *Service) TopProducts(ctx context.Context, filter ViewFilter) ([]salesagg.ProductStat, error) {
	return cached(ctx, s, "top_products", filter.keyParts(), func(st *snapshotState) []salesagg.ProductStat {
		return s.engine.TopProducts(st.index.Select(filter.Window), st.catalog, filter.query())
	})
}

// TopBranches ranks branches by revenue.
func (s *Service) TopBranches(ctx context.Context, filter ViewFilter) ([]salesagg.BranchStat, error) {
	return cached(ctx, s, "top_branches", filter.keyParts(), func(st *snapshotState) []salesagg.BranchStat {
		return s.engine.TopBranches(st.index.Select(filter.Window), filter.query())
	})
}

// TopCompanies ranks companies by revenue.
func (s *Service) TopCompanies(ctx context.Context, filter ViewFilter) ([]salesagg.CompanyStat, error) {
	return cached(ctx, s, "top_companies", filter.keyParts(), func(st *snapshotState) []salesagg.CompanyStat {
		return s.engine.TopCompanies(st.index.Select(filter.Window), filter.query())
	})
}

// ProductStats summarises the selected product.
func (s *Service) ProductStats(ctx context.Context, filter ViewFilter) (salesagg.ProductSummary, error) {
	if filter.Product == nil {
		return salesagg.ProductSummary{}, ErrProductRequired
	}
	return cached(ctx, s, "product_stats", filter.keyParts(), func(st *snapshotState) salesagg.ProductSummary {
		return s.engine.ProductStats(st.index.Select(filter.Window), filter.query())
	})
}

// CompanyBranchBreakdown lists every branch of one company ranked by revenue.
func (s *Service) CompanyBranchBreakdown(ctx context.Context, company string, filter ViewFilter) ([]salesagg.BranchStat, error) {
	parts := append([]string{nameToken(company)}, filter.keyParts()...)
	return cached(ctx, s, "company_branches", parts, func(st *snapshotState) []salesagg.BranchStat {
		return s.engine.CompanyBranchBreakdown(st.index.Select(filter.Window), company, filter.query())
	})
}

// Summary returns the headline figures together with delivery and alert counters.
func (s *Service) Summary(ctx context.Context, filter ViewFilter) (Dashboard, error) {
	return cached(ctx, s, "summary", filter.keyParts(), func(st *snapshotState) Dashboard {
		return Dashboard{
			Summary:    s.engine.Summary(st.index.Select(filter.Window), filter.query()),
			Deliveries: salesagg.DeliveryCounts(st.snapshot.Deliveries),
			OpenAlerts: salesagg.OpenAlerts(st.snapshot.Alerts),
			Snapshot:   st.info,
		}
	})
}

// Options lists the selectable years, categories, companies, branches and products.
func (s *Service) Options(ctx context.Context, category string) (Options, error) {
	return cached(ctx, s, "options", []string{nameToken(category)}, func(st *snapshotState) Options {
		sales := st.index.Active()
		return Options{
			Years:      salesagg.Years(sales),
			Categories: salesagg.Categories(sales, st.catalog),
			Companies:  salesagg.CompanyNames(sales, st.snapshot.Companies),
			Branches:   salesagg.BranchNames(sales, st.snapshot.Branches),
			Products:   salesagg.ProductOptions(sales, st.catalog, category),
		}
	})
}

// WarmUp computes the default views for year so the first dashboard hit is served from cache.
func (s *Service) WarmUp(ctx context.Context, year int) error {
	filter := ViewFilter{Window: salesagg.YearWindow(year)}
	if _, err := s.MonthlySeries(ctx, MonthlyFilter{Year: year}); err != nil {
		return err
	}
	if _, err := s.TopProducts(ctx, filter); err != nil {
		return err
	}
	if _, err := s.TopBranches(ctx, filter); err != nil {
		return err
	}
	if _, err := s.TopCompanies(ctx, filter); err != nil {
		return err
	}
	if _, err := s.Summary(ctx, filter); err != nil {
		return err
	}
	_, err := s.Options(ctx, "")
	return err
}

func nameToken(name string) string {
	if name == "" {
		return salesagg.FilterAll
	}
	return name
}
