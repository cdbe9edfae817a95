package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/salesboard/internal/analytics"
	"github.com/odyssey-erp/salesboard/internal/analytics/export"
	"github.com/odyssey-erp/salesboard/internal/analytics/svg"
	"github.com/odyssey-erp/salesboard/internal/platform/httpx"
	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

const (
	requestTimeout = 5 * time.Second
	refreshTimeout = 30 * time.Second
)

// AnalyticsService defines the dashboard data contract used by the handler.
type AnalyticsService interface {
	MonthlySeries(ctx context.Context, filter analytics.MonthlyFilter) ([]salesagg.MonthlyBucket, error)
	TopProducts(ctx context.Context, filter analytics.ViewFilter) ([]salesagg.ProductStat, error)
	TopBranches(ctx context.Context, filter analytics.ViewFilter) ([]salesagg.BranchStat, error)
	TopCompanies(ctx context.Context, filter analytics.ViewFilter) ([]salesagg.CompanyStat, error)
	ProductStats(ctx context.Context, filter analytics.ViewFilter) (salesagg.ProductSummary, error)
	CompanyBranchBreakdown(ctx context.Context, company string, filter analytics.ViewFilter) ([]salesagg.BranchStat, error)
	Summary(ctx context.Context, filter analytics.ViewFilter) (analytics.Dashboard, error)
	Options(ctx context.Context, category string) (analytics.Options, error)
	Refresh(ctx context.Context) (analytics.SnapshotInfo, error)
}

// Handler serves the sales analytics endpoints.
type Handler struct {
	logger   *slog.Logger
	service  AnalyticsService
	validate *validator.Validate
	locale   language.Tag
	csvPool  sync.Pool
	now      func() time.Time
}

// NewHandler constructs the analytics HTTP handler. locale drives number formatting in CSV
// exports and chart labels; language.Und keeps plain numbers.
func NewHandler(logger *slog.Logger, service AnalyticsService, locale language.Tag) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		locale:   locale,
		now:      time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseMonthlyFilter(r)
	if err != nil {
		h.respondError(w, "parse monthly filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	series, err := h.service.MonthlySeries(ctx, filter)
	if err != nil {
		h.respondError(w, "monthly series", err)
		return
	}
	httpx.OK(w, series)
}

func (h *Handler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "top products", h.service.TopProducts)
}

func (h *Handler) handleTopBranches(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "top branches", h.service.TopBranches)
}

func (h *Handler) handleTopCompanies(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "top companies", h.service.TopCompanies)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "summary", h.service.Summary)
}

func (h *Handler) handleProductStats(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseViewFilter(r)
	if err != nil {
		h.respondError(w, "parse filter", err)
		return
	}
	if filter.Product == nil {
		h.respondError(w, "product stats", fmt.Errorf("%w: product is required", httpx.ErrValidation))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := h.service.ProductStats(ctx, filter)
	if err != nil {
		h.respondError(w, "product stats", err)
		return
	}
	httpx.OK(w, stats)
}

func (h *Handler) handleCompanyBranches(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")
	filter, err := h.parseViewFilter(r)
	if err != nil {
		h.respondError(w, "parse filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	opts, err := h.service.Options(ctx, "")
	if err != nil {
		h.respondError(w, "options", err)
		return
	}
	if !slices.Contains(opts.Companies, company) {
		h.respondError(w, "company branches", fmt.Errorf("company %q: %w", company, httpx.ErrNotFound))
		return
	}
	rows, err := h.service.CompanyBranchBreakdown(ctx, company, filter)
	if err != nil {
		h.respondError(w, "company branches", err)
		return
	}
	httpx.OK(w, rows)
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	opts, err := h.service.Options(ctx, r.URL.Query().Get("category"))
	if err != nil {
		h.respondError(w, "options", err)
		return
	}
	httpx.OK(w, opts)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	info, err := h.service.Refresh(ctx)
	if err != nil {
		h.respondError(w, "refresh snapshot", err)
		return
	}
	h.logger.Info("snapshot refreshed on request", slog.String("snapshot_id", info.ID.String()))
	httpx.OK(w, info)
}

type reportData struct {
	summary   analytics.Dashboard
	monthly   []salesagg.MonthlyBucket
	products  []salesagg.ProductStat
	branches  []salesagg.BranchStat
	companies []salesagg.CompanyStat
}

func (h *Handler) loadReport(ctx context.Context, filter analytics.ViewFilter) (reportData, error) {
	var data reportData
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.summary, err = h.service.Summary(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		year := filter.Window.Year
		if filter.Window.View == salesagg.ViewOverall {
			year = h.now().Year()
		}
		data.monthly, err = h.service.MonthlySeries(ctx, analytics.MonthlyFilter{Year: year})
		return err
	})
	g.Go(func() (err error) {
		data.products, err = h.service.TopProducts(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.branches, err = h.service.TopBranches(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		data.companies, err = h.service.TopCompanies(ctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return reportData{}, err
	}
	return data, nil
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseViewFilter(r)
	if err != nil {
		h.respondError(w, "parse filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := h.loadReport(ctx, filter)
	if err != nil {
		h.respondError(w, "load report", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	period := periodLabel(filter.Window)
	opts := export.Options{Locale: h.locale}
	err = export.WriteReport(buf,
		export.SummarySection(period, data.summary.Summary, opts),
		export.MonthlySection(data.monthly, opts),
		export.ProductsSection(data.products, opts),
		export.BranchesSection("Top branches", data.branches, opts),
		export.CompaniesSection(data.companies, opts),
	)
	if err != nil {
		h.respondError(w, "write csv", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-analytics-%s.csv\"", period))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleMonthlySVG(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseMonthlyFilter(r)
	if err != nil {
		h.respondError(w, "parse monthly filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	series, err := h.service.MonthlySeries(ctx, filter)
	if err != nil {
		h.respondError(w, "monthly series", err)
		return
	}
	points := make([]svg.Point, 0, len(series))
	for _, b := range series {
		v, _ := b.Revenue.Float64()
		points = append(points, svg.Point{Label: b.Label, Value: v})
	}
	out, err := svg.Line(svg.DefaultWidth, svg.DefaultHeight, points, svg.LineOpts{
		Title:       "Revenue " + strconv.Itoa(filter.Year),
		Description: "Monthly revenue of confirmed and invoiced sales",
		ShowDots:    true,
		Locale:      h.locale,
	})
	if err != nil {
		h.respondError(w, "render chart", err)
		return
	}
	writeSVG(w, h, out)
}

func (h *Handler) handleTopBranchesSVG(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseViewFilter(r)
	if err != nil {
		h.respondError(w, "parse filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rows, err := h.service.TopBranches(ctx, filter)
	if err != nil {
		h.respondError(w, "top branches", err)
		return
	}
	if len(rows) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	points := make([]svg.Point, 0, len(rows))
	for _, row := range rows {
		v, _ := row.Revenue.Float64()
		points = append(points, svg.Point{Label: row.Name, Value: v})
	}
	out, err := svg.Ranking(svg.DefaultWidth, points, svg.RankingOpts{
		Title:       "Top branches " + periodLabel(filter.Window),
		Description: "Branches ranked by revenue",
		Locale:      h.locale,
	})
	if err != nil {
		h.respondError(w, "render chart", err)
		return
	}
	writeSVG(w, h, out)
}

func writeSVG(w http.ResponseWriter, h *Handler, out []byte) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(out); err != nil {
		h.logError("stream svg", err)
	}
}

// serveView parses the common view filter, calls fetch under the request timeout and
// writes the result in a success envelope.
func serveView[T any](h *Handler, w http.ResponseWriter, r *http.Request, name string, fetch func(context.Context, analytics.ViewFilter) (T, error)) {
	filter, err := h.parseViewFilter(r)
	if err != nil {
		h.respondError(w, "parse filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	value, err := fetch(ctx, filter)
	if err != nil {
		h.respondError(w, name, err)
		return
	}
	httpx.OK(w, value)
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	switch {
	case errors.Is(err, analytics.ErrProductRequired):
		err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	case errors.Is(err, analytics.ErrSnapshotUnavailable), errors.Is(err, analytics.ErrNoSource):
		err = fmt.Errorf("%w: %w", httpx.ErrUnavailable, err)
	}
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrNotFound) {
		h.logError(context, err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}
