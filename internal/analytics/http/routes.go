package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/salesboard/internal/platform/httpx"
)

// MountRoutes registers the sales analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "rate limit exceeded")
		}),
	)

	r.Route("/analytics/sales", func(r chi.Router) {
		r.Get("/monthly", h.handleMonthly)
		r.Get("/top-products", h.handleTopProducts)
		r.Get("/top-branches", h.handleTopBranches)
		r.Get("/top-companies", h.handleTopCompanies)
		r.Get("/product-stats", h.handleProductStats)
		r.Get("/companies/{company}/branches", h.handleCompanyBranches)
		r.Get("/summary", h.handleSummary)
		r.Get("/options", h.handleOptions)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export.csv", h.handleCSV)
			gr.Get("/monthly.svg", h.handleMonthlySVG)
			gr.Get("/top-branches.svg", h.handleTopBranchesSVG)
			gr.Post("/refresh", h.handleRefresh)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
