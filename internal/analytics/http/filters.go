package analytichttp

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/salesboard/internal/analytics"
	"github.com/odyssey-erp/salesboard/internal/platform/httpx"
	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

type viewQuery struct {
	View     string `validate:"oneof=overall year month"`
	Year     int    `validate:"gte=1970,lte=9999"`
	Month    int
	Category string `validate:"max=200"`
	Product  string `validate:"max=64"`
}

type monthlyQuery struct {
	Year    int    `validate:"gte=1970,lte=9999"`
	Company string `validate:"max=200"`
	Branch  string `validate:"max=200"`
}

type fieldError struct {
	field string
}

func (e fieldError) Error() string {
	return "invalid " + e.field
}

// intParam reads an integer query parameter, falling back to def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fieldError{field: name}
	}
	return v, nil
}

func (h *Handler) parseViewFilter(r *http.Request) (analytics.ViewFilter, error) {
	now := h.now()
	q := viewQuery{
		View:     strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view"))),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Product:  strings.TrimSpace(r.URL.Query().Get("product")),
	}
	if q.View == "" {
		q.View = string(salesagg.ViewYear)
	}
	var err error
	if q.Year, err = intParam(r, "year", now.Year()); err != nil {
		return analytics.ViewFilter{}, h.validationError(err)
	}
	if q.Month, err = intParam(r, "month", int(now.Month())); err != nil {
		return analytics.ViewFilter{}, h.validationError(err)
	}
	if err := h.validate.Struct(q); err != nil {
		return analytics.ViewFilter{}, h.validationError(err)
	}

	filter := analytics.ViewFilter{Category: q.Category}
	switch salesagg.View(q.View) {
	case salesagg.ViewOverall:
		filter.Window = salesagg.Overall()
	case salesagg.ViewMonth:
		if err := h.validate.Var(q.Month, "gte=1,lte=12"); err != nil {
			return analytics.ViewFilter{}, h.validationError(fieldError{field: "month"})
		}
		filter.Window = salesagg.MonthWindow(q.Year, q.Month)
	default:
		filter.Window = salesagg.YearWindow(q.Year)
	}
	if q.Product != "" && !strings.EqualFold(q.Product, salesagg.FilterAll) {
		key, err := salesagg.ParseProductKey(q.Product)
		if err != nil {
			return analytics.ViewFilter{}, h.validationError(fieldError{field: "product"})
		}
		filter.Product = &key
	}
	return filter, nil
}

func (h *Handler) parseMonthlyFilter(r *http.Request) (analytics.MonthlyFilter, error) {
	q := monthlyQuery{
		Company: strings.TrimSpace(r.URL.Query().Get("company")),
		Branch:  strings.TrimSpace(r.URL.Query().Get("branch")),
	}
	var err error
	if q.Year, err = intParam(r, "year", h.now().Year()); err != nil {
		return analytics.MonthlyFilter{}, h.validationError(err)
	}
	if err := h.validate.Struct(q); err != nil {
		return analytics.MonthlyFilter{}, h.validationError(err)
	}
	return analytics.MonthlyFilter{Year: q.Year, Company: q.Company, Branch: q.Branch}, nil
}

// validationError flattens parse and validator failures into one httpx.ErrValidation naming
// the offending query parameters.
func (h *Handler) validationError(err error) error {
	var fields []string
	var fe fieldError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		fields = append(fields, fe.field)
	case errors.As(err, &verrs):
		for _, v := range verrs {
			fields = append(fields, strings.ToLower(v.Field()))
		}
	default:
		fields = append(fields, err.Error())
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: invalid %s", httpx.ErrValidation, strings.Join(fields, ", "))
}

func periodLabel(w salesagg.Window) string {
	switch w.View {
	case salesagg.ViewOverall:
		return "overall"
	case salesagg.ViewMonth:
		return time.Date(w.Year, time.Month(w.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
	default:
		return strconv.Itoa(w.Year)
	}
}
