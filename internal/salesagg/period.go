package salesagg

import (
	"strings"
	"time"
)

// View selects how a Window scopes sales in time.
type View string

const (
	ViewOverall View = "overall"
	ViewYear    View = "year"
	ViewMonth   View = "month"
)

// Window is the period selector shared by every aggregate view. The zero value is the
// overall view.
type Window struct {
	View  View `json:"view"`
	Year  int  `json:"year,omitempty"`
	Month int  `json:"month,omitempty"`
}

// Overall returns a window without period scoping.
func Overall() Window { return Window{View: ViewOverall} }

// YearWindow scopes to a calendar year.
func YearWindow(year int) Window { return Window{View: ViewYear, Year: year} }

// MonthWindow scopes to a single month of a year.
func MonthWindow(year, month int) Window { return Window{View: ViewMonth, Year: year, Month: month} }

// Matches reports whether an active sale falls inside the window. Sales whose period cannot
// be resolved never match a year or month window.
func (w Window) Matches(s Sale) bool {
	if !s.Status.Active() {
		return false
	}
	switch w.View {
	case ViewOverall, "":
		return true
	case ViewYear:
		p := ResolvePeriod(s)
		return p.YearOK && p.Year == w.Year
	case ViewMonth:
		p := ResolvePeriod(s)
		return p.YearOK && p.MonthOK && p.Year == w.Year && p.Month == w.Month
	default:
		return false
	}
}

// Period is the resolved accounting period of a sale.
type Period struct {
	Year    int
	Month   int
	YearOK  bool
	MonthOK bool
}

// ResolvePeriod takes the explicit Year/Month fields first and parses CreatedAt (falling back
// to Date) only for the parts that are missing. A timestamp that cannot be parsed leaves the
// missing parts unresolved; it is never replaced by the current time.
func ResolvePeriod(s Sale) Period {
	var p Period
	if s.Year != nil {
		p.Year, p.YearOK = *s.Year, true
	}
	if s.Month != nil {
		p.Month, p.MonthOK = *s.Month, true
	}
	if p.YearOK && p.MonthOK {
		return p
	}
	t, ok := saleTime(s)
	if !ok {
		return p
	}
	if !p.YearOK {
		p.Year, p.YearOK = t.Year(), true
	}
	if !p.MonthOK {
		p.Month, p.MonthOK = int(t.Month()), true
	}
	return p
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func saleTime(s Sale) (time.Time, bool) {
	raw := strings.TrimSpace(s.CreatedAt)
	if raw == "" {
		raw = strings.TrimSpace(s.Date)
	}
	return ParseTimestamp(raw)
}

// ParseTimestamp parses the timestamp shapes emitted by the sales backend.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
