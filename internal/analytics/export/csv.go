// Package export serialises dashboard views to CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

// Options controls number rendering. The zero value writes plain machine-readable numbers.
type Options struct {
	Locale language.Tag
}

type formatter struct {
	p *message.Printer
}

func newFormatter(opts Options) formatter {
	if opts.Locale == language.Und {
		return formatter{}
	}
	return formatter{p: message.NewPrinter(opts.Locale)}
}

func (f formatter) money(d decimal.Decimal) string {
	if f.p == nil {
		return d.StringFixed(2)
	}
	v, _ := d.Round(2).Float64()
	return f.p.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func (f formatter) count(n int64) string {
	if f.p == nil {
		return strconv.FormatInt(n, 10)
	}
	return f.p.Sprint(number.Decimal(n))
}

// Section is one titled table of a multi-part report.
type Section struct {
	Title  string
	Header []string
	Rows   [][]string
}

func write(w io.Writer, sections ...Section) error {
	writer := csv.NewWriter(w)
	for i, section := range sections {
		if i > 0 {
			if err := writer.Write([]string{}); err != nil {
				return err
			}
		}
		if section.Title != "" {
			if err := writer.Write([]string{section.Title}); err != nil {
				return err
			}
		}
		if err := writer.Write(section.Header); err != nil {
			return err
		}
		if err := writer.WriteAll(section.Rows); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// MonthlySection tabulates a monthly series.
func MonthlySection(buckets []salesagg.MonthlyBucket, opts Options) Section {
	f := newFormatter(opts)
	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []string{b.Label, f.money(b.Revenue), f.count(int64(b.Count))})
	}
	return Section{Title: "Monthly revenue", Header: []string{"Month", "Revenue", "Sales"}, Rows: rows}
}

// ProductsSection tabulates a product ranking.
func ProductsSection(stats []salesagg.ProductStat, opts Options) Section {
	f := newFormatter(opts)
	rows := make([][]string, 0, len(stats))
	for i, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), s.Key.String(), s.DisplayName, s.Category,
			f.count(s.Quantity), f.money(s.Revenue), f.count(int64(s.TransactionCount)),
		})
	}
	return Section{
		Title:  "Top products",
		Header: []string{"Rank", "Key", "Product", "Category", "Quantity", "Revenue", "Transactions"},
		Rows:   rows,
	}
}

// BranchesSection tabulates a branch ranking or breakdown.
func BranchesSection(title string, stats []salesagg.BranchStat, opts Options) Section {
	f := newFormatter(opts)
	rows := make([][]string, 0, len(stats))
	for i, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), s.Name, s.Code, f.money(s.Revenue), f.count(s.Quantity),
			f.count(int64(s.SalesCount)), f.money(s.AverageOrderValue),
		})
	}
	return Section{
		Title:  title,
		Header: []string{"Rank", "Branch", "Code", "Revenue", "Quantity", "Sales", "Average Order Value"},
		Rows:   rows,
	}
}

// CompaniesSection tabulates a company ranking.
func CompaniesSection(stats []salesagg.CompanyStat, opts Options) Section {
	f := newFormatter(opts)
	rows := make([][]string, 0, len(stats))
	for i, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), s.Name, f.money(s.Revenue), f.count(int64(s.SalesCount)), f.money(s.AverageOrderValue),
		})
	}
	return Section{
		Title:  "Top companies",
		Header: []string{"Rank", "Company", "Revenue", "Sales", "Average Order Value"},
		Rows:   rows,
	}
}

// SummarySection lists the headline figures as metric/value pairs.
func SummarySection(period string, s salesagg.Summary, opts Options) Section {
	f := newFormatter(opts)
	return Section{
		Title:  "Summary",
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Period", period},
			{"Revenue", f.money(s.Revenue)},
			{"Sales", f.count(int64(s.SalesCount))},
			{"Quantity", f.count(s.Quantity)},
			{"Average Order Value", f.money(s.AverageOrderValue)},
			{"Products Sold", f.count(int64(s.ProductsSold))},
		},
	}
}

// WriteReport writes the sections one after another separated by a blank record.
func WriteReport(w io.Writer, sections ...Section) error {
	return write(w, sections...)
}
