package sales

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

type orderRow struct {
	ID          int64
	Status      string
	TotalAmount pgtype.Numeric
	OrderDate   pgtype.Date
	CreatedAt   pgtype.Timestamptz
	CompanyID   pgtype.Int8
	CompanyName pgtype.Text
	BranchID    pgtype.Int8
	BranchName  pgtype.Text
	BranchCode  pgtype.Text
}

type lineRow struct {
	SalesOrderID   int64
	ProductID      pgtype.Int8
	ProductName    pgtype.Text
	Category       pgtype.Text
	VariationID    pgtype.Int8
	VariationLabel pgtype.Text
	Quantity       pgtype.Numeric
	LineTotal      pgtype.Numeric
}

func numeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// mapOrder converts an order row. The order date, when present, is authoritative for the
// sale period; created_at is kept as the fallback timestamp.
func mapOrder(row orderRow) salesagg.Sale {
	s := salesagg.Sale{
		ID:          row.ID,
		Status:      salesagg.SaleStatus(strings.ToUpper(strings.TrimSpace(row.Status))),
		TotalAmount: numeric(row.TotalAmount),
	}
	if row.OrderDate.Valid && row.OrderDate.InfinityModifier == pgtype.Finite {
		year, month := row.OrderDate.Time.Year(), int(row.OrderDate.Time.Month())
		s.Year, s.Month = &year, &month
		s.Date = row.OrderDate.Time.Format(time.DateOnly)
	}
	if row.CreatedAt.Valid && row.CreatedAt.InfinityModifier == pgtype.Finite {
		s.CreatedAt = row.CreatedAt.Time.UTC().Format(time.RFC3339)
	}
	if row.CompanyID.Valid {
		s.Company = &salesagg.CompanyRef{ID: row.CompanyID.Int64, Name: row.CompanyName.String}
	}
	if row.BranchID.Valid {
		s.Branch = &salesagg.BranchRef{ID: row.BranchID.Int64, Name: row.BranchName.String, Code: row.BranchCode.String}
	}
	return s
}

func mapLine(row lineRow) salesagg.SaleItem {
	item := salesagg.SaleItem{
		Quantity: numeric(row.Quantity).Round(0).IntPart(),
		Amount:   numeric(row.LineTotal),
	}
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	if row.ProductID.Valid {
		item.Product = &salesagg.ProductRef{ID: row.ProductID.Int64, Name: row.ProductName.String, Category: row.Category.String}
	}
	if row.VariationID.Valid {
		item.Variation = &salesagg.VariationRef{ID: row.VariationID.Int64, Label: row.VariationLabel.String}
	}
	return item
}

// attachLines appends lines to their orders, keeping the order of both slices. Lines whose
// order is missing are dropped and counted.
func attachLines(sales []salesagg.Sale, lines []lineRow) (orphans int) {
	positions := make(map[int64]int, len(sales))
	for i, s := range sales {
		positions[s.ID] = i
	}
	for _, l := range lines {
		pos, ok := positions[l.SalesOrderID]
		if !ok {
			orphans++
			continue
		}
		sales[pos].Items = append(sales[pos].Items, mapLine(l))
	}
	return orphans
}
