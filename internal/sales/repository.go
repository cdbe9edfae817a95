// Package sales reads the sales snapshot straight from the ERP database.
package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/salesboard/internal/platform/db"
	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

const (
	ordersQuery = `
		SELECT so.id, so.status, so.total_amount, so.order_date, so.created_at,
		       so.company_id, c.name, so.branch_id, b.name, b.code
		FROM sales_orders so
		LEFT JOIN companies c ON so.company_id = c.id
		LEFT JOIN branches b ON so.branch_id = b.id
		WHERE so.order_date >= $1
		ORDER BY so.order_date, so.id`

	linesQuery = `
		SELECT l.sales_order_id, l.product_id, p.name, p.category,
		       l.variation_id, v.label, l.quantity, l.line_total
		FROM sales_order_lines l
		JOIN sales_orders so ON so.id = l.sales_order_id
		LEFT JOIN products p ON p.id = l.product_id
		LEFT JOIN product_variations v ON v.id = l.variation_id
		WHERE so.order_date >= $1
		ORDER BY l.sales_order_id, l.line_order, l.id`

	productsQuery = `
		SELECT p.id, p.name, COALESCE(p.category, ''), v.id, v.label
		FROM products p
		LEFT JOIN product_variations v ON v.product_id = p.id
		ORDER BY p.id, v.id`

	companiesQuery = `SELECT id, name FROM companies ORDER BY id`

	branchesQuery = `SELECT id, company_id, name, COALESCE(code, '') FROM branches ORDER BY id`

	deliveriesQuery = `
		SELECT id, sales_order_id, status
		FROM delivery_orders
		WHERE created_at >= $1`

	alertsQuery = `
		SELECT id, severity, message, resolved_at IS NOT NULL
		FROM alerts
		ORDER BY id`
)

// Repository provides PostgreSQL backed snapshot loading.
type Repository struct {
	db       db.TxBeginner
	logger   *slog.Logger
	lookback time.Duration
	now      func() time.Time
}

// NewRepository constructs a repository. lookback limits the orders read to those dated within
// it; zero reads the full history.
func NewRepository(pool db.TxBeginner, logger *slog.Logger, lookback time.Duration) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: pool, logger: logger, lookback: lookback, now: time.Now}
}

func (r *Repository) since() time.Time {
	if r.lookback <= 0 {
		return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return r.now().Add(-r.lookback).UTC().Truncate(24 * time.Hour)
}

// Load reads every table the dashboard needs inside one read-only snapshot transaction.
func (r *Repository) Load(ctx context.Context) (salesagg.Snapshot, error) {
	var snap salesagg.Snapshot
	since := r.since()
	err := db.WithReadSnapshot(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		if snap.Sales, err = r.loadSales(ctx, tx, since); err != nil {
			return err
		}
		if snap.Products, err = loadProducts(ctx, tx); err != nil {
			return err
		}
		if snap.Companies, err = collect(ctx, tx, companiesQuery, scanCompany); err != nil {
			return fmt.Errorf("sales: companies: %w", err)
		}
		if snap.Branches, err = collect(ctx, tx, branchesQuery, scanBranch); err != nil {
			return fmt.Errorf("sales: branches: %w", err)
		}
		if snap.Deliveries, err = collect(ctx, tx, deliveriesQuery, scanDelivery, since); err != nil {
			return fmt.Errorf("sales: deliveries: %w", err)
		}
		if snap.Alerts, err = collect(ctx, tx, alertsQuery, scanAlert); err != nil {
			return fmt.Errorf("sales: alerts: %w", err)
		}
		return nil
	})
	if err != nil {
		return salesagg.Snapshot{}, err
	}
	snap.LoadedAt = r.now().UTC()
	return snap, nil
}

func (r *Repository) loadSales(ctx context.Context, tx pgx.Tx, since time.Time) ([]salesagg.Sale, error) {
	orders, err := collect(ctx, tx, ordersQuery, func(rows pgx.Rows) (salesagg.Sale, error) {
		var row orderRow
		err := rows.Scan(&row.ID, &row.Status, &row.TotalAmount, &row.OrderDate, &row.CreatedAt,
			&row.CompanyID, &row.CompanyName, &row.BranchID, &row.BranchName, &row.BranchCode)
		return mapOrder(row), err
	}, since)
	if err != nil {
		return nil, fmt.Errorf("sales: orders: %w", err)
	}
	lines, err := collect(ctx, tx, linesQuery, func(rows pgx.Rows) (lineRow, error) {
		var row lineRow
		err := rows.Scan(&row.SalesOrderID, &row.ProductID, &row.ProductName, &row.Category,
			&row.VariationID, &row.VariationLabel, &row.Quantity, &row.LineTotal)
		return row, err
	}, since)
	if err != nil {
		return nil, fmt.Errorf("sales: order lines: %w", err)
	}
	if orphans := attachLines(orders, lines); orphans > 0 {
		r.logger.Warn("sales: order lines without order", slog.Int("count", orphans))
	}
	return orders, nil
}

func loadProducts(ctx context.Context, tx pgx.Tx) ([]salesagg.Product, error) {
	type productRow struct {
		id       int64
		name     string
		category string
		varID    *int64
		varLabel *string
	}
	rows, err := collect(ctx, tx, productsQuery, func(rows pgx.Rows) (productRow, error) {
		var row productRow
		err := rows.Scan(&row.id, &row.name, &row.category, &row.varID, &row.varLabel)
		return row, err
	})
	if err != nil {
		return nil, fmt.Errorf("sales: products: %w", err)
	}
	var products []salesagg.Product
	for _, row := range rows {
		if n := len(products); n == 0 || products[n-1].ID != row.id {
			products = append(products, salesagg.Product{ID: row.id, Name: row.name, Category: row.category})
		}
		if row.varID != nil {
			p := &products[len(products)-1]
			label := ""
			if row.varLabel != nil {
				label = *row.varLabel
			}
			p.Variations = append(p.Variations, salesagg.Variation{ID: *row.varID, Label: label})
		}
	}
	return products, nil
}

func scanCompany(rows pgx.Rows) (salesagg.Company, error) {
	var c salesagg.Company
	err := rows.Scan(&c.ID, &c.Name)
	return c, err
}

func scanBranch(rows pgx.Rows) (salesagg.Branch, error) {
	var b salesagg.Branch
	err := rows.Scan(&b.ID, &b.CompanyID, &b.Name, &b.Code)
	return b, err
}

func scanDelivery(rows pgx.Rows) (salesagg.Delivery, error) {
	var d salesagg.Delivery
	err := rows.Scan(&d.ID, &d.SaleID, &d.Status)
	return d, err
}

func scanAlert(rows pgx.Rows) (salesagg.Alert, error) {
	var a salesagg.Alert
	err := rows.Scan(&a.ID, &a.Severity, &a.Message, &a.Resolved)
	return a, err
}

func collect[T any](ctx context.Context, tx pgx.Tx, query string, scan func(pgx.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
