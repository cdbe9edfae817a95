package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

// Load fetches every collection concurrently and assembles a snapshot. Deliveries and alerts
// are optional: a backend without those endpoints yields empty lists.
func (c *Client) Load(ctx context.Context) (salesagg.Snapshot, error) {
	var (
		sales      []saleDTO
		products   []productDTO
		companies  []companyDTO
		branches   []branchDTO
		deliveries []deliveryDTO
		alerts     []alertDTO
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sales, err = getRecords[saleDTO](gctx, c, "/sales", false)
		return err
	})
	g.Go(func() (err error) {
		products, err = getRecords[productDTO](gctx, c, "/products", false)
		return err
	})
	g.Go(func() (err error) {
		companies, err = getRecords[companyDTO](gctx, c, "/companies", false)
		return err
	})
	g.Go(func() (err error) {
		branches, err = getRecords[branchDTO](gctx, c, "/branches", false)
		return err
	})
	g.Go(func() (err error) {
		deliveries, err = getRecords[deliveryDTO](gctx, c, "/deliveries", true)
		return err
	})
	g.Go(func() (err error) {
		alerts, err = getRecords[alertDTO](gctx, c, "/alerts", true)
		return err
	})
	if err := g.Wait(); err != nil {
		return salesagg.Snapshot{}, err
	}

	snap := salesagg.Snapshot{
		Sales:      make([]salesagg.Sale, 0, len(sales)),
		Products:   make([]salesagg.Product, 0, len(products)),
		Companies:  make([]salesagg.Company, 0, len(companies)),
		Branches:   make([]salesagg.Branch, 0, len(branches)),
		Deliveries: make([]salesagg.Delivery, 0, len(deliveries)),
		Alerts:     make([]salesagg.Alert, 0, len(alerts)),
		LoadedAt:   time.Now().UTC(),
	}
	for _, s := range sales {
		snap.Sales = append(snap.Sales, s.toSale())
	}
	for _, p := range products {
		snap.Products = append(snap.Products, p.toProduct())
	}
	for _, co := range companies {
		snap.Companies = append(snap.Companies, salesagg.Company{ID: co.ID, Name: co.name()})
	}
	for _, b := range branches {
		snap.Branches = append(snap.Branches, b.toBranch())
	}
	for _, d := range deliveries {
		snap.Deliveries = append(snap.Deliveries, salesagg.Delivery{ID: d.ID, SaleID: d.SaleID, Status: d.Status})
	}
	for _, a := range alerts {
		snap.Alerts = append(snap.Alerts, a.toAlert())
	}
	return snap, nil
}

// getRecords fetches a collection and decodes every record on its own. A record that does not
// decode is logged and skipped so one bad row never drops the whole collection.
func getRecords[T any](ctx context.Context, c *Client, path string, optional bool) ([]T, error) {
	var raw []json.RawMessage
	var err error
	if optional {
		err = c.optional(ctx, path, &raw)
	} else {
		err = c.getJSON(ctx, path, &raw)
	}
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for i, rec := range raw {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			c.logger.Warn("apiclient: skipping malformed record",
				slog.String("path", path),
				slog.Int("index", i),
				slog.Any("error", err),
			)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) optional(ctx context.Context, path string, dest any) error {
	err := c.getJSON(ctx, path, dest)
	if errors.Is(err, ErrNotFound) {
		c.logger.Info("apiclient: optional collection unavailable", slog.String("path", path))
		return nil
	}
	return err
}
