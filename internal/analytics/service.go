package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

var (
	// ErrNoSource is returned when a snapshot is requested from a service without a source.
	ErrNoSource = errors.New("analytics: source not configured")
	// ErrSnapshotUnavailable wraps source failures while loading a snapshot.
	ErrSnapshotUnavailable = errors.New("analytics: snapshot unavailable")
)

// Source loads everything the dashboard aggregates over.
type Source interface {
	Load(ctx context.Context) (salesagg.Snapshot, error)
}

// Recorder receives aggregation timings and snapshot sizes.
type Recorder interface {
	ObserveAggregation(view string, elapsed time.Duration)
	SetSnapshotSales(active int)
}

// snapshotNamespace seeds the name-based snapshot ids.
var snapshotNamespace = uuid.MustParse("5d0f6c1e-8a3b-5f47-9e21-b6c4d8a07f35")

// SnapshotInfo describes the snapshot currently served. ID is derived from the snapshot
// content, so every process that loaded the same data agrees on it and shares cache entries.
type SnapshotInfo struct {
	ID          uuid.UUID `json:"id"`
	LoadedAt    time.Time `json:"loaded_at"`
	Sales       int       `json:"sales"`
	ActiveSales int       `json:"active_sales"`
}

type snapshotState struct {
	info     SnapshotInfo
	snapshot salesagg.Snapshot
	index    *salesagg.Index
	catalog  salesagg.Catalog
}

// Service coordinates snapshot loading, aggregation and the cache layer.
type Service struct {
	source   Source
	cache    *Cache
	engine   *salesagg.Engine
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	origin   string

	current atomic.Pointer[snapshotState]
	loads   singleflight.Group
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires a Source with a Cache helper. cache may be nil.
func NewService(source Source, cache *Cache, opts ...Option) *Service {
	s := &Service{
		source: source,
		cache:  cache,
		logger: slog.Default(),
		now:    time.Now,
		origin: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = salesagg.NewEngine(s.logger)
	return s
}

// Refresh reloads the snapshot from the source, swaps it in and bumps the cache version.
// Concurrent Refresh calls share a single load.
func (s *Service) Refresh(ctx context.Context) (SnapshotInfo, error) {
	return s.reload(ctx, true)
}

// Info returns the current snapshot description, loading one when none is held.
func (s *Service) Info(ctx context.Context) (SnapshotInfo, error) {
	st, err := s.state(ctx)
	if err != nil {
		return SnapshotInfo{}, err
	}
	return st.info, nil
}

// Current returns the snapshot description without triggering a load.
func (s *Service) Current() (SnapshotInfo, bool) {
	st := s.current.Load()
	if st == nil {
		return SnapshotInfo{}, false
	}
	return st.info, true
}

// Watch reloads the snapshot whenever another instance announces a refresh. It returns after
// subscribing; the listener stops with ctx.
func (s *Service) Watch(ctx context.Context) error {
	return s.cache.ListenForInvalidation(ctx, func(inv Invalidation) {
		if inv.Origin == s.origin {
			return
		}
		if _, err := s.reload(ctx, false); err != nil {
			s.logger.Error("analytics: reload after invalidation", slog.Int64("version", inv.Version), slog.Any("error", err))
		}
	})
}

func (s *Service) reload(ctx context.Context, bump bool) (SnapshotInfo, error) {
	if s.source == nil {
		return SnapshotInfo{}, ErrNoSource
	}
	// Refreshes do not join lazy loads, so every Refresh reads the source and bumps.
	key := "snapshot:load"
	if bump {
		key = "snapshot:refresh"
	}
	ch := s.loads.DoChan(key, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), bump)
	})
	select {
	case <-ctx.Done():
		return SnapshotInfo{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return SnapshotInfo{}, res.Err
		}
		return res.Val.(SnapshotInfo), nil
	}
}

func (s *Service) load(ctx context.Context, bump bool) (SnapshotInfo, error) {
	start := s.now()
	snap, err := s.source.Load(ctx)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = s.now()
	}
	id, err := snapshotID(snap)
	if err != nil {
		s.logger.Warn("analytics: fingerprint snapshot", slog.Any("error", err))
		id = uuid.New()
	}
	index := salesagg.NewIndex(snap.Sales)
	st := &snapshotState{
		info: SnapshotInfo{
			ID:          id,
			LoadedAt:    snap.LoadedAt,
			Sales:       len(snap.Sales),
			ActiveSales: index.Len(),
		},
		snapshot: snap,
		index:    index,
		catalog:  salesagg.NewCatalog(snap.Products),
	}
	s.current.Store(st)
	if s.recorder != nil {
		s.recorder.SetSnapshotSales(index.Len())
	}
	if bump {
		if _, err := s.cache.Bump(ctx, s.origin); err != nil {
			s.logger.Warn("analytics: cache bump failed", slog.Any("error", err))
		}
	}
	s.logger.Info("analytics: snapshot loaded",
		slog.String("snapshot_id", st.info.ID.String()),
		slog.Int("sales", st.info.Sales),
		slog.Int("active_sales", st.info.ActiveSales),
		slog.Duration("elapsed", s.now().Sub(start)),
	)
	return st.info, nil
}

// snapshotID hashes the snapshot content, ignoring the load time.
func snapshotID(snap salesagg.Snapshot) (uuid.UUID, error) {
	snap.LoadedAt = time.Time{}
	h := xxhash.New()
	if err := json.NewEncoder(h).Encode(snap); err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(snapshotNamespace, h.Sum(nil)), nil
}

func (s *Service) state(ctx context.Context) (*snapshotState, error) {
	if st := s.current.Load(); st != nil {
		return st, nil
	}
	if _, err := s.reload(ctx, false); err != nil {
		return nil, err
	}
	st := s.current.Load()
	if st == nil {
		return nil, ErrNoSource
	}
	return st, nil
}

// cached computes a view over the current snapshot, memoised in Redis under a key scoped to
// the snapshot id and cache version. Cache failures fall back to direct computation.
func cached[T any](ctx context.Context, s *Service, view string, parts []string, compute func(*snapshotState) T) (T, error) {
	var zero T
	st, err := s.state(ctx)
	if err != nil {
		return zero, err
	}
	loader := func(context.Context) (any, error) {
		start := time.Now()
		value := compute(st)
		if s.recorder != nil {
			s.recorder.ObserveAggregation(view, time.Since(start))
		}
		return value, nil
	}
	if !s.cache.enabled() {
		value, _ := loader(ctx)
		return value.(T), nil
	}
	key, err := s.cache.BuildKey(ctx, append([]string{"salesboard", view, st.info.ID.String()}, parts...)...)
	if err == nil {
		var out T
		if err = s.cache.FetchJSON(ctx, key, &out, loader); err == nil {
			return out, nil
		}
	}
	s.logger.Warn("analytics: cache unavailable", slog.String("view", view), slog.Any("error", err))
	value, _ := loader(ctx)
	return value.(T), nil
}
