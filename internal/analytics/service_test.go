package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salesboard/internal/salesagg"
)

type stubSource struct {
	mu      sync.Mutex
	calls   int32
	snap    salesagg.Snapshot
	err     error
	release chan struct{}
}

func (s *stubSource) Load(ctx context.Context) (salesagg.Snapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.err
}

func (s *stubSource) set(snap salesagg.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

type countingRecorder struct {
	mu     sync.Mutex
	views  map[string]int
	active int
}

func (r *countingRecorder) ObserveAggregation(view string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.views == nil {
		r.views = map[string]int{}
	}
	r.views[view]++
}

func (r *countingRecorder) SetSnapshotSales(active int) {
	r.mu.Lock()
	r.active = active
	r.mu.Unlock()
}

func (r *countingRecorder) count(view string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[view]
}

func intp(v int) *int { return &v }

func fixtureSnapshot() salesagg.Snapshot {
	product := func(id int64, name string) *salesagg.ProductRef {
		return &salesagg.ProductRef{ID: id, Name: name, Category: "Drinks"}
	}
	north := &salesagg.BranchRef{ID: 1, Name: "North", Code: "N"}
	south := &salesagg.BranchRef{ID: 2, Name: "South", Code: "S"}
	acme := &salesagg.CompanyRef{ID: 1, Name: "Acme"}
	return salesagg.Snapshot{
		Sales: []salesagg.Sale{
			{ID: 1, Status: salesagg.StatusConfirmed, TotalAmount: decimal.NewFromInt(300), Year: intp(2024), Month: intp(3), Company: acme, Branch: north,
				Items: []salesagg.SaleItem{{Product: product(7, "Tea"), Quantity: 3, Amount: decimal.NewFromInt(300)}}},
			{ID: 2, Status: salesagg.StatusInvoiced, TotalAmount: decimal.NewFromInt(200), CreatedAt: "2024-03-09T10:00:00Z", Company: acme, Branch: south,
				Items: []salesagg.SaleItem{{Product: product(8, "Coffee"), Quantity: 5, Amount: decimal.NewFromInt(200)}}},
			{ID: 3, Status: salesagg.StatusCancelled, TotalAmount: decimal.NewFromInt(999), Year: intp(2024), Month: intp(3), Company: acme, Branch: north,
				Items: []salesagg.SaleItem{{Product: product(7, "Tea"), Quantity: 50, Amount: decimal.NewFromInt(999)}}},
		},
		Products:   []salesagg.Product{{ID: 7, Name: "Tea", Category: "Drinks"}},
		Deliveries: []salesagg.Delivery{{ID: 1, Status: "shipped"}, {ID: 2, Status: "SHIPPED"}, {ID: 3}},
		Alerts:     []salesagg.Alert{{ID: 1}, {ID: 2, Resolved: true}},
		LoadedAt:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(t *testing.T, source Source) (*Service, *countingRecorder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rec := &countingRecorder{}
	svc := NewService(source, NewCache(client, time.Minute), WithRecorder(rec))
	return svc, rec, mr
}

func TestServiceLoadsLazilyAndCachesViews(t *testing.T) {
	source := &stubSource{snap: fixtureSnapshot()}
	svc, rec, _ := newTestService(t, source)
	ctx := context.Background()
	filter := ViewFilter{Window: salesagg.YearWindow(2024)}
	_, loaded := svc.Current()
	assert.False(t, loaded)

	first, err := svc.TopProducts(ctx, filter)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, salesagg.BaseKey(8), first[0].Key)
	assert.Equal(t, int64(5), first[0].Quantity)

	second, err := svc.TopProducts(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
	assert.True(t, first[1].Revenue.Equal(second[1].Revenue))

	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
	assert.Equal(t, 1, rec.count("top_products"))
	assert.Equal(t, 2, rec.active)

	info, loaded := svc.Current()
	assert.True(t, loaded)
	assert.Equal(t, 2, info.ActiveSales)
}

func TestServiceRefreshInvalidatesCachedViews(t *testing.T) {
	source := &stubSource{snap: fixtureSnapshot()}
	svc, rec, _ := newTestService(t, source)
	ctx := context.Background()

	before, err := svc.Refresh(ctx)
	require.NoError(t, err)

	series, err := svc.MonthlySeries(ctx, MonthlyFilter{Year: 2024})
	require.NoError(t, err)
	require.Len(t, series, 12)
	assert.Equal(t, "500", series[2].Revenue.String())
	assert.Equal(t, 2, series[2].Count)

	snap := fixtureSnapshot()
	snap.Sales = snap.Sales[:1]
	source.set(snap)

	after, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Equal(t, 1, after.ActiveSales)

	series, err = svc.MonthlySeries(ctx, MonthlyFilter{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "300", series[2].Revenue.String())
	assert.Equal(t, 2, rec.count("monthly"))
}

func TestServiceRefreshSharesConcurrentLoads(t *testing.T) {
	source := &stubSource{snap: fixtureSnapshot(), release: make(chan struct{})}
	svc := NewService(source, nil)

	var wg sync.WaitGroup
	infos := make([]SnapshotInfo, 4)
	for i := range infos {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info, err := svc.Refresh(context.Background())
			assert.NoError(t, err)
			infos[i] = info
		}(i)
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&source.calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
	for _, info := range infos[1:] {
		assert.Equal(t, infos[0].ID, info.ID)
	}
}

func TestServiceWithoutCacheComputesEveryTime(t *testing.T) {
	rec := &countingRecorder{}
	svc := NewService(&stubSource{snap: fixtureSnapshot()}, nil, WithRecorder(rec))
	ctx := context.Background()
	filter := ViewFilter{Window: salesagg.MonthWindow(2024, 3)}

	for i := 0; i < 2; i++ {
		rows, err := svc.TopBranches(ctx, filter)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "North", rows[0].Name)
	}
	assert.Equal(t, 2, rec.count("top_branches"))
}

func TestServiceProductStatsRequiresProduct(t *testing.T) {
	svc := NewService(&stubSource{snap: fixtureSnapshot()}, nil)
	_, err := svc.ProductStats(context.Background(), ViewFilter{Window: salesagg.Overall()})
	assert.ErrorIs(t, err, ErrProductRequired)

	key := salesagg.BaseKey(7)
	stats, err := svc.ProductStats(context.Background(), ViewFilter{Window: salesagg.Overall(), Product: &key})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalQuantity)
	assert.Equal(t, 1, stats.Transactions)
	assert.Equal(t, "100", stats.AvgPerUnit.String())
}

func TestServiceSummaryIncludesOperationalCounters(t *testing.T) {
	svc, _, _ := newTestService(t, &stubSource{snap: fixtureSnapshot()})
	dash, err := svc.Summary(context.Background(), ViewFilter{Window: salesagg.Overall()})
	require.NoError(t, err)

	assert.Equal(t, 2, dash.Summary.SalesCount)
	assert.Equal(t, "500", dash.Summary.Revenue.String())
	assert.Equal(t, map[string]int{"SHIPPED": 2, "UNKNOWN": 1}, dash.Deliveries)
	assert.Equal(t, 1, dash.OpenAlerts)
	assert.Equal(t, 2, dash.Snapshot.ActiveSales)
}

func TestServiceCompanyBranchesAndOptions(t *testing.T) {
	svc, _, _ := newTestService(t, &stubSource{snap: fixtureSnapshot()})
	ctx := context.Background()

	rows, err := svc.CompanyBranchBreakdown(ctx, "Acme", ViewFilter{Window: salesagg.Overall()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "North", rows[0].Name)

	opts, err := svc.Options(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, opts.Years)
	assert.Equal(t, []string{"Acme"}, opts.Companies)
	assert.Equal(t, []string{"North", "South"}, opts.Branches)
	assert.Equal(t, []string{"Drinks"}, opts.Categories)
	assert.Len(t, opts.Products, 2)
}

func TestServiceSourceErrors(t *testing.T) {
	boom := errors.New("backend down")
	svc := NewService(&stubSource{err: boom}, nil)
	_, err := svc.TopCompanies(context.Background(), ViewFilter{})
	assert.ErrorIs(t, err, boom)

	_, err = NewService(nil, nil).Info(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestServiceWarmUpPopulatesCache(t *testing.T) {
	svc, rec, mr := newTestService(t, &stubSource{snap: fixtureSnapshot()})
	require.NoError(t, svc.WarmUp(context.Background(), 2024))

	for _, view := range []string{"monthly", "top_products", "top_branches", "top_companies", "summary", "options"} {
		assert.Equal(t, 1, rec.count(view), view)
	}
	assert.GreaterOrEqual(t, len(mr.Keys()), 7)

	_, err := svc.TopProducts(context.Background(), ViewFilter{Window: salesagg.YearWindow(2024)})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("top_products"))
}

func TestServiceWatchReloadsOnForeignRefresh(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)

	source := &stubSource{snap: fixtureSnapshot()}
	reader := NewService(source, cache)
	writer := NewService(source, cache)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first, err := reader.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.ActiveSales)
	require.NoError(t, reader.Watch(ctx))

	snap := fixtureSnapshot()
	snap.Sales = snap.Sales[:1]
	source.set(snap)
	_, err = writer.Refresh(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, err := reader.Info(ctx)
		return err == nil && info.ID != first.ID && info.ActiveSales == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSnapshotIDFollowsContent(t *testing.T) {
	a, err := snapshotID(fixtureSnapshot())
	require.NoError(t, err)

	later := fixtureSnapshot()
	later.LoadedAt = later.LoadedAt.Add(time.Hour)
	b, err := snapshotID(later)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := fixtureSnapshot()
	changed.Sales[0].TotalAmount = decimal.NewFromInt(301)
	c, err := snapshotID(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestServicesShareWarmedViews(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	workerRec, serverRec := &countingRecorder{}, &countingRecorder{}
	worker := NewService(&stubSource{snap: fixtureSnapshot()}, cache, WithRecorder(workerRec))
	server := NewService(&stubSource{snap: fixtureSnapshot()}, cache, WithRecorder(serverRec))

	require.NoError(t, worker.WarmUp(ctx, 2024))
	assert.Equal(t, 1, workerRec.count("monthly"))

	series, err := server.MonthlySeries(ctx, MonthlyFilter{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "500", series[2].Revenue.String())
	_, err = server.TopProducts(ctx, ViewFilter{Window: salesagg.YearWindow(2024)})
	require.NoError(t, err)
	assert.Zero(t, serverRec.count("monthly"))
	assert.Zero(t, serverRec.count("top_products"))

	workerInfo, _ := worker.Current()
	serverInfo, _ := server.Current()
	assert.Equal(t, workerInfo.ID, serverInfo.ID)
}

func TestRefreshDoesNotJoinLazyLoad(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	source := &stubSource{snap: fixtureSnapshot(), release: make(chan struct{})}
	svc := NewService(source, cache)
	before, err := cache.Version(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Info(ctx)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&source.calls) == 1 }, time.Second, 5*time.Millisecond)
	go func() {
		defer wg.Done()
		_, err := svc.Refresh(ctx)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&source.calls) == 2 }, time.Second, 5*time.Millisecond)
	close(source.release)
	wg.Wait()

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestOptionsListMasterDataCompanies(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Companies = []salesagg.Company{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}}
	snap.Branches = []salesagg.Branch{{ID: 9, CompanyID: 2, Name: "Harbor"}}
	svc := NewService(&stubSource{snap: snap}, nil)
	ctx := context.Background()

	opts, err := svc.Options(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex"}, opts.Companies)
	assert.Equal(t, []string{"Harbor", "North", "South"}, opts.Branches)

	rows, err := svc.CompanyBranchBreakdown(ctx, "Globex", ViewFilter{Window: salesagg.Overall()})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
