package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/openmedicaid/claimlens/internal/aggregates"
	"github.com/openmedicaid/claimlens/internal/cache"
	"github.com/openmedicaid/claimlens/internal/insight"
	"github.com/openmedicaid/claimlens/internal/metrics"
	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/outlier"
)

func defaultOptions(t *testing.T) Options {
	t.Helper()
	cat, err := outlier.DefaultCatalog(outlier.DefaultConfig())
	if err != nil {
		t.Fatalf("DefaultCatalog() error = %v", err)
	}
	return Options{
		Outlier: outlier.DefaultConfig(),
		Rules:   insight.DefaultRuleConfig(),
		Derive:  aggregates.DefaultDeriveOptions(),
		Catalog: cat,
	}
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func seed(t *testing.T) *models.Snapshot {
	t.Helper()
	snap, err := aggregates.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	return snap
}

func TestRunSeed(t *testing.T) {
	e := newEngine(t, defaultOptions(t))
	snap := seed(t)

	r, err := e.Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.ID == "" || !r.ComputedAt.Equal(snap.ComputedAt) {
		t.Errorf("report header = %q at %v", r.ID, r.ComputedAt)
	}
	if r.Totals.Spending != snap.TotalSpending {
		t.Errorf("Totals.Spending = %v, want %v", r.Totals.Spending, snap.TotalSpending)
	}

	if len(r.Insights) == 0 {
		t.Fatal("expected insights from the seed snapshot")
	}
	for i := range r.Insights {
		if err := r.Insights[i].Validate(); err != nil {
			t.Errorf("insight %d invalid: %v", i, err)
		}
	}
	if r.Summary.Total != len(r.Insights) {
		t.Errorf("Summary.Total = %d, want %d", r.Summary.Total, len(r.Insights))
	}

	for _, name := range outlier.Populations {
		entries, ok := r.Outliers[name]
		if !ok || entries == nil {
			t.Errorf("population %s missing from report", name)
		}
		for i := range entries {
			if err := entries[i].Validate(); err != nil {
				t.Errorf("%s[%d] invalid: %v", name, i, err)
			}
			if i > 0 && entries[i].Score.ZScore > entries[i-1].Score.ZScore {
				t.Errorf("%s not sorted by z-score", name)
			}
		}
	}
	providers := r.Entries(outlier.PopulationProviderSpending, false)
	if len(providers) == 0 || providers[0].ID != "1417262056" {
		t.Fatalf("provider outliers = %+v, want the top spender first", providers)
	}
	if providers[0].Level != 6 || providers[0].Curated {
		t.Errorf("top provider level %d curated %v, want computed level 6", providers[0].Level, providers[0].Curated)
	}

	curated := r.Entries(outlier.PopulationProviderSpending, true)
	if len(curated) != 8 || !curated[0].Curated {
		t.Errorf("curated providers = %d, want 8 curated entries", len(curated))
	}
	if r.CuratedMetadata == nil || r.CuratedMetadata.TotalProviders != 420893 {
		t.Errorf("curated metadata = %+v", r.CuratedMetadata)
	}
	if got := r.Entries("unknown", false); got == nil || len(got) != 0 {
		t.Errorf("Entries(unknown) = %v, want empty", got)
	}

	if r.Federal.Summary.TotalStates != 51 || r.Federal.Summary.TotalDistricts != 436 {
		t.Errorf("federal summary = %+v", r.Federal.Summary)
	}
}

func TestRunDeterministic(t *testing.T) {
	e := newEngine(t, defaultOptions(t))

	first, err := e.Run(context.Background(), seed(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Run(context.Background(), seed(t))
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if diff := cmp.Diff(string(a), string(b)); diff != "" {
		t.Errorf("report JSON differs between identical runs (-first +second):\n%s", diff)
	}
}

func TestReportIDDependsOnInputs(t *testing.T) {
	opts := defaultOptions(t)
	e := newEngine(t, opts)
	base, err := e.Run(context.Background(), seed(t))
	if err != nil {
		t.Fatal(err)
	}

	changed := seed(t)
	changed.TotalSpending++
	r, err := e.Run(context.Background(), changed)
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == base.ID {
		t.Error("different snapshots produced the same report ID")
	}

	opts.Outlier.Threshold = 4
	opts.Outlier.Tiers = []outlier.Tier{{Min: 4, Label: "high", Severity: models.SeverityHigh}}
	strict := newEngine(t, opts)
	r, err = strict.Run(context.Background(), seed(t))
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == base.ID {
		t.Error("a different outlier policy produced the same report ID")
	}

	opts = defaultOptions(t)
	opts.Derive.ValidStateCodes = []string{"CA"}
	r, err = newEngine(t, opts).Run(context.Background(), seed(t))
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == base.ID {
		t.Error("different chart shaping produced the same report ID")
	}

	opts = defaultOptions(t)
	opts.Catalog = nil
	r, err = newEngine(t, opts).Run(context.Background(), seed(t))
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == base.ID {
		t.Error("dropping the curated catalog kept the same report ID")
	}
}

func TestRefreshAfterConfigChangeReplacesRestoredReport(t *testing.T) {
	ctx := context.Background()
	reports := &fakeReports{}
	store := aggregates.NewFileStore("")

	before := defaultOptions(t)
	before.Store = store
	before.Reports = reports
	old, err := newEngine(t, before).Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	reports.latest = old

	after := defaultOptions(t)
	after.Derive.ValidStateCodes = []string{"CA"}
	after.Catalog = nil
	after.Store = store
	after.Reports = reports
	e := newEngine(t, after)
	if err := e.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	cur := e.Current()
	if cur.ID == old.ID {
		t.Fatal("refresh kept the report computed under the old configuration")
	}
	if len(cur.Charts.States) != 1 || cur.Charts.States[0].State != "CA" {
		t.Errorf("states = %+v, want only CA", cur.Charts.States)
	}
	if len(cur.Curated) != 0 {
		t.Errorf("curated populations = %d, want 0", len(cur.Curated))
	}
}

func TestRunRejectsInvalidSnapshot(t *testing.T) {
	e := newEngine(t, defaultOptions(t))
	snap := seed(t)
	snap.Yearly[0].Spending = -1

	_, err := e.Run(context.Background(), snap)
	var verr *models.ValidationError
	if !errors.As(err, &verr) || verr.Slice != "yearly" {
		t.Errorf("Run() error = %v, want yearly validation error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, seed(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() with cancelled context error = %v", err)
	}
}

func TestRunEmptySnapshot(t *testing.T) {
	e := newEngine(t, defaultOptions(t))
	r, err := e.Run(context.Background(), &models.Snapshot{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.Insights == nil || len(r.Insights) != 0 {
		t.Errorf("insights from empty snapshot = %v, want empty", r.Insights)
	}
	for _, name := range outlier.Populations {
		if len(r.Outliers[name]) != 0 {
			t.Errorf("population %s has outliers in an empty snapshot", name)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	opts := defaultOptions(t)
	opts.Outlier.Threshold = 0
	if _, err := New(opts); err == nil {
		t.Error("expected error for zero threshold")
	}

	opts = defaultOptions(t)
	opts.Rules.TopBucketLabel = ""
	if _, err := New(opts); err == nil {
		t.Error("expected error for empty bucket label")
	}
}

type fakeReports struct {
	mu      sync.Mutex
	saved   []*Report
	rotated int
	latest  *Report
}

func (f *fakeReports) SaveReport(_ context.Context, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeReports) LatestReport(context.Context) (*Report, error) {
	if f.latest == nil {
		return nil, ErrNoReport
	}
	return f.latest, nil
}

func (f *fakeReports) RotateReports(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotated++
	return nil
}

type fakeNotifier struct {
	digests    int
	errors     int
	recoveries []int
}

func (f *fakeNotifier) SendDigest(context.Context, *Report) error { f.digests++; return nil }
func (f *fakeNotifier) SendError(context.Context, error) error    { f.errors++; return nil }
func (f *fakeNotifier) SendRecovery(_ context.Context, n int) error {
	f.recoveries = append(f.recoveries, n)
	return nil
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	reports := &fakeReports{}
	notifier := &fakeNotifier{}
	responses := cache.NewMemory(0)
	_ = responses.Set(ctx, "stale", []byte("x"))

	var failing bool
	snap := seed(t)
	opts := defaultOptions(t)
	opts.Store = aggregates.StoreFunc(func(context.Context) (*models.Snapshot, error) {
		if failing {
			return nil, errors.New("store down")
		}
		return snap, nil
	})
	opts.Reports = reports
	opts.Cache = responses
	opts.Notifier = notifier
	opts.Metrics = metrics.New()
	e := newEngine(t, opts)

	if e.Current() != nil {
		t.Fatal("Current() should be nil before the first refresh")
	}

	first, err := e.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if e.Current() != first {
		t.Error("Current() is not the refreshed report")
	}
	if len(reports.saved) != 1 || reports.rotated != 1 {
		t.Errorf("saved %d rotated %d, want 1/1", len(reports.saved), reports.rotated)
	}
	if responses.Len() != 0 {
		t.Error("cache not cleared by a new report")
	}
	if notifier.digests != 1 {
		t.Errorf("digests = %d, want 1", notifier.digests)
	}

	again, err := e.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again != first || len(reports.saved) != 1 || notifier.digests != 1 {
		t.Error("unchanged snapshot should keep the report without saving or notifying")
	}

	failing = true
	for i := 0; i < 2; i++ {
		if _, err := e.Refresh(ctx); err == nil {
			t.Fatal("expected refresh error")
		}
	}
	if e.Current() != first {
		t.Error("failed refresh replaced the current report")
	}
	if notifier.errors != 1 {
		t.Errorf("error notifications = %d, want 1 for consecutive failures", notifier.errors)
	}

	failing = false
	snap = seed(t)
	snap.TotalSpending++
	next, err := e.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next.ID == first.ID || e.Current() != next {
		t.Error("changed snapshot should produce a new current report")
	}
	if diff := cmp.Diff([]int{2}, notifier.recoveries); diff != "" {
		t.Errorf("recoveries mismatch (-want +got):\n%s", diff)
	}
	if notifier.digests != 2 {
		t.Errorf("digests = %d, want 2", notifier.digests)
	}
}

func TestRefreshWithoutStore(t *testing.T) {
	e := newEngine(t, defaultOptions(t))
	if _, err := e.Refresh(context.Background()); err == nil {
		t.Error("expected error without a store")
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	opts := defaultOptions(t)
	reports := &fakeReports{}
	opts.Reports = reports
	e := newEngine(t, opts)

	if err := e.Restore(ctx); err != nil || e.Current() != nil {
		t.Fatalf("Restore() with no history = %v, current %v", err, e.Current())
	}

	reports.latest = &Report{ID: "persisted"}
	if err := e.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Current() == nil || e.Current().ID != "persisted" {
		t.Errorf("Current() after Restore = %+v", e.Current())
	}
}

func TestReportHelpers(t *testing.T) {
	r := &Report{
		Insights: []models.Insight{
			{Title: "a", Category: models.CategoryTrend},
			{Title: "b", Category: models.CategoryAnomaly},
			{Title: "c", Category: models.CategoryTrend},
		},
		Outliers: map[string][]models.OutlierEntry{"p": {{ID: "1"}, {ID: "2"}}},
		Curated:  map[string][]models.OutlierEntry{"p": {{ID: "3"}}},
	}
	if got := r.OutlierCount(); got != 3 {
		t.Errorf("OutlierCount() = %d, want 3", got)
	}
	top := r.TopInsights(models.CategoryTrend, 1)
	if len(top) != 1 || top[0].Title != "a" {
		t.Errorf("TopInsights() = %+v", top)
	}
}

func TestScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	if _, err := NewScheduler(nil, "not a schedule", time.Second); err == nil {
		t.Error("expected error for an invalid schedule")
	}

	opts := defaultOptions(t)
	opts.Store = aggregates.NewFileStore("")
	e := newEngine(t, opts)

	s, err := NewScheduler(e, "@every 1s", 5*time.Second)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.Start()

	deadline := time.Now().Add(5 * time.Second)
	for e.Current() == nil && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if e.Current() == nil {
		t.Error("scheduler never refreshed the report")
	}
}
