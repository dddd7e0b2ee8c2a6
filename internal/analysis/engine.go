// Package analysis composes the aggregate store, the outlier classifier, the
// insight synthesizer and the federal analysis into one report.
//
// Run is a pure computation over a snapshot. Refresh adds the side effects
// around it: loading the snapshot, persisting the report, invalidating cached
// responses and sending a digest when the report changed. The current report
// is swapped atomically so readers never block on a refresh.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openmedicaid/claimlens/internal/aggregates"
	"github.com/openmedicaid/claimlens/internal/federal"
	"github.com/openmedicaid/claimlens/internal/insight"
	"github.com/openmedicaid/claimlens/internal/logger"
	"github.com/openmedicaid/claimlens/internal/metrics"
	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/outlier"
)

// reportNamespace seeds the name-based report IDs.
var reportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://openmedicaid.org/claimlens/report"))

// ErrNoReport is returned when no report has been computed yet.
var ErrNoReport = errors.New("no report available")

// ReportStore persists computed reports.
type ReportStore interface {
	SaveReport(ctx context.Context, r *Report) error
	LatestReport(ctx context.Context) (*Report, error)
	RotateReports(ctx context.Context) error
}

// Invalidator drops cached responses.
type Invalidator interface {
	Clear(ctx context.Context) error
}

// Notifier announces new reports and refresh failures.
type Notifier interface {
	SendDigest(ctx context.Context, r *Report) error
	SendError(ctx context.Context, err error) error
	SendRecovery(ctx context.Context, failures int) error
}

// Options wires an Engine. Only Outlier, Rules and Derive are required for
// Run; Refresh also needs Store.
type Options struct {
	Outlier outlier.Config
	Rules   insight.RuleConfig
	Derive  aggregates.DeriveOptions
	Catalog *outlier.Catalog

	Store    aggregates.Store
	Reports  ReportStore
	Cache    Invalidator
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// Engine computes reports and holds the current one.
type Engine struct {
	opts       Options
	classifier *outlier.Classifier
	synth      *insight.Synthesizer

	mu       sync.Mutex // serializes Refresh
	failures int
	current  atomic.Pointer[Report]
}

// New validates the configuration and builds an engine.
func New(opts Options) (*Engine, error) {
	if err := opts.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid insight rules: %w", err)
	}
	classifier, err := outlier.New(opts.Outlier)
	if err != nil {
		return nil, err
	}
	// Concentration buckets are labeled the way the rules look them up.
	opts.Derive.TopBucketLabel = opts.Rules.TopBucketLabel
	opts.Derive.OtherBucketLabel = opts.Rules.OtherBucketLabel

	m := opts.Metrics
	synth := insight.New(opts.Rules,
		insight.WithSkipHook(m.RuleSkipped),
		insight.WithEmitHook(func(_ string, in models.Insight) { m.InsightEmitted(string(in.Category)) }),
	)
	return &Engine{opts: opts, classifier: classifier, synth: synth}, nil
}

// Run computes a report from snap. The same snapshot and configuration always
// produce the same report.
func (e *Engine) Run(ctx context.Context, snap *models.Snapshot) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	id, err := e.reportID(snap)
	if err != nil {
		return nil, err
	}

	cs := aggregates.Derive(snap, e.opts.Derive)
	fed := federal.Analyze(snap.FMAP, cs.States, snap.DistrictCounts)

	run := outlier.NewRun(e.classifier,
		outlier.ProviderSpending(snap.TopProviders, snap.Population(outlier.PopulationProviderSpending)),
		outlier.HCPCSSpending(snap.HCPCSBySpending, snap.Population(outlier.PopulationHCPCSSpending)),
		outlier.CostPerClaim(snap.HCPCSByCostPerClaim, snap.Population(outlier.PopulationCostPerClaim)),
		outlier.ClaimsPerBeneficiary(snap.HCPCSByClaimsPerBeneficiary, snap.Population(outlier.PopulationClaimsPerBeneficiary)),
		outlier.DistrictSpending(fed.Districts),
	)

	report := &Report{
		ID:          id,
		ComputedAt:  snap.ComputedAt.UTC(),
		Source:      snap.Source,
		Methodology: snap.Methodology,
		Totals: Totals{
			Spending:   snap.TotalSpending,
			Providers:  snap.TotalProviders,
			HCPCSCodes: snap.TotalHCPCSCodes,
		},
		Charts:   cs,
		Outliers: make(map[string][]models.OutlierEntry, len(outlier.Populations)),
		Curated:  map[string][]models.OutlierEntry{},
		Federal:  fed,
	}
	for _, name := range outlier.Populations {
		report.Outliers[name] = run.Outliers(name)
	}
	if c := e.opts.Catalog; c != nil {
		for _, name := range c.Names() {
			report.Curated[name] = c.Outliers(name)
		}
		meta := c.Metadata
		report.CuratedMetadata = &meta
	}

	report.Insights = e.synth.Generate(cs)
	report.Summary = insight.Summarize(report.Insights)

	logger.Debug("Report %s computed: %d insights, %d outliers", report.ID, len(report.Insights), report.OutlierCount())
	return report, nil
}

// reportID hashes the snapshot together with every policy applied to it, so
// a configuration change yields a new report for the same snapshot.
func (e *Engine) reportID(snap *models.Snapshot) (string, error) {
	payload, err := json.Marshal(struct {
		Snapshot *models.Snapshot         `json:"snapshot"`
		Outlier  outlier.Config           `json:"outlier"`
		Rules    insight.RuleConfig       `json:"rules"`
		Derive   aggregates.DeriveOptions `json:"derive"`
		Catalog  *outlier.Catalog         `json:"catalog"`
	}{snap, e.opts.Outlier, e.opts.Rules, e.opts.Derive, e.opts.Catalog})
	if err != nil {
		return "", fmt.Errorf("failed to hash snapshot: %w", err)
	}
	return uuid.NewSHA1(reportNamespace, payload).String(), nil
}

// Current returns the latest report, or nil before the first refresh.
func (e *Engine) Current() *Report {
	return e.current.Load()
}

// Restore loads the newest persisted report so the service can answer
// before its first refresh completes.
func (e *Engine) Restore(ctx context.Context) error {
	if e.opts.Reports == nil {
		return nil
	}
	r, err := e.opts.Reports.LatestReport(ctx)
	if errors.Is(err, ErrNoReport) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore report: %w", err)
	}
	e.current.CompareAndSwap(nil, r)
	logger.Info("Restored report %s computed at %s", r.ID, r.ComputedAt.Format(time.RFC3339))
	return nil
}

// Refresh loads a snapshot, computes its report and makes it current. A
// failed refresh keeps the previous report.
func (e *Engine) Refresh(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	report, err := e.refresh(ctx)
	elapsed := time.Since(start)
	if err != nil {
		e.opts.Metrics.RefreshDone(metrics.ResultError, elapsed)
		e.failures++
		logger.Error("Report refresh failed: %v", err)
		if e.failures == 1 && e.opts.Notifier != nil {
			if sendErr := e.opts.Notifier.SendError(ctx, err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return nil, err
	}
	e.opts.Metrics.RefreshDone(metrics.ResultSuccess, elapsed)
	if e.failures > 0 && e.opts.Notifier != nil {
		if sendErr := e.opts.Notifier.SendRecovery(ctx, e.failures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	e.failures = 0
	logger.Info("Report refresh completed in %v", elapsed)
	return report, nil
}

func (e *Engine) refresh(ctx context.Context) (*Report, error) {
	if e.opts.Store == nil {
		return nil, errors.New("no aggregate store configured")
	}
	snap, err := e.opts.Store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	report, err := e.Run(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to compute report: %w", err)
	}

	prev := e.current.Load()
	changed := prev == nil || prev.ID != report.ID
	if !changed {
		logger.Debug("Snapshot unchanged, keeping report %s", prev.ID)
		return prev, nil
	}

	if e.opts.Reports != nil {
		if err := e.opts.Reports.SaveReport(ctx, report); err != nil {
			logger.Warn("Failed to save report %s: %v", report.ID, err)
		} else if err := e.opts.Reports.RotateReports(ctx); err != nil {
			logger.Warn("Failed to rotate reports: %v", err)
		}
	}
	if e.opts.Cache != nil {
		if err := e.opts.Cache.Clear(ctx); err != nil {
			logger.Warn("Failed to clear response cache: %v", err)
		}
	}

	e.current.Store(report)
	e.recordOutliers(report)
	logger.Info("Report %s is current: %d insights, %d outliers", report.ID, len(report.Insights), report.OutlierCount())

	if e.opts.Notifier != nil {
		if err := e.opts.Notifier.SendDigest(ctx, report); err != nil {
			logger.Error("Failed to send report digest: %v", err)
		} else {
			logger.Info("Sent digest for report %s", report.ID)
		}
	}
	return report, nil
}

func (e *Engine) recordOutliers(r *Report) {
	for name, entries := range r.Outliers {
		e.opts.Metrics.SetOutliers(name, "computed", len(entries))
	}
	for name, entries := range r.Curated {
		e.opts.Metrics.SetOutliers(name, "curated", len(entries))
	}
}
