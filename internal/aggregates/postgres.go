package aggregates

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/openmedicaid/claimlens/internal/logger"
	"github.com/openmedicaid/claimlens/internal/models"
)

// Schema creates the aggregate tables read by PostgresStore.
//
//go:embed schema.sql
var Schema string

// Ranking names used in the agg_hcpcs.ranking column.
const (
	RankingSpending             = "spending"
	RankingClaims               = "claims"
	RankingCostPerClaim         = "cost_per_claim"
	RankingCostPerBeneficiary   = "cost_per_beneficiary"
	RankingClaimsPerBeneficiary = "claims_per_beneficiary"
)

// PostgresStore loads snapshots from precomputed aggregate tables.
type PostgresStore struct {
	pool      *pgxpool.Pool
	slowQuery time.Duration
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32, slowQuery time.Duration) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostgresStore{pool: pool, slowQuery: slowQuery}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Snapshot loads every aggregate table concurrently and validates the result.
func (s *PostgresStore) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.loadMetadata(gctx, snap) })
	g.Go(func() (err error) {
		snap.Yearly, err = collect(gctx, s, "agg_yearly",
			`SELECT year, spending, claims, beneficiaries FROM agg_yearly ORDER BY year`,
			func(row pgx.CollectableRow) (r models.YearlyRecord, err error) {
				err = row.Scan(&r.Year, &r.Spending, &r.Claims, &r.Beneficiaries)
				return r, err
			})
		return err
	})
	g.Go(func() (err error) {
		snap.Monthly, err = collect(gctx, s, "agg_monthly",
			`SELECT month, spending, claims, beneficiaries FROM agg_monthly ORDER BY month`,
			func(row pgx.CollectableRow) (r models.MonthlyRecord, err error) {
				err = row.Scan(&r.Month, &r.Spending, &r.Claims, &r.Beneficiaries)
				return r, err
			})
		return err
	})
	g.Go(func() (err error) {
		snap.TopProviders, err = collect(gctx, s, "agg_top_providers",
			`SELECT npi, name, specialty, state, spending, claims, beneficiaries FROM agg_top_providers ORDER BY rank`,
			func(row pgx.CollectableRow) (r models.ProviderRecord, err error) {
				err = row.Scan(&r.NPI, &r.Name, &r.Specialty, &r.State, &r.Spending, &r.Claims, &r.Beneficiaries)
				return r, err
			})
		return err
	})
	g.Go(func() (err error) {
		snap.ProviderTiers, err = collect(gctx, s, "agg_provider_tiers",
			`SELECT tier, count, spending FROM agg_provider_tiers ORDER BY position`,
			func(row pgx.CollectableRow) (r models.ProviderTier, err error) {
				err = row.Scan(&r.Tier, &r.Count, &r.Spending)
				return r, err
			})
		return err
	})

	rankings := []struct {
		name string
		dst  *[]models.HCPCSRecord
	}{
		{RankingSpending, &snap.HCPCSBySpending},
		{RankingClaims, &snap.HCPCSByClaims},
		{RankingCostPerClaim, &snap.HCPCSByCostPerClaim},
		{RankingCostPerBeneficiary, &snap.HCPCSByCostPerBeneficiary},
		{RankingClaimsPerBeneficiary, &snap.HCPCSByClaimsPerBeneficiary},
	}
	for _, rk := range rankings {
		g.Go(func() (err error) {
			*rk.dst, err = collect(gctx, s, "agg_hcpcs:"+rk.name,
				`SELECT code, definition, category, spending, claims, beneficiaries, providers, ratio
				 FROM agg_hcpcs WHERE ranking = $1 ORDER BY rank`,
				func(row pgx.CollectableRow) (r models.HCPCSRecord, err error) {
					err = row.Scan(&r.Code, &r.Definition, &r.Category, &r.Spending, &r.Claims, &r.Beneficiaries, &r.Providers, &r.Ratio)
					return r, err
				}, rk.name)
			return err
		})
	}

	g.Go(func() (err error) {
		snap.States, err = collect(gctx, s, "agg_states",
			`SELECT state, name, spending, claims, providers, population, per_capita FROM agg_states ORDER BY spending DESC, state`,
			func(row pgx.CollectableRow) (r models.StateRecord, err error) {
				err = row.Scan(&r.State, &r.Name, &r.Spending, &r.Claims, &r.Providers, &r.Population, &r.PerCapita)
				return r, err
			})
		return err
	})
	g.Go(func() (err error) {
		snap.Cities, err = collect(gctx, s, "agg_cities",
			`SELECT city, state, spending, claims, providers FROM agg_cities ORDER BY rank`,
			func(row pgx.CollectableRow) (r models.CityRecord, err error) {
				err = row.Scan(&r.City, &r.State, &r.Spending, &r.Claims, &r.Providers)
				return r, err
			})
		return err
	})
	g.Go(func() (err error) {
		snap.FMAP, err = collect(gctx, s, "agg_fmap",
			`SELECT state_code, state_name, fy2024, fy2023, fy2022, expansion FROM agg_fmap ORDER BY state_code`,
			func(row pgx.CollectableRow) (r models.FMAPRecord, err error) {
				err = row.Scan(&r.StateCode, &r.StateName, &r.FY2024, &r.FY2023, &r.FY2022, &r.Expansion)
				return r, err
			})
		return err
	})
	g.Go(func() (err error) {
		snap.Populations, err = collect(gctx, s, "agg_population_stats",
			`SELECT name, count, mean, std_dev FROM agg_population_stats ORDER BY name`,
			func(row pgx.CollectableRow) (r models.PopulationStats, err error) {
				err = row.Scan(&r.Name, &r.Count, &r.Mean, &r.StdDev)
				return r, err
			})
		return err
	})
	g.Go(func() error {
		type count struct {
			state string
			n     int
		}
		counts, err := collect(gctx, s, "agg_district_counts",
			`SELECT state_code, districts FROM agg_district_counts`,
			func(row pgx.CollectableRow) (c count, err error) {
				err = row.Scan(&c.state, &c.n)
				return c, err
			})
		if err != nil {
			return err
		}
		snap.DistrictCounts = make(map[string]int, len(counts))
		for _, c := range counts {
			snap.DistrictCounts[c.state] = c.n
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *PostgresStore) loadMetadata(ctx context.Context, snap *models.Snapshot) error {
	start := time.Now()
	err := s.pool.QueryRow(ctx,
		`SELECT computed_at, source, methodology, total_spending, total_providers, total_hcpcs_codes FROM agg_metadata WHERE id = 1`,
	).Scan(&snap.ComputedAt, &snap.Source, &snap.Methodology, &snap.TotalSpending, &snap.TotalProviders, &snap.TotalHCPCSCodes)
	s.logSlow("agg_metadata", start)
	if errors.Is(err, pgx.ErrNoRows) {
		logger.Warn("Aggregate metadata row missing; snapshot will carry no totals")
		return nil
	}
	if err != nil {
		return fmt.Errorf("query agg_metadata: %w", err)
	}
	snap.ComputedAt = snap.ComputedAt.UTC()
	return nil
}

func collect[T any](ctx context.Context, s *PostgresStore, name, sql string, scan pgx.RowToFunc[T], args ...any) ([]T, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	s.logSlow(name, start)
	return out, nil
}

func (s *PostgresStore) logSlow(name string, start time.Time) {
	elapsed := time.Since(start)
	if s.slowQuery > 0 && elapsed > s.slowQuery {
		logger.Warn("Slow aggregate query %s took %v", name, elapsed)
	} else {
		logger.Debug("Aggregate query %s took %v", name, elapsed)
	}
}
