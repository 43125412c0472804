package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/storage"
	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRun(startedAt time.Time, opt domain.Optimization) *domain.Run {
	return &domain.Run{
		StartedAt: startedAt,
		Source:    "/data/portfolio.xml",
		Snapshot: domain.Snapshot{
			Positions: []domain.Position{
				{Symbol: "AAPL", Category: domain.CategoryStock, MarketValue: decimal.NewFromInt(6000)},
				{Symbol: "MSFT", Category: domain.CategoryStock, MarketValue: decimal.NewFromInt(3000)},
			},
			Cash:     decimal.NewFromInt(1000),
			Currency: "USD",
		},
		Optimization: opt,
	}
}

func optimized() domain.Optimization {
	best := domain.Trial{
		Weights: domain.WeightVector{0.4, 0.6},
		Metrics: domain.PortfolioMetrics{AnnualReturn: 0.12, AnnualVolatility: 0.2, Sharpe: 0.6},
	}
	return domain.Optimization{
		Status:    domain.StatusOptimized,
		Seed:      1<<63 + 5,
		TrialsRun: 1000,
		Periods:   250,
		Best:      &best,
		Allocation: []domain.AllocationEntry{
			{Asset: "MSFT", Weight: 0.6},
			{Asset: "AAPL", Weight: 0.4},
		},
	}
}

func TestSQLiteStorage_SaveAndListRuns(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := makeRun(now.Add(-time.Hour), domain.Optimization{
		Status: domain.StatusNotApplicable,
		Reason: "need at least 2 assets",
	})
	second := makeRun(now, optimized())

	require.NoError(t, db.SaveRun(ctx, first))
	require.NoError(t, db.SaveRun(ctx, second))

	_, err = uuid.Parse(first.ID)
	assert.NoError(t, err, "SaveRun assigns a uuid")

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	latest := runs[0]
	assert.Equal(t, second.ID, latest.ID)
	assert.True(t, now.Equal(latest.StartedAt))
	assert.Equal(t, "/data/portfolio.xml", latest.Source)
	assert.InDelta(t, 10000, latest.TotalValue, 1e-9)
	assert.InDelta(t, 1000, latest.Cash, 1e-9)
	assert.Equal(t, domain.StatusOptimized, latest.Status)
	assert.Equal(t, 1000, latest.Trials)
	assert.InDelta(t, 0.6, latest.Sharpe, 1e-12)
	assert.InDelta(t, 0.12, latest.Return, 1e-12)
	assert.InDelta(t, 0.2, latest.Volatility, 1e-12)
	assert.Equal(t, []domain.AllocationEntry{
		{Asset: "MSFT", Weight: 0.6},
		{Asset: "AAPL", Weight: 0.4},
	}, latest.Allocation)

	older := runs[1]
	assert.Equal(t, domain.StatusNotApplicable, older.Status)
	assert.Equal(t, "need at least 2 assets", older.Reason)
	assert.Empty(t, older.Allocation)
	assert.Zero(t, older.Sharpe)
}

func TestSQLiteStorage_ListRuns_Limit(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveRun(ctx, makeRun(base.Add(time.Duration(i)*time.Minute), optimized())))
	}

	runs, err := db.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
	assert.True(t, runs[1].StartedAt.After(runs[2].StartedAt))

	all, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSQLiteStorage_ListRuns_Empty(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	run := makeRun(time.Now(), optimized())
	run.ID = "fixed"
	require.NoError(t, db.SaveRun(ctx, run))
	assert.Error(t, db.SaveRun(ctx, run))

	runs, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Allocation, 2, "failed save is rolled back")
}
