package optimizer_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/alejandrodnm/portfolio-analysis/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPriceProvider struct {
	histories map[domain.AssetID]domain.PriceHistory
	err       error
	panicMsg  string
	calls     int
	requested []domain.AssetID
}

func (m *mockPriceProvider) FetchHistories(_ context.Context, assets []domain.AssetID) (map[domain.AssetID]domain.PriceHistory, error) {
	m.calls++
	m.requested = assets
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	return m.histories, m.err
}

// --- helpers ---

var start = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func history(id domain.AssetID, prices ...float64) domain.PriceHistory {
	h := domain.PriceHistory{Asset: id}
	for i, p := range prices {
		h.Points = append(h.Points, domain.PricePoint{Date: start.AddDate(0, 0, i), Close: p})
	}
	return h
}

// scenarioStats: X con media 0.001 y varianza 0.0004, Y con media 0.0005 y
// varianza 0.0001, covarianza 0.00005.
func scenarioStats(t *testing.T, meanX float64) *optimizer.Statistics {
	t.Helper()
	s, err := optimizer.NewStatistics(
		[]domain.AssetID{"X", "Y"},
		[]float64{meanX, 0.0005},
		[]float64{
			0.0004, 0.00005,
			0.00005, 0.0001,
		},
	)
	require.NoError(t, err)
	return s
}

// closedFormWeightX devuelve el peso de X en el portafolio tangente w ∝ Σ⁻¹μ.
func closedFormWeightX(muX, muY, varX, varY, cov float64) float64 {
	a := varY*muX - cov*muY
	b := varX*muY - cov*muX
	return a / (a + b)
}

func trendingHistories() map[domain.AssetID]domain.PriceHistory {
	return map[domain.AssetID]domain.PriceHistory{
		"AAA": history("AAA", 100, 101, 100.5, 102, 103, 102.5, 104, 105),
		"BBB": history("BBB", 50, 49.5, 50.2, 50.1, 50.8, 51, 50.7, 51.3),
		"CCC": history("CCC", 20, 20.4, 20.1, 20.6, 20.2, 20.9, 21.3, 21),
	}
}

// --- Sampler ---

func TestSampler_DrawsOnSimplex(t *testing.T) {
	s := optimizer.NewSampler(7)
	for n := 1; n <= 12; n++ {
		for i := 0; i < 500; i++ {
			w := s.Draw(n)
			require.Len(t, w, n)
			assert.InDelta(t, 1.0, w.Sum(), 1e-9)
			for _, v := range w {
				assert.Greater(t, v, 0.0)
			}
		}
	}
}

func TestSampler_SameSeedSameSequence(t *testing.T) {
	a := optimizer.NewSampler(42)
	b := optimizer.NewSampler(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Draw(4), b.Draw(4))
	}
}

func TestSampler_DifferentSeedsDiffer(t *testing.T) {
	a := optimizer.NewSampler(1).Draw(5)
	b := optimizer.NewSampler(2).Draw(5)
	assert.NotEqual(t, a, b)
}

func TestSampler_PanicsOnZeroAssets(t *testing.T) {
	assert.Panics(t, func() { optimizer.NewSampler(1).Draw(0) })
}

// --- Evaluator ---

func TestEvaluator_KnownMetrics(t *testing.T) {
	e := optimizer.NewEvaluator(scenarioStats(t, 0.001), 252)

	m, err := e.Evaluate(domain.WeightVector{0.5, 0.5})
	require.NoError(t, err)

	wantRet := 0.00075 * 252
	wantVol := math.Sqrt(0.00015 * 252)
	assert.InDelta(t, wantRet, m.AnnualReturn, 1e-12)
	assert.InDelta(t, wantVol, m.AnnualVolatility, 1e-12)
	assert.InDelta(t, wantRet/wantVol, m.Sharpe, 1e-12)
}

func TestEvaluator_ZeroVolatilityMeansZeroSharpe(t *testing.T) {
	s, err := optimizer.NewStatistics(
		[]domain.AssetID{"A", "B"},
		[]float64{0.002, 0.001},
		[]float64{0, 0, 0, 0},
	)
	require.NoError(t, err)
	e := optimizer.NewEvaluator(s, 252)

	for _, w := range []domain.WeightVector{{1, 0}, {0.3, 0.7}, {0.5, 0.5}} {
		m, err := e.Evaluate(w)
		require.NoError(t, err)
		assert.Equal(t, 0.0, m.AnnualVolatility)
		assert.Equal(t, 0.0, m.Sharpe)
		assert.Greater(t, m.AnnualReturn, 0.0)
	}
}

func TestEvaluator_NegativeQuadraticFormClamped(t *testing.T) {
	s, err := optimizer.NewStatistics(
		[]domain.AssetID{"A", "B"},
		[]float64{0.001, 0.001},
		[]float64{0, -1e-18, -1e-18, 0},
	)
	require.NoError(t, err)

	m, err := optimizer.NewEvaluator(s, 252).Evaluate(domain.WeightVector{0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.AnnualVolatility)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.False(t, math.IsNaN(m.AnnualVolatility))
}

func TestEvaluator_SingleAssetUsesStdDev(t *testing.T) {
	s, err := optimizer.NewStatistics([]domain.AssetID{"A"}, []float64{0.001}, []float64{0.0004})
	require.NoError(t, err)

	m, err := optimizer.NewEvaluator(s, 252).Evaluate(domain.WeightVector{1})
	require.NoError(t, err)
	assert.InDelta(t, 0.02*math.Sqrt(252), m.AnnualVolatility, 1e-12)
}

func TestEvaluator_DimensionMismatch(t *testing.T) {
	_, err := optimizer.NewEvaluator(scenarioStats(t, 0.001), 252).Evaluate(domain.WeightVector{1})
	assert.ErrorIs(t, err, optimizer.ErrComputation)
}

// --- Statistics ---

func TestNewStatistics_RejectsBadShapes(t *testing.T) {
	_, err := optimizer.NewStatistics([]domain.AssetID{"A", "B"}, []float64{0.1}, []float64{1, 0, 0, 1})
	assert.ErrorIs(t, err, optimizer.ErrComputation)

	_, err = optimizer.NewStatistics([]domain.AssetID{"A", "B"}, []float64{0.1, 0.1}, []float64{1, 0.2, 0.3, 1})
	assert.ErrorIs(t, err, optimizer.ErrComputation)

	_, err = optimizer.NewStatistics([]domain.AssetID{"A"}, []float64{0.1}, []float64{-1})
	assert.ErrorIs(t, err, optimizer.ErrComputation)
}

func TestBuildStatistics_AlignsAndDropsIncompletePeriods(t *testing.T) {
	for name, b := range map[string]domain.PriceHistory{
		"missing date": {Asset: "B", Points: []domain.PricePoint{
			{Date: start, Close: 50},
			{Date: start.AddDate(0, 0, 1), Close: 51},
			{Date: start.AddDate(0, 0, 3), Close: 52},
			{Date: start.AddDate(0, 0, 4), Close: 53},
		}},
		"NaN price":  history("B", 50, 51, math.NaN(), 52, 53),
		"zero price": history("B", 50, 51, 0, 52, 53),
	} {
		t.Run(name, func(t *testing.T) {
			histories := map[domain.AssetID]domain.PriceHistory{
				"A": history("A", 100, 102, 101, 103, 100),
				"B": b,
			}
			stats, err := optimizer.BuildStatistics([]domain.AssetID{"A", "B"}, histories)
			require.NoError(t, err)

			// Solo sobreviven los periodos 1 (día 2) y 4 (día 5).
			a := []float64{102.0/100 - 1, 100.0/103 - 1}
			bb := []float64{51.0/50 - 1, 53.0/52 - 1}
			ma, mb := (a[0]+a[1])/2, (bb[0]+bb[1])/2

			assert.Equal(t, 2, stats.Periods)
			assert.Equal(t, []domain.AssetID{"A", "B"}, stats.Assets)
			assert.InDelta(t, ma, stats.Mean.AtVec(0), 1e-15)
			assert.InDelta(t, mb, stats.Mean.AtVec(1), 1e-15)

			varA := (a[0]-ma)*(a[0]-ma) + (a[1]-ma)*(a[1]-ma)
			covAB := (a[0]-ma)*(bb[0]-mb) + (a[1]-ma)*(bb[1]-mb)
			assert.InDelta(t, varA, stats.Cov.At(0, 0), 1e-15)
			assert.InDelta(t, covAB, stats.Cov.At(0, 1), 1e-15)
			assert.Equal(t, stats.Cov.At(0, 1), stats.Cov.At(1, 0))
		})
	}
}

func TestBuildStatistics_DifferentLengths(t *testing.T) {
	histories := map[domain.AssetID]domain.PriceHistory{
		"A": history("A", 100, 101, 102, 103, 104, 105),
		"B": history("B", 10, 11, 12),
	}
	stats, err := optimizer.BuildStatistics([]domain.AssetID{"A", "B"}, histories)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Periods)
}

func TestBuildStatistics_DropsAssetsWithoutHistory(t *testing.T) {
	h := trendingHistories()
	stats, err := optimizer.BuildStatistics([]domain.AssetID{"AAA", "ZZZ", "CCC"}, h)
	require.NoError(t, err)
	assert.Equal(t, []domain.AssetID{"AAA", "CCC"}, stats.Assets)
	assert.Equal(t, 7, stats.Periods)
}

func TestBuildStatistics_NonFiniteReturns(t *testing.T) {
	histories := map[domain.AssetID]domain.PriceHistory{
		"A": history("A", 100, 102, 101, 103),
		"B": history("B", 1e-300, 1e300, 1e-300, 1e300),
	}
	_, err := optimizer.BuildStatistics([]domain.AssetID{"A", "B"}, histories)
	assert.ErrorIs(t, err, optimizer.ErrComputation)
}

func TestNewStatistics_RejectsNonFinite(t *testing.T) {
	ids := []domain.AssetID{"A", "B"}

	_, err := optimizer.NewStatistics(ids, []float64{math.NaN(), 0.1}, []float64{1, 0, 0, 1})
	assert.ErrorIs(t, err, optimizer.ErrComputation)

	_, err = optimizer.NewStatistics(ids, []float64{0.1, 0.1}, []float64{math.Inf(1), 0, 0, 1})
	assert.ErrorIs(t, err, optimizer.ErrComputation)

	_, err = optimizer.NewStatistics(ids, []float64{0.1, 0.1}, []float64{1, math.NaN(), math.NaN(), 1})
	assert.ErrorIs(t, err, optimizer.ErrComputation)
}

func TestBuildStatistics_Empty(t *testing.T) {
	_, err := optimizer.BuildStatistics([]domain.AssetID{"A", "B"}, nil)
	assert.ErrorIs(t, err, optimizer.ErrDataUnavailable)
}

func TestBuildStatistics_UnorderedHistory(t *testing.T) {
	bad := domain.PriceHistory{Asset: "A", Points: []domain.PricePoint{
		{Date: start.AddDate(0, 0, 1), Close: 1},
		{Date: start, Close: 1},
	}}
	_, err := optimizer.BuildStatistics([]domain.AssetID{"A"}, map[domain.AssetID]domain.PriceHistory{"A": bad})
	assert.ErrorIs(t, err, optimizer.ErrComputation)
}

// --- Search ---

func TestSearch_ScenarioA_MatchesClosedForm(t *testing.T) {
	cases := []struct {
		name  string
		meanX float64
	}{
		{"given moments favour Y", 0.001},
		{"higher X mean favours X", 0.002},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := scenarioStats(t, tc.meanX)
			cfg := optimizer.Config{Trials: 5000, AnnualizationFactor: 252}

			res, err := optimizer.Search(stats, cfg, optimizer.NewSampler(2024))
			require.NoError(t, err)
			require.True(t, res.HasAllocation())

			want := closedFormWeightX(tc.meanX, 0.0005, 0.0004, 0.0001, 0.00005)
			assert.InDelta(t, want, res.Best.Weights[0], 0.02)

			wantSharpe, err := optimizer.NewEvaluator(stats, 252).Evaluate(domain.WeightVector{want, 1 - want})
			require.NoError(t, err)
			assert.LessOrEqual(t, res.Best.Metrics.Sharpe, wantSharpe.Sharpe+1e-12)
			assert.InDelta(t, wantSharpe.Sharpe, res.Best.Metrics.Sharpe, 1e-3)

			if want > 0.5 {
				assert.Equal(t, domain.AssetID("X"), res.Allocation[0].Asset)
			} else {
				assert.Equal(t, domain.AssetID("Y"), res.Allocation[0].Asset)
			}
		})
	}
}

func TestSearch_RunsFullBudgetAndBestIsNonDecreasing(t *testing.T) {
	stats, err := optimizer.BuildStatistics([]domain.AssetID{"AAA", "BBB", "CCC"}, trendingHistories())
	require.NoError(t, err)

	cfg := optimizer.Config{Trials: 750, AnnualizationFactor: 252, RetainTrials: true}
	res, err := optimizer.Search(stats, cfg, optimizer.NewSampler(99))
	require.NoError(t, err)

	require.Len(t, res.Trials, 750)
	assert.Equal(t, 750, res.TrialsRun)

	running := math.Inf(-1)
	bestIdx := -1
	for i, tr := range res.Trials {
		assert.Equal(t, i, tr.Index)
		if tr.Metrics.Sharpe > running {
			running = tr.Metrics.Sharpe
			bestIdx = i
		}
	}
	assert.Equal(t, bestIdx, res.Best.Index)
	assert.Equal(t, running, res.Best.Metrics.Sharpe)
}

func TestSearch_TrialsNotRetainedByDefault(t *testing.T) {
	res, err := optimizer.Search(scenarioStats(t, 0.001), optimizer.DefaultConfig(), optimizer.NewSampler(1))
	require.NoError(t, err)
	assert.Nil(t, res.Trials)
	assert.Equal(t, 1000, res.TrialsRun)
}

func TestSearch_AllocationSortedDescending(t *testing.T) {
	stats, err := optimizer.BuildStatistics([]domain.AssetID{"AAA", "BBB", "CCC"}, trendingHistories())
	require.NoError(t, err)

	res, err := optimizer.Search(stats, optimizer.DefaultConfig(), optimizer.NewSampler(5))
	require.NoError(t, err)
	require.Len(t, res.Allocation, 3)

	var sum float64
	for i, e := range res.Allocation {
		sum += e.Weight
		if i > 0 {
			assert.GreaterOrEqual(t, res.Allocation[i-1].Weight, e.Weight)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRankAllocation_StableOnTies(t *testing.T) {
	got := optimizer.RankAllocation(
		[]domain.AssetID{"A", "B", "C"},
		domain.WeightVector{0.25, 0.5, 0.25},
	)
	assert.Equal(t, []domain.AllocationEntry{
		{Asset: "B", Weight: 0.5},
		{Asset: "A", Weight: 0.25},
		{Asset: "C", Weight: 0.25},
	}, got)
}

// --- Driver ---

func TestDriver_ScenarioB_SingleObservation(t *testing.T) {
	prices := &mockPriceProvider{histories: map[domain.AssetID]domain.PriceHistory{
		"A": history("A", 100),
		"B": history("B", 50, 51, 52),
	}}
	d := optimizer.NewDriver(optimizer.Config{Trials: 100, Seed: 1}, prices)

	res := d.Optimize(context.Background(), []domain.AssetID{"A", "B"})
	assert.Equal(t, domain.StatusDataUnavailable, res.Status)
	assert.Equal(t, 0, res.TrialsRun)
	assert.Nil(t, res.Best)
	assert.Empty(t, res.Allocation)
	assert.NotEmpty(t, res.Reason)
}

func TestDriver_ScenarioC_SingleHolding(t *testing.T) {
	prices := &mockPriceProvider{}
	d := optimizer.NewDriver(optimizer.DefaultConfig(), prices)

	res := d.Optimize(context.Background(), []domain.AssetID{"AAPL"})
	assert.Equal(t, domain.StatusNotApplicable, res.Status)
	assert.Equal(t, 0, res.TrialsRun)
	assert.False(t, res.HasAllocation())
	assert.Equal(t, 0, prices.calls, "no fetch for a single holding")

	res = d.Optimize(context.Background(), nil)
	assert.Equal(t, domain.StatusNotApplicable, res.Status)
}

func TestDriver_ScenarioD_ConstantPricesPickFirstTrial(t *testing.T) {
	prices := &mockPriceProvider{histories: map[domain.AssetID]domain.PriceHistory{
		"A": history("A", 10, 10, 10, 10, 10),
		"B": history("B", 20, 20, 20, 20, 20),
	}}
	const seed = 77
	d := optimizer.NewDriver(optimizer.Config{Trials: 200, Seed: seed, RetainTrials: true}, prices)

	res := d.Optimize(context.Background(), []domain.AssetID{"A", "B"})
	require.Equal(t, domain.StatusOptimized, res.Status)
	for _, tr := range res.Trials {
		assert.Equal(t, 0.0, tr.Metrics.Sharpe)
		assert.Equal(t, 0.0, tr.Metrics.AnnualVolatility)
	}
	assert.Equal(t, 0, res.Best.Index)
	assert.Equal(t, optimizer.NewSampler(seed).Draw(2), res.Best.Weights)
}

func TestDriver_Deterministic(t *testing.T) {
	run := func() domain.Optimization {
		prices := &mockPriceProvider{histories: trendingHistories()}
		d := optimizer.NewDriver(optimizer.Config{Trials: 1000, AnnualizationFactor: 252, Seed: 12345}, prices)
		return d.Optimize(context.Background(), []domain.AssetID{"AAA", "BBB", "CCC"})
	}
	a, b := run(), run()
	require.True(t, a.HasAllocation())
	assert.Equal(t, *a.Best, *b.Best)
	assert.Equal(t, a.Allocation, b.Allocation)
	assert.Equal(t, uint64(12345), a.Seed)
}

func TestDriver_TimeSeedWhenZero(t *testing.T) {
	prices := &mockPriceProvider{histories: trendingHistories()}
	d := optimizer.NewDriver(optimizer.Config{Trials: 10}, prices)
	res := d.Optimize(context.Background(), []domain.AssetID{"AAA", "BBB"})
	require.True(t, res.HasAllocation())
	assert.NotZero(t, res.Seed)
}

func TestDriver_EmptyFetch(t *testing.T) {
	d := optimizer.NewDriver(optimizer.DefaultConfig(), &mockPriceProvider{histories: map[domain.AssetID]domain.PriceHistory{}})
	res := d.Optimize(context.Background(), []domain.AssetID{"A", "B"})
	assert.Equal(t, domain.StatusDataUnavailable, res.Status)
}

func TestDriver_FetchError(t *testing.T) {
	d := optimizer.NewDriver(optimizer.DefaultConfig(), &mockPriceProvider{err: errors.New("network down")})
	res := d.Optimize(context.Background(), []domain.AssetID{"A", "B"})
	assert.Equal(t, domain.StatusDataUnavailable, res.Status)
	assert.Contains(t, res.Reason, "network down")
}

func TestDriver_OnlyOneAssetWithHistory(t *testing.T) {
	h := trendingHistories()
	d := optimizer.NewDriver(optimizer.DefaultConfig(), &mockPriceProvider{
		histories: map[domain.AssetID]domain.PriceHistory{"AAA": h["AAA"]},
	})
	res := d.Optimize(context.Background(), []domain.AssetID{"AAA", "BBB"})
	assert.Equal(t, domain.StatusNotApplicable, res.Status)
	assert.Equal(t, 0, res.TrialsRun)
}

func TestDriver_DuplicateAssetsNotApplicable(t *testing.T) {
	prices := &mockPriceProvider{histories: trendingHistories()}
	d := optimizer.NewDriver(optimizer.Config{Trials: 50, Seed: 1}, prices)

	res := d.Optimize(context.Background(), []domain.AssetID{"AAA", "AAA"})
	assert.Equal(t, domain.StatusNotApplicable, res.Status)
	assert.Equal(t, 0, res.TrialsRun)
	assert.Nil(t, res.Best)
	assert.Equal(t, 0, prices.calls)
}

func TestDriver_DuplicateAssetsCollapsed(t *testing.T) {
	prices := &mockPriceProvider{histories: trendingHistories()}
	d := optimizer.NewDriver(optimizer.Config{Trials: 50, Seed: 1}, prices)

	res := d.Optimize(context.Background(), []domain.AssetID{"AAA", "BBB", "AAA"})
	require.Equal(t, domain.StatusOptimized, res.Status)
	assert.Equal(t, []domain.AssetID{"AAA", "BBB"}, prices.requested)
	assert.Equal(t, []domain.AssetID{"AAA", "BBB"}, res.Assets)
	assert.Len(t, res.Best.Weights, 2)
}

func TestDriver_NonFiniteStatisticsFail(t *testing.T) {
	prices := &mockPriceProvider{histories: map[domain.AssetID]domain.PriceHistory{
		"A": history("A", 100, 102, 101, 103),
		"B": history("B", 1e-300, 1e300, 1e-300, 1e300),
	}}
	d := optimizer.NewDriver(optimizer.Config{Trials: 50, Seed: 1}, prices)

	res := d.Optimize(context.Background(), []domain.AssetID{"A", "B"})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, 0, res.TrialsRun)
	assert.Nil(t, res.Best)
	assert.Contains(t, res.Reason, "non-finite")
}

func TestDriver_RecoversPanic(t *testing.T) {
	d := optimizer.NewDriver(optimizer.DefaultConfig(), &mockPriceProvider{panicMsg: "boom"})

	var res domain.Optimization
	require.NotPanics(t, func() {
		res = d.Optimize(context.Background(), []domain.AssetID{"A", "B"})
	})
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "boom")
}

func TestDriver_AppliesDefaults(t *testing.T) {
	d := optimizer.NewDriver(optimizer.Config{Seed: 3}, &mockPriceProvider{histories: trendingHistories()})
	res := d.Optimize(context.Background(), []domain.AssetID{"AAA", "BBB", "CCC"})
	require.True(t, res.HasAllocation())
	assert.Equal(t, 1000, res.TrialsRun)
}
