package runs

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charterintel/charterintel/pkg/flights"
	"github.com/charterintel/charterintel/pkg/insights"
	"github.com/charterintel/charterintel/pkg/metadatastore"
	"github.com/charterintel/charterintel/pkg/metrics"
	"github.com/charterintel/charterintel/pkg/scoring"
)

const schedule = `origin,destination,aircraft_type,operator,aircraft_base,is_one_way
KTEB,KPBI,Citation,JetEdge,KTEB,1
KVNY,KLAS,Citation,JetEdge,KTEB,1
KBOS,KMIA,Lear,Solairus,KBOS,0
KDAL,KAUS,Lear,Solairus,KBOS,0
`

func newTestService(t *testing.T) (*Service, *metrics.Metrics) {
	t.Helper()
	store, err := metadatastore.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m, err := metrics.NewMetrics()
	require.NoError(t, err)

	return NewService(store, m, scoring.DefaultForestConfig(), insights.DefaultThreshold), m
}

func TestScore(t *testing.T) {
	svc, m := newTestService(t)

	result, err := svc.Score(context.Background(), "schedule.csv", strings.NewReader(schedule))
	require.NoError(t, err)

	assert.NotEmpty(t, result.Run.ID)
	assert.Equal(t, "schedule.csv", result.Run.Filename)
	assert.Equal(t, 4, result.Run.RowCount)
	assert.Equal(t, 2, result.Run.PositiveLabels)
	assert.Len(t, result.Run.FeatureImportance, 5)
	require.Len(t, result.Preview, 4)
	assert.Equal(t, "KTEB", result.Preview[0].Origin)
	assert.Greater(t, result.Preview[0].Probability, result.Preview[3].Probability)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(metrics.OutcomeScored)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ScoredRows))

	stored, err := svc.Get(result.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Run.ID, stored.ID)

	csv, err := svc.Download(result.Run.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasSuffix(lines[0], ",is_one_way,empty_leg_proba"))
}

func TestScore_UserErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		outcome string
	}{
		{
			name:    "no label column",
			input:   "origin,destination,aircraft_type,operator,aircraft_base\nKTEB,KPBI,Citation,JetEdge,KTEB\n",
			wantErr: ErrLabelColumnMissing,
			outcome: metrics.OutcomeRejected,
		},
		{
			name:    "missing category column",
			input:   "origin,destination,is_one_way\nKTEB,KPBI,1\n",
			wantErr: flights.ErrMissingColumn,
			outcome: metrics.OutcomeRejected,
		},
		{
			name:    "single class",
			input:   "origin,destination,aircraft_type,operator,aircraft_base,is_one_way\nKTEB,KPBI,Citation,JetEdge,KTEB,1\nKVNY,KLAS,Lear,JetEdge,KTEB,1\n",
			wantErr: scoring.ErrInsufficientLabelDiversity,
			outcome: metrics.OutcomeLabelDiversity,
		},
		{
			name:    "empty file",
			input:   "",
			wantErr: flights.ErrEmptyTable,
			outcome: metrics.OutcomeRejected,
		},
		{
			name:    "bad label",
			input:   "origin,destination,aircraft_type,operator,aircraft_base,is_one_way\nKTEB,KPBI,Citation,JetEdge,KTEB,yes please\n",
			wantErr: flights.ErrInvalidLabel,
			outcome: metrics.OutcomeRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(t)

			_, err := svc.Score(context.Background(), "bad.csv", strings.NewReader(tt.input))
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsUserError(err))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(tt.outcome)))

			runs, err := svc.List(10)
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestScore_CancelledContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Score(ctx, "schedule.csv", strings.NewReader(schedule))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsUserError(err))
}

func TestScore_TimeoutStopsTraining(t *testing.T) {
	svc, m := newTestService(t)
	// far more trees than can be grown before the deadline
	svc.forest.Trees = 1000000
	svc.SetScoreTimeout(5 * time.Millisecond)

	start := time.Now()
	_, err := svc.Score(context.Background(), "schedule.csv", strings.NewReader(schedule))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(metrics.OutcomeCancelled)))

	list, err := svc.List(10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScore_HighConfidenceMatchesStoredInsights(t *testing.T) {
	svc, _ := newTestService(t)
	// few trees give probabilities like 1/3 that do not survive 6-decimal storage exactly
	svc.forest.Trees = 3

	first, err := svc.Score(context.Background(), "schedule.csv", strings.NewReader(schedule))
	require.NoError(t, err)

	thresholds := []float64{0, 0.5, insights.DefaultThreshold}
	for _, row := range first.Preview {
		thresholds = append(thresholds, row.Probability)
	}

	for _, threshold := range thresholds {
		svc.threshold = threshold
		result, err := svc.Score(context.Background(), "schedule.csv", strings.NewReader(schedule))
		require.NoError(t, err)

		got, err := svc.Insights(result.Run.ID, threshold, insights.DefaultLimit)
		require.NoError(t, err)
		assert.Equal(t, got.HighConfidence, result.Run.HighConfidence, "threshold %v", threshold)
	}
}

func TestInsights(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Score(context.Background(), "schedule.csv", strings.NewReader(schedule))
	require.NoError(t, err)

	got, err := svc.Insights(result.Run.ID, -1, insights.DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, result.Run.ID, got.RunID)
	assert.Equal(t, 4, got.HighConfidence)
	assert.Len(t, got.TopRoutes, 4)

	_, err = svc.Insights("missing", insights.DefaultThreshold, insights.DefaultLimit)
	assert.ErrorIs(t, err, metadatastore.ErrRunNotFound)
}

func TestPruneExpired(t *testing.T) {
	svc, m := newTestService(t)

	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return past }
	_, err := svc.Score(context.Background(), "old.csv", strings.NewReader(schedule))
	require.NoError(t, err)

	svc.now = func() time.Time { return past.Add(72 * time.Hour) }
	recent, err := svc.Score(context.Background(), "new.csv", strings.NewReader(schedule))
	require.NoError(t, err)

	deleted, err := svc.PruneExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PruneDeleted))

	runs, err := svc.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recent.Run.ID, runs[0].ID)
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Score(context.Background(), "schedule.csv", strings.NewReader(schedule))
	require.NoError(t, err)

	preview, err := svc.Preview(result.Run.ID, 2)
	require.NoError(t, err)
	require.Len(t, preview, 2)
	assert.Equal(t, "KTEB", preview[0].Origin)
	assert.InDelta(t, result.Preview[0].Probability, preview[0].Probability, 1e-9)

	all, err := svc.Preview(result.Run.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
