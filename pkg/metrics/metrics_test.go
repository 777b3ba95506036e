package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.RecordUpload(OutcomeScored)
	m.RecordUpload(OutcomeScored)
	m.RecordUpload(OutcomeLabelDiversity)
	m.RecordScoring(4, 20*time.Millisecond)
	m.RecordPrune(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Uploads.WithLabelValues(OutcomeScored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(OutcomeLabelDiversity)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ScoredRows))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PruneDeleted))
}

func TestMetrics_Handler(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.RecordUpload(OutcomeScored)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `charterintel_uploads_total{outcome="scored"} 1`)
}

func TestNewMetrics_Independent(t *testing.T) {
	_, err := NewMetrics()
	require.NoError(t, err)
	_, err = NewMetrics()
	assert.NoError(t, err)
}
