// Package runs scores uploaded flight schedules and keeps their results.
package runs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/charterintel/charterintel/pkg/flights"
	"github.com/charterintel/charterintel/pkg/insights"
	"github.com/charterintel/charterintel/pkg/metadatastore"
	"github.com/charterintel/charterintel/pkg/metrics"
	"github.com/charterintel/charterintel/pkg/models"
	"github.com/charterintel/charterintel/pkg/scoring"
)

// ErrLabelColumnMissing is returned for uploads without an is_one_way column
var ErrLabelColumnMissing = errors.New("your file must include a column called 'is_one_way' with 0 or 1 values for training")

// PreviewRows caps the number of scored rows returned with a result
const PreviewRows = 500

// Service trains a fresh classifier for every upload and stores the annotated table
type Service struct {
	store     metadatastore.MetadataStore
	metrics   *metrics.Metrics
	forest    scoring.ForestConfig
	threshold float64
	timeout   time.Duration // 0 disables the scoring deadline
	now       func() time.Time
}

// NewService creates a new run service
func NewService(store metadatastore.MetadataStore, m *metrics.Metrics, forest scoring.ForestConfig, threshold float64) *Service {
	return &Service{
		store:     store,
		metrics:   m,
		forest:    forest,
		threshold: threshold,
		now:       time.Now,
	}
}

// IsUserError reports whether err stems from the uploaded data rather than the service
func IsUserError(err error) bool {
	return errors.Is(err, ErrLabelColumnMissing) ||
		errors.Is(err, flights.ErrEmptyTable) ||
		errors.Is(err, flights.ErrMissingColumn) ||
		errors.Is(err, flights.ErrInvalidLabel) ||
		errors.Is(err, scoring.ErrNoTrainingData) ||
		errors.Is(err, scoring.ErrMissingLabel) ||
		errors.Is(err, scoring.ErrInsufficientLabelDiversity) ||
		errors.Is(err, scoring.ErrUnknownCategory)
}

// SetScoreTimeout bounds how long a single upload may train and score
func (s *Service) SetScoreTimeout(d time.Duration) {
	s.timeout = d
}

// Score parses an upload, trains on it, scores every row and persists the result
func (s *Service) Score(ctx context.Context, filename string, r io.Reader) (*models.PredictionResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	result, err := s.score(ctx, filename, r)
	s.recordOutcome(err)
	return result, err
}

func (s *Service) score(ctx context.Context, filename string, r io.Reader) (*models.PredictionResult, error) {
	table, err := flights.ReadTable(r)
	if err != nil {
		if errors.Is(err, flights.ErrEmptyTable) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to parse upload: %w", err)
	}
	if err := table.RequireColumns(models.CategoryColumns...); err != nil {
		return nil, err
	}
	if !table.HasColumn(models.ColumnIsOneWay) {
		return nil, ErrLabelColumnMissing
	}

	records, err := table.Records()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := s.now()
	artifact, err := scoring.Train(ctx, records, s.forest)
	if err != nil {
		return nil, err
	}
	probas, err := scoring.Predict(records, artifact)
	if err != nil {
		return nil, err
	}
	elapsed := s.now().Sub(start)

	annotated, err := table.WithProbabilities(probas)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := annotated.WriteCSV(&buf); err != nil {
		return nil, fmt.Errorf("failed to write annotated csv: %w", err)
	}

	// summary figures use the stored precision so they agree with Insights
	scored, err := annotated.Scored()
	if err != nil {
		return nil, err
	}
	stored := make([]float64, len(scored))
	for i, row := range scored {
		stored[i] = row.Probability
	}

	summary := artifact.Summary()
	run := &models.PredictionRun{
		ID:                uuid.New().String(),
		Filename:          filename,
		RowCount:          len(records),
		PositiveLabels:    summary.Positives,
		NegativeLabels:    summary.Negatives,
		TrainingAccuracy:  summary.TrainingAccuracy,
		MeanProbability:   stat.Mean(stored, nil),
		HighConfidence:    insights.HighConfidence(scored, s.threshold),
		FeatureImportance: summary.FeatureImportance,
		CreatedAt:         s.now().UTC(),
	}

	if err := s.store.SaveRun(run, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordScoring(len(records), elapsed)
	}
	log.Printf("Scored %d flight legs from %s (run %s, %d trees, %s)", run.RowCount, filename, run.ID, artifact.Trees(), elapsed)

	if len(scored) > PreviewRows {
		scored = scored[:PreviewRows]
	}

	return &models.PredictionResult{Run: run, Preview: scored}, nil
}

func (s *Service) recordOutcome(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.RecordUpload(metrics.OutcomeScored)
	case errors.Is(err, scoring.ErrInsufficientLabelDiversity):
		s.metrics.RecordUpload(metrics.OutcomeLabelDiversity)
	case errors.Is(err, scoring.ErrUnknownCategory):
		s.metrics.RecordUpload(metrics.OutcomeUnknownCategory)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordUpload(metrics.OutcomeCancelled)
	case IsUserError(err):
		s.metrics.RecordUpload(metrics.OutcomeRejected)
	default:
		s.metrics.RecordUpload(metrics.OutcomeError)
	}
}

// Get returns run metadata
func (s *Service) Get(id string) (*models.PredictionRun, error) {
	return s.store.GetRun(id)
}

// List returns the most recent runs
func (s *Service) List(limit int) ([]*models.PredictionRun, error) {
	return s.store.ListRuns(limit)
}

// Download returns the annotated CSV of a run
func (s *Service) Download(id string) ([]byte, error) {
	return s.store.GetRunCSV(id)
}

// Preview returns up to limit scored rows of a stored run
func (s *Service) Preview(id string, limit int) ([]models.ScoredFlight, error) {
	scored, err := s.loadScored(id)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Insights recomputes the high-confidence summary of a stored run
func (s *Service) Insights(id string, threshold float64, limit int) (*models.Insights, error) {
	scored, err := s.loadScored(id)
	if err != nil {
		return nil, err
	}

	result := insights.Compute(scored, threshold, limit)
	result.RunID = id
	return result, nil
}

func (s *Service) loadScored(id string) ([]models.ScoredFlight, error) {
	data, err := s.store.GetRunCSV(id)
	if err != nil {
		return nil, err
	}

	table, err := flights.ReadTable(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored run: %w", err)
	}
	scored, err := table.Scored()
	if err != nil {
		return nil, fmt.Errorf("failed to read stored scores: %w", err)
	}
	return scored, nil
}

// Threshold returns the configured high-confidence threshold
func (s *Service) Threshold() float64 {
	return s.threshold
}

// PruneExpired deletes runs older than retention
func (s *Service) PruneExpired(retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	deleted, err := s.store.DeleteRunsBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.RecordPrune(deleted)
	}
	if deleted > 0 {
		log.Printf("Pruned %d prediction runs older than %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}
