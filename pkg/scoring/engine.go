// Package scoring trains and applies the empty-leg classifier.
//
// Train fits five category encoders and a random forest on a labelled flight
// table and returns them bundled in an Artifact. Predict only accepts that
// Artifact, so a forest is never applied with encoders from another fit.
package scoring

import (
	"context"
	"fmt"

	"github.com/charterintel/charterintel/pkg/models"
)

// TrainingSummary describes the data an Artifact was fitted on
type TrainingSummary struct {
	Rows              int                `json:"rows"`
	Positives         int                `json:"positives"`
	Negatives         int                `json:"negatives"`
	TrainingAccuracy  float64            `json:"training_accuracy"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// Artifact is an immutable encoder set and forest pair produced by Train
type Artifact struct {
	encoders *EncoderSet
	forest   *Forest
	config   ForestConfig
	summary  TrainingSummary
}

// Encoders returns the encoders the forest was trained with
func (a *Artifact) Encoders() *EncoderSet {
	return a.encoders
}

// Trees returns the ensemble size
func (a *Artifact) Trees() int {
	return a.forest.Trees()
}

// Config returns the hyperparameters used for training
func (a *Artifact) Config() ForestConfig {
	return a.config
}

// Summary returns a copy of the training summary
func (a *Artifact) Summary() TrainingSummary {
	s := a.summary
	s.FeatureImportance = make(map[string]float64, len(a.summary.FeatureImportance))
	for k, v := range a.summary.FeatureImportance {
		s.FeatureImportance[k] = v
	}
	return s
}

// Train fits the encoders and the forest on labelled flight records.
// A cancelled ctx stops training between trees.
func Train(ctx context.Context, records []models.FlightRecord, cfg ForestConfig) (*Artifact, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forest config: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoTrainingData
	}

	y := make([]float64, len(records))
	positives := 0
	for i, r := range records {
		if r.IsOneWay == nil {
			return nil, fmt.Errorf("row %d: %w", i+1, ErrMissingLabel)
		}
		if *r.IsOneWay {
			y[i] = 1
			positives++
		}
	}
	if positives == 0 || positives == len(records) {
		return nil, ErrInsufficientLabelDiversity
	}

	encoders := FitEncoderSet(records)
	x, err := encoders.Encode(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode training data: %w", err)
	}

	forest, err := fitForest(ctx, x, y, cfg)
	if err != nil {
		return nil, err
	}

	correct := 0
	for i, p := range forest.PredictProba(x) {
		if (p > 0.5) == (y[i] == 1) {
			correct++
		}
	}

	importance := make(map[string]float64, len(models.CategoryColumns))
	for j, v := range forest.FeatureImportance() {
		importance[models.CategoryColumns[j]] = v
	}

	return &Artifact{
		encoders: encoders,
		forest:   forest,
		config:   cfg,
		summary: TrainingSummary{
			Rows:              len(records),
			Positives:         positives,
			Negatives:         len(records) - positives,
			TrainingAccuracy:  float64(correct) / float64(len(records)),
			FeatureImportance: importance,
		},
	}, nil
}

// Predict returns the empty-leg probability of every record, in input order.
// Any category value unseen during training fails the whole call.
func Predict(records []models.FlightRecord, artifact *Artifact) ([]float64, error) {
	if artifact == nil {
		return nil, ErrNoArtifact
	}
	if len(records) == 0 {
		return []float64{}, nil
	}

	x, err := artifact.encoders.Encode(records)
	if err != nil {
		return nil, err
	}
	return artifact.forest.PredictProba(x), nil
}
