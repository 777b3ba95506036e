package models

import "time"

// PredictionRun records one scored upload
type PredictionRun struct {
	ID                string             `json:"id"`
	Filename          string             `json:"filename"`
	RowCount          int                `json:"row_count"`
	PositiveLabels    int                `json:"positive_labels"`
	NegativeLabels    int                `json:"negative_labels"`
	TrainingAccuracy  float64            `json:"training_accuracy"`
	MeanProbability   float64            `json:"mean_probability"`
	HighConfidence    int                `json:"high_confidence"` // rows above the high-confidence threshold
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// PredictionResult is returned after an upload has been scored
type PredictionResult struct {
	Run     *PredictionRun `json:"run"`
	Preview []ScoredFlight `json:"preview"`
}

// RouteCount is the number of high-confidence legs on a route
type RouteCount struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Count       int    `json:"count"`
}

// ValueCount is the number of high-confidence legs sharing a value
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Insights summarizes the high-confidence empty legs of a run
type Insights struct {
	RunID          string       `json:"run_id,omitempty"`
	Threshold      float64      `json:"threshold"`
	HighConfidence int          `json:"high_confidence"`
	TopRoutes      []RouteCount `json:"top_routes"`
	TopAircraft    []ValueCount `json:"top_aircraft"`
	TopOrigins     []ValueCount `json:"top_origins"`
}
