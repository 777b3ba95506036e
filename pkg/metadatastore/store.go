package metadatastore

import (
	"errors"
	"time"

	"github.com/charterintel/charterintel/pkg/models"
)

// ErrRunNotFound is returned when no run matches an ID
var ErrRunNotFound = errors.New("prediction run not found")

// MetadataStore is the interface for prediction run persistence.
// It stores scored uploads only; trained models are never written.
type MetadataStore interface {
	// Run operations
	SaveRun(run *models.PredictionRun, annotatedCSV []byte) error
	GetRun(id string) (*models.PredictionRun, error)
	GetRunCSV(id string) ([]byte, error)
	ListRuns(limit int) ([]*models.PredictionRun, error)
	DeleteRunsBefore(cutoff time.Time) (int64, error)

	Ping() error
	Close() error
}
