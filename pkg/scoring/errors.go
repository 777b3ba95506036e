package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTrainingData is returned when Train receives an empty table
	ErrNoTrainingData = errors.New("no training data provided")

	// ErrMissingLabel is returned when a training row has no is_one_way value
	ErrMissingLabel = errors.New("training row is missing the is_one_way label")

	// ErrInsufficientLabelDiversity is returned when is_one_way holds a single class
	ErrInsufficientLabelDiversity = errors.New("insufficient label diversity: training data must include both 0s and 1s in 'is_one_way' column")

	// ErrUnknownCategory is returned when inference data holds a value never seen in training
	ErrUnknownCategory = errors.New("unknown category")

	// ErrNoArtifact is returned when Predict is called without a trained artifact
	ErrNoArtifact = errors.New("no trained artifact provided")
)

// UnknownCategoryError names the column and value that failed to encode
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q in column %s", e.Value, e.Column)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrUnknownCategory
}
