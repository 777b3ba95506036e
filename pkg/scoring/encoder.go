package scoring

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/charterintel/charterintel/pkg/models"
)

// CategoryEncoder maps the category values seen at fit time to integer indices.
// Classes are sorted so the mapping does not depend on row order.
type CategoryEncoder struct {
	column  string
	classes []string
	index   map[string]int
}

// FitEncoder builds an encoder over the distinct values of one column
func FitEncoder(column string, values []string) *CategoryEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	return &CategoryEncoder{
		column:  column,
		classes: classes,
		index:   index,
	}
}

// Column returns the column this encoder was fitted on
func (e *CategoryEncoder) Column() string {
	return e.column
}

// Len returns the vocabulary size
func (e *CategoryEncoder) Len() int {
	return len(e.classes)
}

// Classes returns a copy of the fitted vocabulary in index order
func (e *CategoryEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Transform returns the index of a value, failing on values outside the vocabulary
func (e *CategoryEncoder) Transform(value string) (int, error) {
	i, ok := e.index[value]
	if !ok {
		return 0, &UnknownCategoryError{Column: e.column, Value: value}
	}
	return i, nil
}

// EncoderSet holds one encoder per categorical flight column
type EncoderSet struct {
	encoders []*CategoryEncoder
}

// FitEncoderSet fits an encoder for each of models.CategoryColumns
func FitEncoderSet(records []models.FlightRecord) *EncoderSet {
	set := &EncoderSet{encoders: make([]*CategoryEncoder, len(models.CategoryColumns))}
	values := make([]string, len(records))
	for j, column := range models.CategoryColumns {
		for i, r := range records {
			values[i] = r.Category(column)
		}
		set.encoders[j] = FitEncoder(column, values)
	}
	return set
}

// Len returns the number of encoders
func (s *EncoderSet) Len() int {
	return len(s.encoders)
}

// Encoder returns the encoder fitted on a column
func (s *EncoderSet) Encoder(column string) (*CategoryEncoder, bool) {
	for _, e := range s.encoders {
		if e.column == column {
			return e, true
		}
	}
	return nil, false
}

// Encode builds the rows x features matrix for a set of records
func (s *EncoderSet) Encode(records []models.FlightRecord) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	x := mat.NewDense(len(records), len(s.encoders), nil)
	for i, r := range records {
		for j, e := range s.encoders {
			v, err := e.Transform(r.Category(e.column))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			x.Set(i, j, float64(v))
		}
	}
	return x, nil
}
