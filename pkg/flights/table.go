// Package flights reads uploaded flight schedules and writes them back out
// annotated with empty-leg probabilities.
package flights

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charterintel/charterintel/pkg/models"
)

var (
	// ErrEmptyTable is returned when an upload has no header row
	ErrEmptyTable = errors.New("uploaded file is empty")

	// ErrMissingColumn is returned when a required column is absent
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidLabel is returned when is_one_way holds something other than 0/1
	ErrInvalidLabel = errors.New("invalid is_one_way value")
)

// ProbabilityPrecision is the number of decimals written for empty_leg_proba
const ProbabilityPrecision = 6

// Table is an uploaded CSV kept as strings, with columns addressed by header name
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// ReadTable parses a CSV upload. The first row is the header.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &Table{
		header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.index[h]; dup {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		t.header[i] = h
		t.index[h] = i
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		t.rows = append(t.rows, row)
	}

	return t, nil
}

// Header returns a copy of the column names
func (t *Table) Header() []string {
	out := make([]string, len(t.header))
	copy(out, t.header)
	return out
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether the table carries a column
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// RequireColumns fails with ErrMissingColumn naming every absent column
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Value returns the cell at row i of a column exactly as uploaded.
// " Lear" and "Lear" are different categories.
func (t *Table) Value(i int, column string) string {
	j, ok := t.index[column]
	if !ok {
		return ""
	}
	return t.rows[i][j]
}

// Records converts the rows into flight records. The label column is optional.
func (t *Table) Records() ([]models.FlightRecord, error) {
	if err := t.RequireColumns(models.CategoryColumns...); err != nil {
		return nil, err
	}
	labelled := t.HasColumn(models.ColumnIsOneWay)

	records := make([]models.FlightRecord, len(t.rows))
	for i := range t.rows {
		rec := models.FlightRecord{
			AircraftType: t.Value(i, models.ColumnAircraftType),
			Operator:     t.Value(i, models.ColumnOperator),
			Origin:       t.Value(i, models.ColumnOrigin),
			Destination:  t.Value(i, models.ColumnDestination),
			AircraftBase: t.Value(i, models.ColumnAircraftBase),
		}
		if labelled {
			raw := strings.TrimSpace(t.Value(i, models.ColumnIsOneWay))
			if raw != "" {
				v, err := parseLabel(raw)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w %q", i+1, ErrInvalidLabel, raw)
				}
				rec.IsOneWay = &v
			}
		}
		records[i] = rec
	}
	return records, nil
}

// parseLabel accepts ParseBool spellings plus the float forms pandas writes
func parseLabel(raw string) (bool, error) {
	if v, err := strconv.ParseBool(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, err
	}
	switch f {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("label out of range: %v", f)
}

// WithProbabilities returns a copy of the table with empty_leg_proba set,
// replacing an existing column of that name.
func (t *Table) WithProbabilities(probas []float64) (*Table, error) {
	if len(probas) != len(t.rows) {
		return nil, fmt.Errorf("got %d probabilities for %d rows", len(probas), len(t.rows))
	}

	values := make([]string, len(probas))
	for i, p := range probas {
		values[i] = strconv.FormatFloat(p, 'f', ProbabilityPrecision, 64)
	}
	return t.withColumn(models.ColumnEmptyLegProb, values), nil
}

func (t *Table) withColumn(name string, values []string) *Table {
	out := &Table{
		header: t.Header(),
		index:  make(map[string]int, len(t.index)+1),
		rows:   make([][]string, len(t.rows)),
	}
	for k, v := range t.index {
		out.index[k] = v
	}

	j, exists := out.index[name]
	if !exists {
		j = len(out.header)
		out.header = append(out.header, name)
		out.index[name] = j
	}

	for i, row := range t.rows {
		width := len(row)
		if !exists {
			width++
		}
		cp := make([]string, width)
		copy(cp, row)
		cp[j] = values[i]
		out.rows[i] = cp
	}
	return out
}

// Scored extracts the preview columns of an annotated table
func (t *Table) Scored() ([]models.ScoredFlight, error) {
	if err := t.RequireColumns(models.ColumnOrigin, models.ColumnDestination, models.ColumnAircraftType, models.ColumnEmptyLegProb); err != nil {
		return nil, err
	}

	scored := make([]models.ScoredFlight, len(t.rows))
	for i := range t.rows {
		p, err := strconv.ParseFloat(t.Value(i, models.ColumnEmptyLegProb), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid %s: %w", i+1, models.ColumnEmptyLegProb, err)
		}
		scored[i] = models.ScoredFlight{
			Origin:       t.Value(i, models.ColumnOrigin),
			Destination:  t.Value(i, models.ColumnDestination),
			AircraftType: t.Value(i, models.ColumnAircraftType),
			Probability:  p,
		}
	}
	return scored, nil
}

// WriteCSV writes the header and every row
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(t.rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}
