// Package operators serves the static FAA Part 135 operator fleet list.
package operators

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charterintel/charterintel/pkg/models"
)

// ErrUnknownManufacturer is returned when a lead request names a manufacturer not in the list
var ErrUnknownManufacturer = errors.New("unknown manufacturer")

// Registry loads the operator list on first use and keeps it for the process
// lifetime. The loaded rows are never modified.
type Registry struct {
	path string

	once          sync.Once
	records       []models.OperatorRecord
	manufacturers []string
	err           error
}

// NewRegistry creates a registry for the CSV at path. Nothing is read until first use.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the backing file
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) load() {
	r.once.Do(func() {
		f, err := os.Open(r.path)
		if err != nil {
			r.err = fmt.Errorf("failed to open operator list: %w", err)
			return
		}
		defer f.Close()

		records, err := ReadOperators(f)
		if err != nil {
			r.err = fmt.Errorf("failed to load operator list %s: %w", r.path, err)
			return
		}

		seen := make(map[string]struct{})
		for _, rec := range records {
			if _, ok := seen[rec.Manufacturer]; ok {
				continue
			}
			seen[rec.Manufacturer] = struct{}{}
			r.manufacturers = append(r.manufacturers, rec.Manufacturer)
		}
		r.records = records
		log.Printf("Loaded %d operator aircraft across %d manufacturers from %s", len(records), len(r.manufacturers), r.path)
	})
}

// Operators returns every aircraft row of the list
func (r *Registry) Operators() ([]models.OperatorRecord, error) {
	r.load()
	return r.records, r.err
}

// Manufacturers returns the distinct manufacturers in order of first appearance
func (r *Registry) Manufacturers() ([]string, error) {
	r.load()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]string, len(r.manufacturers))
	copy(out, r.manufacturers)
	return out, nil
}

// Inventory counts aircraft per certificate holder for the selected
// manufacturers and keeps holders with at least MinAircraft aircraft,
// largest fleets first.
func (r *Registry) Inventory(filter *models.InventoryFilter) ([]models.OperatorCount, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	records, err := r.Operators()
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool, len(filter.Manufacturers))
	for _, m := range filter.Manufacturers {
		selected[m] = true
	}

	counts := make(map[string]int)
	for _, rec := range records {
		if len(selected) > 0 && !selected[rec.Manufacturer] {
			continue
		}
		if rec.HolderName == "" {
			continue
		}
		counts[rec.HolderName]++
	}

	result := make([]models.OperatorCount, 0, len(counts))
	for name, n := range counts {
		if n >= filter.MinAircraft {
			result = append(result, models.OperatorCount{HolderName: name, AircraftCount: n})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AircraftCount != result[j].AircraftCount {
			return result[i].AircraftCount > result[j].AircraftCount
		}
		return result[i].HolderName < result[j].HolderName
	})
	return result, nil
}

// Leads lists holders flying at least MinCount aircraft of one manufacturer, by holder name
func (r *Registry) Leads(req *models.LeadRequest) ([]models.Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	manufacturers, err := r.Manufacturers()
	if err != nil {
		return nil, err
	}
	known := false
	for _, m := range manufacturers {
		if m == req.Manufacturer {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownManufacturer, req.Manufacturer)
	}

	counts := make(map[string]int)
	for _, rec := range r.records {
		if rec.Manufacturer == req.Manufacturer && rec.HolderName != "" {
			counts[rec.HolderName]++
		}
	}

	leads := make([]models.Lead, 0)
	for name, n := range counts {
		if n >= req.MinCount {
			leads = append(leads, models.Lead{Manufacturer: req.Manufacturer, HolderName: name, Count: n})
		}
	}
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].HolderName < leads[j].HolderName
	})
	return leads, nil
}

// ReadOperators parses an FAA operator list. Manufacturer and
// Part 135 Certificate Holder Name are required; other columns are kept as-is.
func ReadOperators(rd io.Reader) ([]models.OperatorRecord, error) {
	reader := csv.NewReader(rd)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("operator list is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, required := range []string{models.ColumnManufacturer, models.ColumnHolderName} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("operator list is missing column %q", required)
		}
	}

	records := make([]models.OperatorRecord, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+2, err)
		}

		fields := make(map[string]string, len(header))
		for i, h := range header {
			fields[h] = strings.TrimSpace(row[i])
		}
		records = append(records, models.OperatorRecord{
			Manufacturer: fields[models.ColumnManufacturer],
			HolderName:   fields[models.ColumnHolderName],
			Fields:       fields,
		})
	}
	return records, nil
}

// WriteLeadsCSV writes leads with the Manufacturer, holder name and Count columns
func WriteLeadsCSV(w io.Writer, leads []models.Lead) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{models.ColumnManufacturer, models.ColumnHolderName, "Count"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, l := range leads {
		if err := writer.Write([]string{l.Manufacturer, l.HolderName, strconv.Itoa(l.Count)}); err != nil {
			return fmt.Errorf("failed to write lead: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
