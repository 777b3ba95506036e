package models

import "fmt"

// FAA operator list column names
const (
	ColumnManufacturer = "Manufacturer"
	ColumnHolderName   = "Part 135 Certificate Holder Name"
)

// Slider bounds for the operator views
const (
	MinAircraftLower   = 1
	MinAircraftUpper   = 20
	DefaultMinAircraft = 3

	MinLeadCountLower   = 1
	MinLeadCountUpper   = 10
	DefaultMinLeadCount = 3
)

// OperatorRecord is one aircraft row of the FAA Part 135 operator list
type OperatorRecord struct {
	Manufacturer string            `json:"manufacturer"`
	HolderName   string            `json:"holder_name"`
	Fields       map[string]string `json:"fields,omitempty"` // every column of the source row
}

// OperatorCount is the fleet size of one certificate holder
type OperatorCount struct {
	HolderName    string `json:"holder_name"`
	AircraftCount int    `json:"aircraft_count"`
}

// Lead is a certificate holder operating a given manufacturer's aircraft
type Lead struct {
	Manufacturer string `json:"manufacturer"`
	HolderName   string `json:"holder_name"`
	Count        int    `json:"count"`
}

// InventoryFilter selects operators for the inventory view
type InventoryFilter struct {
	Manufacturers []string `json:"manufacturers,omitempty"` // empty means every manufacturer
	MinAircraft   int      `json:"min_aircraft"`
}

// Validate checks if the InventoryFilter is valid
func (f *InventoryFilter) Validate() error {
	if f.MinAircraft < MinAircraftLower || f.MinAircraft > MinAircraftUpper {
		return fmt.Errorf("min_aircraft must be between %d and %d", MinAircraftLower, MinAircraftUpper)
	}
	return nil
}

// LeadRequest selects a lead list for export
type LeadRequest struct {
	Manufacturer string `json:"manufacturer"`
	MinCount     int    `json:"min_count"`
}

// Validate checks if the LeadRequest is valid
func (r *LeadRequest) Validate() error {
	if r.Manufacturer == "" {
		return fmt.Errorf("manufacturer is required")
	}
	if r.MinCount < MinLeadCountLower || r.MinCount > MinLeadCountUpper {
		return fmt.Errorf("min_count must be between %d and %d", MinLeadCountLower, MinLeadCountUpper)
	}
	return nil
}
