package models

// Flight table column names
const (
	ColumnAircraftType = "aircraft_type"
	ColumnOperator     = "operator"
	ColumnOrigin       = "origin"
	ColumnDestination  = "destination"
	ColumnAircraftBase = "aircraft_base"
	ColumnIsOneWay     = "is_one_way"
	ColumnEmptyLegProb = "empty_leg_proba"
)

// CategoryColumns lists the categorical flight attributes in feature order
var CategoryColumns = []string{
	ColumnAircraftType,
	ColumnOperator,
	ColumnOrigin,
	ColumnDestination,
	ColumnAircraftBase,
}

// FlightRecord is one row of an uploaded flight schedule
type FlightRecord struct {
	AircraftType string `json:"aircraft_type"`
	Operator     string `json:"operator"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	AircraftBase string `json:"aircraft_base"`
	IsOneWay     *bool  `json:"is_one_way,omitempty"` // nil when the upload carries no label
}

// Category returns the value of a categorical column by name
func (r FlightRecord) Category(column string) string {
	switch column {
	case ColumnAircraftType:
		return r.AircraftType
	case ColumnOperator:
		return r.Operator
	case ColumnOrigin:
		return r.Origin
	case ColumnDestination:
		return r.Destination
	case ColumnAircraftBase:
		return r.AircraftBase
	}
	return ""
}

// ScoredFlight is a flight leg annotated with its empty-leg probability
type ScoredFlight struct {
	Origin       string  `json:"origin"`
	Destination  string  `json:"destination"`
	AircraftType string  `json:"aircraft_type"`
	Probability  float64 `json:"empty_leg_proba"`
}
