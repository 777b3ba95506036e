package insights

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/charterintel/charterintel/pkg/models"
)

func scored(origin, destination, aircraft string, p float64) models.ScoredFlight {
	return models.ScoredFlight{Origin: origin, Destination: destination, AircraftType: aircraft, Probability: p}
}

func TestCompute(t *testing.T) {
	rows := []models.ScoredFlight{
		scored("KTEB", "KPBI", "Citation", 0.95),
		scored("KTEB", "KPBI", "Citation", 0.81),
		scored("KTEB", "KMIA", "Lear", 0.75),
		scored("KVNY", "KLAS", "Challenger", 0.90),
		scored("KBOS", "KMIA", "Lear", 0.70), // not strictly above threshold
		scored("KDAL", "KAUS", "Lear", 0.10),
	}

	got := Compute(rows, DefaultThreshold, DefaultLimit)

	assert.Equal(t, 4, got.HighConfidence)
	assert.Equal(t, []models.RouteCount{
		{Origin: "KTEB", Destination: "KPBI", Count: 2},
		{Origin: "KTEB", Destination: "KMIA", Count: 1},
		{Origin: "KVNY", Destination: "KLAS", Count: 1},
	}, got.TopRoutes)
	assert.Equal(t, []models.ValueCount{
		{Value: "Citation", Count: 2},
		{Value: "Challenger", Count: 1},
		{Value: "Lear", Count: 1},
	}, got.TopAircraft)
	assert.Equal(t, []models.ValueCount{
		{Value: "KTEB", Count: 3},
		{Value: "KVNY", Count: 1},
	}, got.TopOrigins)
}

func TestCompute_Limit(t *testing.T) {
	rows := make([]models.ScoredFlight, 0)
	for i := 0; i < 15; i++ {
		rows = append(rows, scored(fmt.Sprintf("K%03d", i), "KPBI", "Citation", 0.9))
	}

	got := Compute(rows, DefaultThreshold, 0)
	assert.Len(t, got.TopRoutes, DefaultLimit)
	assert.Len(t, got.TopOrigins, DefaultLimit)
	assert.Len(t, got.TopAircraft, 1)

	got = Compute(rows, DefaultThreshold, 3)
	assert.Len(t, got.TopRoutes, 3)
	assert.Equal(t, "K000", got.TopRoutes[0].Origin)
}

func TestCompute_NothingAboveThreshold(t *testing.T) {
	got := Compute([]models.ScoredFlight{scored("KTEB", "KPBI", "Citation", 0.2)}, DefaultThreshold, DefaultLimit)

	assert.Zero(t, got.HighConfidence)
	assert.Empty(t, got.TopRoutes)
	assert.Empty(t, got.TopAircraft)
	assert.Empty(t, got.TopOrigins)
}

func TestHighConfidence(t *testing.T) {
	rows := []models.ScoredFlight{
		{Origin: "KTEB", Probability: 0.71},
		{Origin: "KVNY", Probability: 0.7},
		{Origin: "KBOS", Probability: 0.99},
		{Origin: "KDAL", Probability: 0.1},
	}
	assert.Equal(t, 2, HighConfidence(rows, 0.7))
	assert.Equal(t, Compute(rows, 0.7, 10).HighConfidence, HighConfidence(rows, 0.7))
}
