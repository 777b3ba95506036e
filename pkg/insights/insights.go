// Package insights summarizes the high-confidence empty legs of a scored upload.
package insights

import (
	"sort"

	"github.com/charterintel/charterintel/pkg/models"
)

// Defaults used by the dashboard
const (
	DefaultThreshold = 0.7
	DefaultLimit     = 10
)

// Compute keeps rows whose probability is strictly above threshold and ranks
// routes, aircraft types and origins by how often they appear among them.
// Ties are ordered by key; limit <= 0 means DefaultLimit.
func Compute(rows []models.ScoredFlight, threshold float64, limit int) *models.Insights {
	if limit <= 0 {
		limit = DefaultLimit
	}

	routes := make(map[[2]string]int)
	aircraft := make(map[string]int)
	origins := make(map[string]int)
	high := 0
	for _, r := range rows {
		if r.Probability <= threshold {
			continue
		}
		high++
		routes[[2]string{r.Origin, r.Destination}]++
		aircraft[r.AircraftType]++
		origins[r.Origin]++
	}

	return &models.Insights{
		Threshold:      threshold,
		HighConfidence: high,
		TopRoutes:      topRoutes(routes, limit),
		TopAircraft:    topValues(aircraft, limit),
		TopOrigins:     topValues(origins, limit),
	}
}

// HighConfidence counts rows strictly above threshold
func HighConfidence(rows []models.ScoredFlight, threshold float64) int {
	n := 0
	for _, r := range rows {
		if r.Probability > threshold {
			n++
		}
	}
	return n
}

func topRoutes(counts map[[2]string]int, limit int) []models.RouteCount {
	out := make([]models.RouteCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.RouteCount{Origin: k[0], Destination: k[1], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Origin != out[j].Origin {
			return out[i].Origin < out[j].Origin
		}
		return out[i].Destination < out[j].Destination
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topValues(counts map[string]int, limit int) []models.ValueCount {
	out := make([]models.ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, models.ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
