package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/charterintel/charterintel/pkg/models"
	"github.com/charterintel/charterintel/pkg/operators"
)

// OperatorHandler handles the FAA operator list HTTP requests
type OperatorHandler struct {
	registry *operators.Registry
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(registry *operators.Registry) *OperatorHandler {
	return &OperatorHandler{registry: registry}
}

// Register mounts the operator routes
func (h *OperatorHandler) Register(s *Server) {
	s.RegisterHandler("/api/operators/manufacturers", h.HandleManufacturers, http.MethodGet)
	s.RegisterHandler("/api/operators/inventory", h.HandleInventory, http.MethodGet)
	s.RegisterHandler("/api/operators/leads", h.HandleLeads, http.MethodGet)
}

// HandleManufacturers handles GET /api/operators/manufacturers
func (h *OperatorHandler) HandleManufacturers(w http.ResponseWriter, r *http.Request) {
	mfrs, err := h.registry.Manufacturers()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("Operator list unavailable: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, mfrs)
}

// HandleInventory handles GET /api/operators/inventory?min_aircraft=&manufacturer=...
func (h *OperatorHandler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	minAircraft, err := intParam(r, "min_aircraft", models.DefaultMinAircraft, models.MinAircraftLower, models.MinAircraftUpper)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := &models.InventoryFilter{
		Manufacturers: r.URL.Query()["manufacturer"],
		MinAircraft:   minAircraft,
	}
	counts, err := h.registry.Inventory(filter)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("Operator list unavailable: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleLeads handles GET /api/operators/leads?manufacturer=&min_count=&format=csv|json
func (h *OperatorHandler) HandleLeads(w http.ResponseWriter, r *http.Request) {
	minCount, err := intParam(r, "min_count", models.DefaultMinLeadCount, models.MinLeadCountLower, models.MinLeadCountUpper)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	manufacturer := r.URL.Query().Get("manufacturer")
	if manufacturer == "" {
		writeError(w, http.StatusBadRequest, "manufacturer is required")
		return
	}

	leads, err := h.registry.Leads(&models.LeadRequest{Manufacturer: manufacturer, MinCount: minCount})
	if err != nil {
		if errors.Is(err, operators.ErrUnknownManufacturer) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("Operator list unavailable: %v", err))
		}
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := operators.WriteLeadsCSV(w, leads); err != nil {
			log.Printf("Error writing leads download: %v", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, leads)
}
