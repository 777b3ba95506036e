package api

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charterintel/charterintel/pkg/insights"
	"github.com/charterintel/charterintel/pkg/metadatastore"
	"github.com/charterintel/charterintel/pkg/models"
	"github.com/charterintel/charterintel/pkg/operators"
	"github.com/charterintel/charterintel/pkg/runs"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// Dashboard tabs
const (
	TabPredict   = "predict"
	TabInventory = "inventory"
	TabLeads     = "leads"
	TabInsights  = "insights"
)

var dashboardTabs = []struct {
	ID    string
	Title string
}{
	{TabPredict, "Predictive Engine"},
	{TabInventory, "Operator Inventory"},
	{TabLeads, "Lead Targeting"},
	{TabInsights, "Dashboard Insights"},
}

type tabLink struct {
	ID     string
	Title  string
	URL    string
	Active bool
}

type bar struct {
	Label   string
	Count   int
	Percent int
}

type barChart struct {
	Title  string
	YLabel string
	Bars   []bar
}

type manufacturerOption struct {
	Name     string
	Selected bool
}

// dashboardPage is the template model of the whole page
type dashboardPage struct {
	Tab     string
	Tabs    []tabLink
	RunID   string
	Info    string
	Warning string
	Success string

	Run          *models.PredictionRun
	Preview      []models.ScoredFlight
	DownloadURL  string
	InsightsLink string

	OperatorsError string
	Manufacturers  []manufacturerOption
	MinAircraft    int
	Inventory      []models.OperatorCount

	LeadManufacturer string
	LeadOptions      []string
	MinLeadCount     int
	Leads            []models.Lead
	LeadsCSVURL      string

	Insights *models.Insights
	Charts   []barChart
}

// DashboardHandler renders the four-tab HTML dashboard
type DashboardHandler struct {
	runs           *runs.Service
	registry       *operators.Registry
	maxUploadBytes int64
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service *runs.Service, registry *operators.Registry, maxUploadBytes int64) *DashboardHandler {
	return &DashboardHandler{
		runs:           service,
		registry:       registry,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register mounts the dashboard routes
func (h *DashboardHandler) Register(s *Server) {
	s.RegisterHandler("/", h.HandleDashboard, http.MethodGet)
	s.RegisterHandler("/upload", h.HandleUpload, http.MethodPost)
}

// HandleDashboard handles GET /
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := h.newPage(q.Get("tab"), q.Get("run"))

	if q.Get("scored") == "1" && page.Run != nil {
		page.Success = "Prediction complete."
	}
	h.fillOperators(page, r)
	h.render(w, http.StatusOK, page)
}

// HandleUpload handles POST /upload from the Predictive Engine tab
func (h *DashboardHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	status := http.StatusOK
	warning := ""
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		status, warning = http.StatusBadRequest, "The upload could not be read. Please upload a CSV file."
	} else if file, header, err := r.FormFile("file"); err != nil {
		status, warning = http.StatusBadRequest, "No file uploaded. Please upload a charter flight schedule."
	} else {
		defer file.Close()
		result, err := h.runs.Score(r.Context(), header.Filename, file)
		if err == nil {
			v := url.Values{"tab": {TabPredict}, "run": {result.Run.ID}, "scored": {"1"}}
			http.Redirect(w, r, "/?"+v.Encode(), http.StatusSeeOther)
			return
		}
		if runs.IsUserError(err) {
			status, warning = http.StatusUnprocessableEntity, err.Error()
		} else if errors.Is(err, context.DeadlineExceeded) {
			status, warning = http.StatusServiceUnavailable, "Scoring took too long. Please upload a smaller schedule."
		} else {
			log.Printf("Error scoring upload %s: %v", header.Filename, err)
			status, warning = http.StatusInternalServerError, "Scoring failed. Please try again."
		}
	}

	page := h.newPage(TabPredict, "")
	page.Info = ""
	page.Warning = warning
	h.fillOperators(page, r)
	h.render(w, status, page)
}

func (h *DashboardHandler) newPage(tab, runID string) *dashboardPage {
	if !validTab(tab) {
		tab = TabPredict
	}
	page := &dashboardPage{Tab: tab, RunID: runID}

	for _, t := range dashboardTabs {
		v := url.Values{"tab": {t.ID}}
		if runID != "" {
			v.Set("run", runID)
		}
		page.Tabs = append(page.Tabs, tabLink{ID: t.ID, Title: t.Title, URL: "/?" + v.Encode(), Active: t.ID == tab})
	}

	if runID == "" {
		page.Info = "No file uploaded. Please upload a charter flight schedule."
		return page
	}

	run, err := h.runs.Get(runID)
	if err != nil {
		if errors.Is(err, metadatastore.ErrRunNotFound) {
			page.Warning = "That prediction run no longer exists. Please upload the schedule again."
		} else {
			log.Printf("Error loading run %s: %v", runID, err)
			page.Warning = "The prediction run could not be loaded."
		}
		page.RunID = ""
		return page
	}
	page.Run = run
	page.DownloadURL = "/api/predictions/" + url.PathEscape(run.ID) + "/download"

	switch tab {
	case TabPredict:
		preview, err := h.runs.Preview(run.ID, runs.PreviewRows)
		if err != nil {
			log.Printf("Error loading preview for run %s: %v", run.ID, err)
		}
		page.Preview = preview
	case TabInsights:
		result, err := h.runs.Insights(run.ID, h.runs.Threshold(), insights.DefaultLimit)
		if err != nil {
			log.Printf("Error computing insights for run %s: %v", run.ID, err)
			break
		}
		page.Insights = result
		page.Charts = []barChart{
			newBarChart("Aircraft Types Flying One-Way Most Often", "Aircraft Type", result.TopAircraft),
			newBarChart("Most Common Empty Leg Origins", "Origin Airport", result.TopOrigins),
		}
	}
	return page
}

// fillOperators loads the inventory and lead views from the operator registry
func (h *DashboardHandler) fillOperators(page *dashboardPage, r *http.Request) {
	if page.Tab != TabInventory && page.Tab != TabLeads {
		return
	}
	q := r.URL.Query()

	mfrs, err := h.registry.Manufacturers()
	if err != nil {
		log.Printf("Error loading operator list: %v", err)
		page.OperatorsError = "The FAA operator list is unavailable."
		return
	}

	switch page.Tab {
	case TabInventory:
		page.MinAircraft = clampInt(q.Get("min_aircraft"), models.DefaultMinAircraft, models.MinAircraftLower, models.MinAircraftUpper)
		selected := q["manufacturer"]
		if len(selected) == 0 {
			selected = mfrs
		}
		chosen := make(map[string]bool, len(selected))
		for _, m := range selected {
			chosen[m] = true
		}
		for _, m := range mfrs {
			page.Manufacturers = append(page.Manufacturers, manufacturerOption{Name: m, Selected: chosen[m]})
		}

		page.Inventory, err = h.registry.Inventory(&models.InventoryFilter{Manufacturers: selected, MinAircraft: page.MinAircraft})
		if err != nil {
			page.OperatorsError = err.Error()
		}

	case TabLeads:
		page.LeadOptions = mfrs
		page.MinLeadCount = clampInt(q.Get("min_count"), models.DefaultMinLeadCount, models.MinLeadCountLower, models.MinLeadCountUpper)
		page.LeadManufacturer = q.Get("manufacturer")
		if page.LeadManufacturer == "" && len(mfrs) > 0 {
			page.LeadManufacturer = mfrs[0]
		}
		if page.LeadManufacturer == "" {
			return
		}

		page.Leads, err = h.registry.Leads(&models.LeadRequest{Manufacturer: page.LeadManufacturer, MinCount: page.MinLeadCount})
		if err != nil {
			page.OperatorsError = err.Error()
			return
		}
		v := url.Values{
			"manufacturer": {page.LeadManufacturer},
			"min_count":    {strconv.Itoa(page.MinLeadCount)},
			"format":       {"csv"},
		}
		page.LeadsCSVURL = "/api/operators/leads?" + v.Encode()
	}
}

func (h *DashboardHandler) render(w http.ResponseWriter, status int, page *dashboardPage) {
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		log.Printf("Error rendering dashboard: %v", err)
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Error writing dashboard: %v", err)
	}
}

func newBarChart(title, yLabel string, values []models.ValueCount) barChart {
	chart := barChart{Title: title, YLabel: yLabel}
	max := 0
	for _, v := range values {
		if v.Count > max {
			max = v.Count
		}
	}
	for _, v := range values {
		pct := 0
		if max > 0 {
			pct = v.Count * 100 / max
		}
		chart.Bars = append(chart.Bars, bar{Label: v.Value, Count: v.Count, Percent: pct})
	}
	return chart
}

func validTab(tab string) bool {
	for _, t := range dashboardTabs {
		if t.ID == tab {
			return true
		}
	}
	return false
}

// clampInt parses raw and clamps it to [min, max], falling back to def
func clampInt(raw string, def, min, max int) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
