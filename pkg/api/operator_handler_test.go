package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charterintel/charterintel/pkg/models"
	"github.com/charterintel/charterintel/pkg/operators"
)

func TestOperatorHandler_Manufacturers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/operators/manufacturers")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Cessna", "Gulfstream", "Beechcraft"}, got)
}

func TestOperatorHandler_Inventory(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       []models.OperatorCount
	}{
		{
			name:       "defaults",
			query:      "",
			wantStatus: http.StatusOK,
			want: []models.OperatorCount{
				{HolderName: "NetJets", AircraftCount: 4},
				{HolderName: "Wheels Up", AircraftCount: 4},
				{HolderName: "Jet Linx", AircraftCount: 3},
			},
		},
		{
			name:       "gulfstream only",
			query:      "?manufacturer=Gulfstream&min_aircraft=1",
			wantStatus: http.StatusOK,
			want: []models.OperatorCount{
				{HolderName: "NetJets", AircraftCount: 1},
				{HolderName: "Solo Air", AircraftCount: 1},
			},
		},
		{
			name:       "two manufacturers",
			query:      "?manufacturer=Cessna&manufacturer=Gulfstream&min_aircraft=4",
			wantStatus: http.StatusOK,
			want: []models.OperatorCount{
				{HolderName: "NetJets", AircraftCount: 4},
			},
		},
		{
			name:       "min aircraft out of range",
			query:      "?min_aircraft=21",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.get("/api/operators/inventory" + tt.query)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.want == nil {
				return
			}

			var got []models.OperatorCount
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperatorHandler_Leads(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/operators/leads?manufacturer=Cessna&min_count=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []models.Lead{
		{Manufacturer: "Cessna", HolderName: "Jet Linx", Count: 3},
		{Manufacturer: "Cessna", HolderName: "NetJets", Count: 3},
	}, got)
}

func TestOperatorHandler_LeadsCSV(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/operators/leads?manufacturer=Beechcraft&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Beechcraft,Wheels Up,4", lines[1])
}

func TestOperatorHandler_LeadsErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query      string
		wantStatus int
	}{
		{"", http.StatusBadRequest},
		{"?manufacturer=Cessna&min_count=0", http.StatusBadRequest},
		{"?manufacturer=Boeing", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := env.get("/api/operators/leads" + tt.query)
		assert.Equal(t, tt.wantStatus, rec.Code, tt.query)
	}
}

func TestOperatorHandler_MissingList(t *testing.T) {
	s := NewServer("0", nil)
	NewOperatorHandler(operators.NewRegistry(filepath.Join(t.TempDir(), "missing.csv"))).Register(s)

	for _, path := range []string{
		"/api/operators/manufacturers",
		"/api/operators/inventory",
		"/api/operators/leads?manufacturer=Cessna",
	} {
		assert.Equal(t, http.StatusServiceUnavailable, statusOf(s, path), path)
	}
}

func statusOf(s *Server, path string) int {
	return (&testEnv{server: s}).get(path).Code
}

func TestOperatorHandler_ListWithoutHolderColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Manufacturer,Model\nCessna,Citation X\n"), 0644))

	s := NewServer("0", nil)
	NewOperatorHandler(operators.NewRegistry(path)).Register(s)

	assert.Equal(t, http.StatusServiceUnavailable, statusOf(s, "/api/operators/manufacturers"))
}

func TestOperatorHandler_LeadsCSVWriteFailureIsLogged(t *testing.T) {
	env := newTestEnv(t)
	buf := captureLog(t)

	conn := newBrokenConn()
	env.server.ServeHTTP(conn, httptest.NewRequest(http.MethodGet, "/api/operators/leads?manufacturer=Beechcraft&format=csv", nil))

	assert.Equal(t, http.StatusOK, conn.status)
	assert.Contains(t, buf.String(), "Error writing leads download")
}
