package api

import (
	"bytes"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charterintel/charterintel/pkg/insights"
	"github.com/charterintel/charterintel/pkg/metadatastore"
	"github.com/charterintel/charterintel/pkg/metrics"
	"github.com/charterintel/charterintel/pkg/operators"
	"github.com/charterintel/charterintel/pkg/runs"
	"github.com/charterintel/charterintel/pkg/scoring"
)

const testSchedule = `origin,destination,aircraft_type,operator,aircraft_base,is_one_way
KTEB,KPBI,Citation,JetEdge,KTEB,1
KVNY,KLAS,Citation,JetEdge,KTEB,1
KBOS,KMIA,Lear,Solairus,KBOS,0
KDAL,KAUS,Lear,Solairus,KBOS,0
`

const testOperators = `Part 135 Certificate Holder Name,Manufacturer,Model
NetJets,Cessna,Citation X
NetJets,Cessna,Citation X
NetJets,Cessna,Citation Latitude
NetJets,Gulfstream,G450
Wheels Up,Beechcraft,King Air 350
Wheels Up,Beechcraft,King Air 350
Wheels Up,Beechcraft,King Air 350
Wheels Up,Beechcraft,King Air 350
Jet Linx,Cessna,Citation CJ3
Jet Linx,Cessna,Citation CJ3
Jet Linx,Cessna,Citation CJ3
Solo Air,Gulfstream,G650
`

const testMaxUpload = 1 << 20

type testEnv struct {
	server   *Server
	runs     *runs.Service
	registry *operators.Registry
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := metadatastore.NewSQLiteStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m, err := metrics.NewMetrics()
	require.NoError(t, err)

	opsPath := filepath.Join(dir, "FAA_LIST_FILTERED.csv")
	require.NoError(t, os.WriteFile(opsPath, []byte(testOperators), 0644))

	cfg := scoring.DefaultForestConfig()
	cfg.Trees = 20
	svc := runs.NewService(store, m, cfg, insights.DefaultThreshold)
	registry := operators.NewRegistry(opsPath)

	server := NewServer("0", store.Ping)
	NewPredictionHandler(svc, testMaxUpload).Register(server)
	NewOperatorHandler(registry).Register(server)
	NewDashboardHandler(svc, registry, testMaxUpload).Register(server)
	server.Handle("/metrics", m.Handler())

	return &testEnv{server: server, runs: svc, registry: registry, metrics: m}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// uploadRequest builds a multipart POST with the content in field "file"
func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// captureLog redirects the standard logger into a buffer for one test
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

// brokenConn is a ResponseWriter whose client has gone away
type brokenConn struct {
	header http.Header
	status int
}

func newBrokenConn() *brokenConn {
	return &brokenConn{header: make(http.Header)}
}

func (c *brokenConn) Header() http.Header { return c.header }

func (c *brokenConn) WriteHeader(status int) { c.status = status }

func (c *brokenConn) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}
