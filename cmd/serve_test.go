package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-sentry/internal/extract"
	"github.com/sells-group/price-sentry/internal/health"
	"github.com/sells-group/price-sentry/internal/money"
	"github.com/sells-group/price-sentry/internal/override"
	"github.com/sells-group/price-sentry/internal/pipeline"
	"github.com/sells-group/price-sentry/internal/registry"
	"github.com/sells-group/price-sentry/internal/store"
)

const testPage = `<html><body><span data-testid="total-price">$129.99</span></body></html>`

func testEnv() *env {
	st := store.NewMemory()
	reg := registry.Default()
	ovs := override.NewStore(st)
	mon := health.NewMonitor(st)
	opts := money.Options{}

	pipe := pipeline.New(
		extract.NewSiteExtractor(reg, registry.NewStats(st), ovs, opts),
		extract.NewSemanticExtractor(reg, opts),
		extract.NewHeuristicExtractor(opts),
	).WithHealth(mon).WithOverrides(ovs)

	return &env{Store: st, Registry: reg, Overrides: ovs, Health: mon, Pipeline: pipe}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServe_ExtractFromHTML(t *testing.T) {
	router := newRouter(testEnv())

	body := `{"html": ` + mustJSON(testPage) + `, "page_url": "https://api.test/checkout"}`
	rec := doJSON(t, router, http.MethodPost, "/extract", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Final)
	assert.True(t, res.Final.OK)
	assert.InDelta(t, 129.99, res.Final.Value.Total.Amount, 0.001)
}

func TestServe_ExtractRequiresInput(t *testing.T) {
	router := newRouter(testEnv())

	rec := doJSON(t, router, http.MethodPost, "/extract", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/extract", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_ConfirmPersistsOverride(t *testing.T) {
	router := newRouter(testEnv())

	body := `{"html": ` + mustJSON(testPage) + `, "page_url": "https://api.test/checkout", "selector": "[data-testid='total-price']", "page_type": "checkout"}`
	rec := doJSON(t, router, http.MethodPost, "/confirm", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/overrides/api.test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "total_price")

	rec = doJSON(t, router, http.MethodDelete, "/overrides/api.test", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/overrides/api.test", "")
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestServe_ConfirmRejectsNonPrice(t *testing.T) {
	router := newRouter(testEnv())

	body := `{"html": "<html><body><p>hello</p></body></html>", "page_url": "https://api.test/", "selector": "p"}`
	rec := doJSON(t, router, http.MethodPost, "/confirm", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServe_HealthEndpoints(t *testing.T) {
	router := newRouter(testEnv())

	// Generate one event.
	body := `{"html": ` + mustJSON(testPage) + `, "page_url": "https://api.test/checkout"}`
	doJSON(t, router, http.MethodPost, "/extract", body)

	rec := doJSON(t, router, http.MethodGet, "/health/api.test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attempts":1`)

	rec = doJSON(t, router, http.MethodGet, "/debug/api.test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events"`)

	rec = doJSON(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServe_ShutdownDrainsInflightRequests(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("done"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- serveUntilShutdown(ctx, srv, ln) }()

	respBody := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			respBody <- err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		respBody <- string(b)
	}()

	// Stop the server while the request is still being handled.
	<-started
	cancel()

	assert.Equal(t, "done", <-respBody, "shutdown drains rather than aborts")
	require.NoError(t, <-serveErr)
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
