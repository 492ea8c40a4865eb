package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/sfcflow/pkg/endpoint/memory"
	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence/file"
	"github.com/dukex/sfcflow/pkg/testutil"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *memory.Endpoint) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	adapter := memory.New()
	manager := engine.NewManager(persistence, adapter, slog.Default(), engine.WithTickInterval(10*time.Millisecond))

	t.Cleanup(func() { _ = manager.StopAll(t.Context()) })

	return NewAPI(slog.Default(), persistence, manager).App(), adapter
}

func do(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := do(t, app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sfcflow API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz", "/health"} {
		t.Run(path, func(t *testing.T) {
			resp, _ := do(t, app, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestAPI_CORS(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/graphs", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_RunGraphToCompletion(t *testing.T) {
	app, adapter := setupTestApp(t)

	definition := testutil.CreateTestGraph("fill",
		[]*models.StepDefinition{
			testutil.StartStep("start"),
			testutil.SetValueStep("fill", "ns=2;s=Level", 0, 10, 0.05),
			testutil.EndStep("end"),
		},
		testutil.Chain("start", "fill", "end"),
	)

	resp, _ := do(t, app, http.MethodPut, "/graphs/fill", definition)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/graphs/fill/start", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var snapshot models.Snapshot

	require.Eventually(t, func() bool {
		_, body := do(t, app, http.MethodGet, "/graphs/fill/status", nil)
		require.NoError(t, json.Unmarshal(body, &snapshot))

		return snapshot.Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, models.RunStatusCompleted, snapshot.Status)
	assert.Equal(t, models.StepStateFinished, snapshot.Steps["fill"].State)

	value, err := adapter.Read(t.Context(), "ns=2;s=Level")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, value, 1e-9)
}
