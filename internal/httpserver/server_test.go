package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/predict"
	"github.com/harborside/cranetrack/internal/store"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func newTestServer(t *testing.T, trigger TriggerFunc) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	log := zaptest.NewLogger(t)
	eng := predict.NewEngine(st, log)
	srv := httptest.NewServer(New(st, eng, trigger, time.Minute, log).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestPredictEndpoint(t *testing.T) {
	srv, st := newTestServer(t, nil)
	ctx := context.Background()

	_, err := st.UpsertTasks(ctx, []model.TaskConfig{
		{TaskID: "annual", ServiceIntervalDays: iptr(365)},
	})
	require.NoError(t, err)
	_, err = st.LogService(ctx, model.ServiceRecord{
		EntityID: "RMG07", EntityType: model.EntityCrane, TaskID: "annual",
		ServiceDate: time.Now().UTC().AddDate(0, 0, -100),
	})
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/predict?entity_id=RMG07&entity_type=crane&task_id=annual", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["error"])
	assert.NotEmpty(t, body["predicted_date"])

	// Prediction failures are payload, not status codes.
	resp, body = doJSON(t, http.MethodGet,
		srv.URL+"/predict?entity_id=RMG07&entity_type=crane&task_id=nope", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["error"], model.ErrUnknownTask)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/predict?entity_id=RMG07", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServiceLogRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/service-log", `{
		"entity_id": "29747",
		"entity_type": "spreader",
		"task_id": "5000",
		"service_date": "2025-05-01T00:00:00Z",
		"serviced_at_value": 42000,
		"serviced_by": "day shift"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	req, err := http.NewRequest(http.MethodGet,
		srv.URL+"/service-log?entity_id=29747&entity_type=spreader&task_id=5000", nil)
	require.NoError(t, err)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var recs []model.ServiceRecord
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/service-log/"+id, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/service-log/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServiceLogValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	cases := []string{
		`not json`,
		`{"entity_id": "", "entity_type": "crane", "task_id": "x", "service_date": "2025-05-01T00:00:00Z"}`,
		`{"entity_id": "RMG07", "entity_type": "forklift", "task_id": "x", "service_date": "2025-05-01T00:00:00Z"}`,
		`{"entity_id": "RMG07", "entity_type": "crane", "task_id": "x", "service_date": "yesterday"}`,
	}
	for _, body := range cases {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/service-log", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestListTasks(t *testing.T) {
	srv, st := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/tasks", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var tasks []model.TaskConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	assert.Empty(t, tasks)

	_, err = st.UpsertTasks(context.Background(), []model.TaskConfig{
		{TaskID: "locks", TagName: "TWISTLOCK COUNT", ServiceLimit: fptr(1000)},
	})
	require.NoError(t, err)

	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "locks", tasks[0].TaskID)
}

func TestIngestTriggerRateLimited(t *testing.T) {
	var triggered atomic.Int64
	done := make(chan struct{})
	srv, _ := newTestServer(t, func(ctx context.Context) {
		triggered.Add(1)
		close(done)
	})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/ingest", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", body["status"])

	// Second trigger inside the interval is rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/ingest", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger was never called")
	}
	assert.Equal(t, int64(1), triggered.Load())
}

func TestIngestTriggerNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/ingest", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
