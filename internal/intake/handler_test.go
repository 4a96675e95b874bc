package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/crisiskit/internal/domain"
	"github.com/bissquit/crisiskit/internal/netmon"
	"github.com/bissquit/crisiskit/internal/queue/memory"
	"github.com/bissquit/crisiskit/internal/status"
	syncengine "github.com/bissquit/crisiskit/internal/sync"
)

type handlerFixture struct {
	store  *memory.Store
	remote *fakeRemote
	router *chi.Mux
}

func newHandlerFixture(t *testing.T, online bool) *handlerFixture {
	t.Helper()

	store := memory.NewStore()
	remote := &fakeRemote{}

	engine := syncengine.NewEngine(syncengine.DefaultConfig(), store, remote.SubmitResponse)
	monitor := netmon.NewMonitor(netmon.Config{
		ProbeInterval: time.Hour,
		SettleDelay:   time.Millisecond,
	}, netmon.ProberFunc(func(context.Context) bool { return online }))
	monitor.Start(context.Background())
	t.Cleanup(monitor.Stop)

	projector := status.NewProjector(status.DefaultConfig(), store, engine, monitor)
	service := NewService(store, remote, monitor, projector, nil)
	handler := NewHandler(service, projector, store, engine)

	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
		handler.RegisterAdminRoutes(r)
	})

	return &handlerFixture{store: store, remote: remote, router: router}
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SubmitResponse_Direct(t *testing.T) {
	f := newHandlerFixture(t, true)

	rec := f.do(http.MethodPost, "/api/v1/incidents/inc-1/responses",
		`{"name":"alice","needs":"water and food","location":"north"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, OutcomeSubmitted, body.Data.Outcome)
	require.NotNil(t, body.Data.Stored)

	require.Len(t, f.remote.submitted, 1)
	assert.Equal(t, "inc-1", f.remote.submitted[0].IncidentID)
}

func TestHandler_SubmitResponse_QueuedOffline(t *testing.T) {
	f := newHandlerFixture(t, false)

	rec := f.do(http.MethodPost, "/api/v1/incidents/inc-1/responses",
		`{"name":"alice","needs":"water"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		Data Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, OutcomeQueuedOffline, body.Data.Outcome)
	assert.NotZero(t, body.Data.SequenceID)
}

func TestHandler_SubmitResponse_QueuedFallback(t *testing.T) {
	f := newHandlerFixture(t, true)
	f.remote.submitErr = errors.New("backend down")

	rec := f.do(http.MethodPost, "/api/v1/incidents/inc-1/responses",
		`{"name":"alice","needs":"water"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		Data Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, OutcomeQueuedFallback, body.Data.Outcome)
}

func TestHandler_SubmitResponse_Validation(t *testing.T) {
	f := newHandlerFixture(t, true)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing name", `{"needs":"water"}`},
		{"missing needs", `{"name":"alice"}`},
		{"bad image url", `{"name":"alice","needs":"water","image_urls":["not a url"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/v1/incidents/inc-1/responses", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.remote.submitted)
}

func TestHandler_QueueStatus(t *testing.T) {
	f := newHandlerFixture(t, false)

	rec := f.do(http.MethodPost, "/api/v1/incidents/inc-1/responses",
		`{"name":"alice","needs":"water"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/queue/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data status.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.IsOnline)
	assert.Equal(t, 1, body.Data.PendingCount)
	assert.False(t, body.Data.IsSyncing)
}

func TestHandler_SyncNow(t *testing.T) {
	f := newHandlerFixture(t, true)

	_, err := f.store.Enqueue(context.Background(), domain.SubmissionPayload{
		IncidentID: "inc-1", Name: "alice", Needs: "water",
	})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/v1/queue/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data syncengine.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, syncengine.Result{SuccessCount: 1, TotalAttempted: 1}, body.Data)
}

func TestHandler_SyncNow_Offline(t *testing.T) {
	f := newHandlerFixture(t, false)

	rec := f.do(http.MethodPost, "/api/v1/queue/sync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_ListFailed(t *testing.T) {
	f := newHandlerFixture(t, true)
	ctx := context.Background()

	id, err := f.store.Enqueue(ctx, domain.SubmissionPayload{IncidentID: "inc-1", Name: "alice", Needs: "water"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.RecordFailure(ctx, id, "unreachable"))
	}
	_, err = f.store.Enqueue(ctx, domain.SubmissionPayload{IncidentID: "inc-1", Name: "bob", Needs: "water"})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/v1/queue/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			SequenceID int64 `json:"sequence_id"`
			RetryCount int   `json:"retry_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, id, body.Data[0].SequenceID)
	assert.Equal(t, 3, body.Data[0].RetryCount)
}

func TestHandler_ExportQueue(t *testing.T) {
	f := newHandlerFixture(t, true)

	_, err := f.store.Enqueue(context.Background(), domain.SubmissionPayload{
		IncidentID: "inc-1", Name: "alice", Needs: "water",
	})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/v1/queue/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "queue-export.json")

	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)
}

func TestHandler_ResetRetries(t *testing.T) {
	f := newHandlerFixture(t, true)
	ctx := context.Background()

	id, err := f.store.Enqueue(ctx, domain.SubmissionPayload{IncidentID: "inc-1", Name: "alice", Needs: "water"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.RecordFailure(ctx, id, "unreachable"))
	}

	rec := f.do(http.MethodPost, "/api/v1/queue/1/reset-retries", "")
	require.Equal(t, http.StatusOK, rec.Code)

	items, err := f.store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].RetryCount)
}

func TestHandler_ResetRetries_BadID(t *testing.T) {
	f := newHandlerFixture(t, true)

	rec := f.do(http.MethodPost, "/api/v1/queue/abc/reset-retries", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ClearQueue(t *testing.T) {
	f := newHandlerFixture(t, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.store.Enqueue(ctx, domain.SubmissionPayload{IncidentID: "inc-1", Name: "alice", Needs: "water"})
		require.NoError(t, err)
	}

	rec := f.do(http.MethodDelete, "/api/v1/queue", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
