package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/botworker"
	channelmemory "github.com/JakeFAU/browserbot-relay/internal/channel/memory"
	"github.com/JakeFAU/browserbot-relay/internal/participant"
	participantmemory "github.com/JakeFAU/browserbot-relay/internal/participant/memory"
)

const testPrefix = "bw-api-test"

// newServedServer starts a worker on an in-memory channel and returns the ops
// server wired to it, plus the worker for state assertions.
func newServedServer(t *testing.T) (*Server, *botworker.Worker, *channelmemory.Channel) {
	t.Helper()

	store := participantmemory.NewStore()
	store.Add(participant.Participant{Code: "abc123", SessionCode: "sess1"})
	ch := channelmemory.New()
	w := botworker.NewWorker(store, botworker.StaticSourceFactory(), nil, botworker.WorkerConfig{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Listen(ctx, ch, botworker.ListenConfig{Prefix: testPrefix, PopTimeout: 20 * time.Millisecond})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return NewServer(ch, testPrefix, botworker.CodeCharset, zap.NewNop()), w, ch
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _, _ := newServedServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz_WorkerListening(t *testing.T) {
	t.Parallel()

	s, _, _ := newServedServer(t)
	rec := doRequest(t, s, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ready", body["status"])
}

func TestReadyz_NoWorker(t *testing.T) {
	t.Parallel()

	// No receive loop is running on this channel.
	s := NewServer(channelmemory.New(), testPrefix, botworker.CodeCharset, zap.NewNop())
	rec := doRequest(t, s, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminClear(t *testing.T) {
	t.Parallel()

	s, w, _ := newServedServer(t)
	require.NoError(t, w.InitializeParticipant(context.Background(), "abc123"))
	require.Equal(t, 1, w.SessionCount())

	rec := doRequest(t, s, http.MethodPost, "/v1/admin/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["ok"])
	require.Zero(t, w.SessionCount())
}

func TestAdminFlush(t *testing.T) {
	t.Parallel()

	s, _, ch := newServedServer(t)
	ctx := context.Background()

	// Stale requests parked on listen keys outside the running worker's pop
	// rotation would survive; seed a couple and flush a subrange.
	require.NoError(t, ch.Push(ctx, testPrefix+"-A", []byte("{}")))
	require.NoError(t, ch.Push(ctx, testPrefix+"-B", []byte("{}")))

	rec := doRequest(t, s, http.MethodPost, "/v1/admin/flush", `{"char_range":"A-B"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body["removed"])
}

func TestAdminFlush_BadJSON(t *testing.T) {
	t.Parallel()

	s, _, _ := newServedServer(t)
	rec := doRequest(t, s, http.MethodPost, "/v1/admin/flush", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, _, _ := newServedServer(t)
	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
