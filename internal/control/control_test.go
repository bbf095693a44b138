package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/feedrelay/internal/metrics"
	"github.com/ibeckermayer/feedrelay/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHandler struct {
	mu       sync.Mutex
	messages []session.Message
	status   session.Status
}

func (h *fakeHandler) HandleMessage(_ context.Context, msg session.Message) session.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return session.Response{Status: session.StatusSuccess}
}

func (h *fakeHandler) Status() session.Status {
	return h.status
}

func TestClientRoundTrip(t *testing.T) {
	h := &fakeHandler{status: session.Status{Enabled: true, Running: true, Buffered: 4, Seen: 10}}
	srv := httptest.NewServer(NewServer("", h, metrics.New(), nil).Handler())
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.SetAutoSave(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, session.StatusSuccess, resp.Status)
	require.Len(t, h.messages, 1)
	assert.Equal(t, session.Message{Action: session.ActionToggleAutoSave, Enabled: true}, h.messages[0])

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.status, st)
}

func TestClientAcceptsHostPort(t *testing.T) {
	srv := httptest.NewServer(NewServer("", &fakeHandler{}, nil, nil).Handler())
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	_, err := c.Status(context.Background())
	assert.NoError(t, err)
}

func TestMessageRequiresAction(t *testing.T) {
	h := &fakeHandler{}
	router := NewServer("", h, nil, nil).Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{"enabled":true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.messages)
}

func TestUnknownActionStillSucceeds(t *testing.T) {
	router := NewServer("", &fakeHandler{}, nil, nil).Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{"action":"ping"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	m.RecordsDelivered.Add(2)
	router := NewServer("", &fakeHandler{}, m, nil).Handler()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feedrelay_records_delivered_total 2")
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Status(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer("127.0.0.1:0", &fakeHandler{}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
