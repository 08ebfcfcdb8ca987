package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/host/ws"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nativebridge/internal/providers/probe"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, origin string) (*Server, *monitoring.Metrics) {
	t.Helper()
	reg := bridge.NewRegistry()
	_, err := reg.Register(probe.New())
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	host := ws.NewHost(ws.WithCheckOrigin(CheckOrigin(origin)))
	require.NoError(t, bridge.NewDispatcher(reg, bridge.WithRecorder(metrics)).Install(host))

	cfg := config.Default().Server
	cfg.AllowedOrigin = origin
	return NewServer(cfg, Deps{Registry: reg, Host: host, Metrics: metrics}), metrics
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestChannels(t *testing.T) {
	s, _ := newServer(t, "")

	w := get(t, s.Handler(), "/channels")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Channels []bridge.ChannelInfo `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Channels, 1)
	assert.Equal(t, "geckoBridge", body.Channels[0].Name)
	assert.Equal(t, []string{"communicationTest"}, body.Channels[0].Actions)
	assert.False(t, body.Channels[0].Streaming)
}

func TestHealthAndRoot(t *testing.T) {
	s, _ := newServer(t, "")

	w := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"connections":0`)

	w = get(t, s.Handler(), "/")
	assert.Contains(t, w.Body.String(), `"channels":1`)
}

func TestBridgeEndpointAndMetrics(t *testing.T) {
	s, _ := newServer(t, "")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteMessage(websocket.TextMessage,
		[]byte(`{"kind":"call","id":"1","channel":"geckoBridge","payload":{"action":"communicationTest","data":{"a":1}}}`)))
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)

	var reply ws.Frame
	require.NoError(t, bridge.DecodeInto(data, &reply))
	require.NotNil(t, reply.OK)
	assert.True(t, *reply.OK)
	a, _ := reply.Value.Field("a")
	assert.Equal(t, "1", a.Text())

	w := get(t, s.Handler(), "/metrics")
	assert.Contains(t, w.Body.String(), `bridge_calls_total{action="communicationTest",channel="geckoBridge",status="ok"} 1`)
}

func TestOrigins(t *testing.T) {
	s, _ := newServer(t, "http://app.local")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.local"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	c, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://app.local"}})
	require.NoError(t, err)
	c.Close()

	req := httptest.NewRequest(http.MethodOptions, "/channels", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/bridge", nil)
	r.Header.Set("Origin", "http://a")
	assert.True(t, CheckOrigin("")(r))
	assert.True(t, CheckOrigin("http://a")(r))
	assert.False(t, CheckOrigin("http://b")(r))
}

func TestServeStopsOnCancel(t *testing.T) {
	s, _ := newServer(t, "")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/bridge"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()
	require.Eventually(t, func() bool { return s.host.Connections() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = c.ReadMessage()
	assert.Error(t, err, "websocket closed on shutdown")
}

func TestRateLimitedServer(t *testing.T) {
	reg := bridge.NewRegistry()
	host := ws.NewHost()
	cfg := config.Default().Server
	cfg.RateLimit, cfg.RateBurst = 0.001, 1
	s := NewServer(cfg, Deps{Registry: reg, Host: host})

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/health").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, s.Handler(), "/health").Code)
}
