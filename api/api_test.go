package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpert/mxbridge/bridge"
	"github.com/maxpert/mxbridge/encoding"
	"github.com/maxpert/mxbridge/engine"
	"github.com/maxpert/mxbridge/engine/lite"
	"github.com/maxpert/mxbridge/journal"
)

type testServer struct {
	*httptest.Server
	sessions *SessionManager
	secret   string
}

type serverOption func(*serverConfig)

type serverConfig struct {
	secret   string
	patterns []string
	history  History
	max      int
	zstd     *encoding.Zstd
	opts     []bridge.Option
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	c := serverConfig{max: 8}
	for _, o := range opts {
		o(&c)
	}

	filter, err := NewVariableFilter(c.patterns)
	require.NoError(t, err)
	sessions := NewSessionManager(lite.New(), c.max, c.opts...)
	handlers := NewHandlers(sessions, filter, c.history, "", 50)

	mux := http.NewServeMux()
	RegisterRoutes(mux, handlers, c.secret, c.zstd)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = sessions.CloseAll(context.Background())
	})
	return &testServer{Server: srv, sessions: sessions, secret: c.secret}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("X-Mxbridge-Secret", s.secret)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *testServer) open(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, status, body)
	return body["data"].(map[string]interface{})["id"].(string)
}

func TestSessionFlow(t *testing.T) {
	srv := newTestServer(t)
	id := srv.open(t)
	base := "/api/sessions/" + id

	status, body := srv.do(t, http.MethodPost, base+"/eval", map[string]string{"command": "D = 1:5"})
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "D =\n\n     1     2     3     4     5\n\n", data["output"])
	assert.Nil(t, data["value"])

	status, body = srv.do(t, http.MethodGet, base+"/variables/D", nil)
	require.Equal(t, http.StatusOK, status, body)
	value := body["data"].(map[string]interface{})
	assert.Equal(t, float64(bridge.Double), value["tag"])
	assert.Equal(t, true, value["is_array"])
	assert.Equal(t, []interface{}{[]interface{}{1.0, 2.0, 3.0, 4.0, 5.0}}, value["matrix"])

	status, body = srv.do(t, http.MethodPut, base+"/variables/A", map[string]interface{}{
		"matrix": [][]float64{{1, 2}, {3, 4}},
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = srv.do(t, http.MethodPut, base+"/variables/b", map[string]interface{}{
		"value": []int{1, 1},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 2.0, body["data"].(map[string]interface{})["registered"])

	status, body = srv.do(t, http.MethodPost, base+"/eval", map[string]string{"command": "c = A * b';", "result": "c"})
	require.Equal(t, http.StatusOK, status, body)
	value = body["data"].(map[string]interface{})["value"].(map[string]interface{})
	assert.Equal(t, []interface{}{[]interface{}{3.0}, []interface{}{7.0}}, value["matrix"])

	status, body = srv.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status, body)
	info := body["data"].(map[string]interface{})
	assert.Equal(t, "open", info["state"])
	assert.Len(t, info["variables"], 2)

	status, body = srv.do(t, http.MethodDelete, base+"/variables", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 2.0, body["data"].(map[string]interface{})["released"])

	status, _ = srv.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, srv.sessions.Len())

	status, _ = srv.do(t, http.MethodGet, base+"/output", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestEvalErrors(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/sessions/" + srv.open(t)

	status, body := srv.do(t, http.MethodPost, base+"/eval", map[string]string{"command": "x = undefinedThing + 1"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["output"], "Undefined")

	status, _ = srv.do(t, http.MethodPost, base+"/eval", map[string]string{"command": "   "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = srv.do(t, http.MethodPut, base+"/variables/r", map[string]interface{}{
		"matrix": [][]float64{{1, 2}, {3}},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = srv.do(t, http.MethodPut, base+"/variables/r", map[string]interface{}{"value": "text"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = srv.do(t, http.MethodPut, base+"/variables/r", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = srv.do(t, http.MethodGet, base+"/variables/missing", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(bridge.Null), body["data"].(map[string]interface{})["tag"])
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodPost, "/api/sessions/nope/eval", map[string]string{"command": "x = 1"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "session not found")

	status, _ = srv.do(t, http.MethodDelete, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionLimit(t *testing.T) {
	srv := newTestServer(t, func(c *serverConfig) { c.max = 1 })
	srv.open(t)

	status, _ := srv.do(t, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestEngineUnavailable(t *testing.T) {
	srv := newTestServer(t, func(c *serverConfig) {
		c.opts = []bridge.Option{bridge.WithStartEngine(false)}
	})

	status, _ := srv.do(t, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Zero(t, srv.sessions.Len())

	// The failed attempt does not count against the limit.
	opens, _ := srv.sessions.RegistryStats()
	assert.Zero(t, opens)
}

func TestVariablePatterns(t *testing.T) {
	srv := newTestServer(t, func(c *serverConfig) { c.patterns = []string{"out_*", "in?"} })
	base := "/api/sessions/" + srv.open(t)

	status, _ := srv.do(t, http.MethodPut, base+"/variables/in1", map[string]interface{}{"value": 2})
	assert.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodPut, base+"/variables/secret", map[string]interface{}{"value": 2})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodPost, base+"/eval", map[string]string{"command": "out_x = in1 * 2;", "result": "out_x"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodPost, base+"/eval", map[string]string{"command": "y = 1;", "result": "y"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, func(c *serverConfig) { c.secret = "s3cret" })

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong secret", map[string]string{"X-Mxbridge-Secret": "nope"}, http.StatusUnauthorized},
		{"bad scheme", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
		{"secret header", map[string]string{"X-Mxbridge-Secret": "s3cret"}, http.StatusCreated},
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sessions", nil)
			require.NoError(t, err)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMsgpackAndZstd(t *testing.T) {
	srv := newTestServer(t, func(c *serverConfig) { c.zstd = encoding.NewZstd(1) })
	base := "/api/sessions/" + srv.open(t)

	payload, err := encoding.Marshal(map[string]interface{}{"command": "m = eye(3) * 2;", "result": "m"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+base+"/eval", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", encoding.ContentTypeMsgPack)
	req.Header.Set("Accept", encoding.ContentTypeMsgPack)
	req.Header.Set("Accept-Encoding", "zstd")

	// Use a transport that does not negotiate gzip on its own.
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, encoding.ContentTypeMsgPack, resp.Header.Get("Content-Type"))
	assert.Equal(t, "zstd", resp.Header.Get("Content-Encoding"))

	r, err := encoding.NewZstd(1).Decompress(resp.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)

	var out struct {
		Data struct {
			Value  bridge.Value `msgpack:"value"`
			Output string       `msgpack:"output"`
		} `msgpack:"data"`
	}
	require.NoError(t, encoding.Unmarshal(raw, &out))
	assert.Equal(t, bridge.Double, out.Data.Value.Tag)
	assert.Equal(t, [][]float64{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}, out.Data.Value.Matrix)
	assert.Empty(t, out.Data.Output)
}

func TestHistory(t *testing.T) {
	store, err := journal.Open(":memory:", 16, 5*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := newTestServer(t, func(c *serverConfig) {
		c.history = store
		c.opts = []bridge.Option{bridge.WithJournal(store)}
	})
	base := "/api/sessions/" + srv.open(t)

	for _, cmd := range []string{"a = 1;", "b = 2;", "plot_a = a + b;"} {
		status, _ := srv.do(t, http.MethodPost, base+"/eval", map[string]string{"command": cmd})
		require.Equal(t, http.StatusOK, status)
	}

	var entries []interface{}
	require.Eventually(t, func() bool {
		status, body := srv.do(t, http.MethodGet, base+"/history", nil)
		if status != http.StatusOK {
			return false
		}
		entries, _ = body["data"].([]interface{})
		return len(entries) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "plot_a = a + b;", entries[0].(map[string]interface{})["command"])

	status, body := srv.do(t, http.MethodGet, base+"/history?match=%5Eplot&limit=5", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["data"], 1)

	status, _ = srv.do(t, http.MethodGet, base+"/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/sessions/" + srv.open(t)

	status, body := srv.do(t, http.MethodGet, base+"/history", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "journal is disabled", body["error"])
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrSessionNotFound, http.StatusNotFound},
		{bridge.ErrEngineUnavailable, http.StatusServiceUnavailable},
		{bridge.ErrNotOpen, http.StatusConflict},
		{bridge.ErrSessionClosed, http.StatusConflict},
		{&bridge.RaggedRowError{Row: 1, Want: 2, Got: 1}, http.StatusBadRequest},
		{&engine.StatusError{Op: "eval", Status: 1}, http.StatusUnprocessableEntity},
		{&bridge.DimensionError{Dims: []int{1, 1, 2}}, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestVariableFilter(t *testing.T) {
	f, err := NewVariableFilter(nil)
	require.NoError(t, err)
	assert.True(t, f.Allowed("anything"))

	f, err = NewVariableFilter([]string{"res_*"})
	require.NoError(t, err)
	assert.True(t, f.Allowed("res_1"))
	assert.False(t, f.Allowed("other"))

	_, err = NewVariableFilter([]string{"[bad"})
	assert.Error(t, err)
}

func TestRegistryStats(t *testing.T) {
	srv := newTestServer(t)
	a := srv.open(t)
	srv.open(t)

	status, _ := srv.do(t, http.MethodPut, "/api/sessions/"+a+"/variables/x", map[string]interface{}{"value": [][]int{{1, 2}}})
	require.Equal(t, http.StatusOK, status)

	opens, entries := srv.sessions.RegistryStats()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 1, entries)
}
