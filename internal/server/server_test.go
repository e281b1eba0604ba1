package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mcstatus/assets"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/status"
	"github.com/woozymasta/mcstatus/internal/storage"
)

const testToken = "secret"

type fakeEngine struct {
	result  *models.StatusResult
	mu      sync.Mutex
	queries []models.ServerQuery
	panics  bool
}

func (f *fakeEngine) Resolve(_ context.Context, q models.ServerQuery) *models.StatusResult {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.panics {
		panic("engine exploded")
	}
	if f.result == nil {
		return status.Offline(q.Host, q.FamilyOrDefault().DefaultPort(), q.FamilyOrDefault())
	}
	res := *f.result
	return &res
}

func (f *fakeEngine) lastQuery() models.ServerQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func onlineResult() *models.StatusResult {
	return &models.StatusResult{
		Name:          "§aHello",
		NameHTML:      `<span style="color: #55FF55">Hello</span>`,
		Map:           "1.20.4",
		Connect:       "mc.example.com:25565",
		Version:       "1.20.4",
		ServerType:    models.FamilyJava,
		Players:       []models.PlayerSample{{Name: "Alex"}},
		MaxPlayers:    20,
		OnlinePlayers: 1,
		Online:        true,
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.AuthToken = testToken
	cfg.Server.BaseURL = "https://status.example.com/"
	cfg.Server.DeniedHosts = []string{"localhost"}
	cfg.Server.WatchInterval = 50 * time.Millisecond
	cfg.RateLimit.HardLimitCount = 1000
	return cfg
}

func newTestServer(t *testing.T, engine StatusResolver, store *storage.Repository, cfg *config.Config) (*Server, http.Handler) {
	t.Helper()

	srv := New(engine, store, nil, cfg)
	srv.StartWorkers()
	t.Cleanup(srv.StopWorkers)

	return srv, srv.Run()
}

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusJSON(t *testing.T) {
	engine := &fakeEngine{result: onlineResult()}
	_, h := newTestServer(t, engine, nil, testConfig())

	rec := do(h, http.MethodGet, "/mc.example.com", map[string]string{"Accept": "application/json"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got models.StatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *onlineResult(), got)
	assert.Equal(t, models.ServerQuery{Host: "mc.example.com", Family: models.FamilyJava}, engine.lastQuery())
}

func TestStatusJSONOfflineIsBadRequest(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{}, nil, testConfig())

	rec := do(h, http.MethodGet, "/down.example.com", map[string]string{"Accept": "application/json"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Server Offline"`)
	assert.Contains(t, rec.Body.String(), `"players":[]`)
}

func TestStatusParsesParameters(t *testing.T) {
	engine := &fakeEngine{result: onlineResult()}
	_, h := newTestServer(t, engine, nil, testConfig())

	tests := []struct {
		target string
		want   models.ServerQuery
	}{
		{"/mc.example.com?port=25566&query=25666", models.ServerQuery{Host: "mc.example.com", Family: models.FamilyJava, Port: 25566, QueryPort: 25666}},
		{"/mc.example.com:25570", models.ServerQuery{Host: "mc.example.com", Family: models.FamilyJava, Port: 25570}},
		{"/be.example.com?is_bedrock=true", models.ServerQuery{Host: "be.example.com", Family: models.FamilyBedrock}},
		{"/be.example.com?is_bedrock=false", models.ServerQuery{Host: "be.example.com", Family: models.FamilyJava}},
		{"/MC.example.com.", models.ServerQuery{Host: "MC.example.com", Family: models.FamilyJava}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, map[string]string{"Accept": "application/json"})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, engine.lastQuery())
		})
	}
}

func TestStatusRejectsBadRequests(t *testing.T) {
	engine := &fakeEngine{result: onlineResult()}
	_, h := newTestServer(t, engine, nil, testConfig())

	tests := []struct {
		target string
		accept string
		code   int
	}{
		{"/mc.example.com?port=abc", "application/json", http.StatusBadRequest},
		{"/mc.example.com?port=70000", "application/json", http.StatusBadRequest},
		{"/mc.example.com?query=0", "application/json", http.StatusBadRequest},
		{"/localhost", "application/json", http.StatusForbidden},
		{"/LocalHost.", "application/json", http.StatusForbidden},
		{"/mc.example.com", "image/webp", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, map[string]string{"Accept": tt.accept})
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	assert.Empty(t, engine.queries)

	rec := do(h, http.MethodGet, "/mc.example.com", map[string]string{"Accept": "image/webp"})
	assert.JSONEq(t, `{"message":"Unsupported Accept Headers","error":{}}`, rec.Body.String())
}

func TestStatusEmbedWithoutAccept(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{result: onlineResult()}, nil, testConfig())

	rec := do(h, http.MethodGet, "/mc.example.com?port=25566", nil)
	body := rec.Body.String()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, `<meta content="IP: mc.example.com" property="og:title" />`)
	assert.Contains(t, body, "Hello\nPlayers: 1/20\nVersion: 1.20.4")
	assert.Contains(t, body, `https://status.example.com/icon/mc.example.com?port=25566`)
	assert.NotContains(t, body, "§a")
}

func TestStatusHTML(t *testing.T) {
	res := onlineResult()
	res.Favicon = "data:image/png;base64,AAAA"
	_, h := newTestServer(t, &fakeEngine{result: res}, nil, testConfig())

	rec := do(h, http.MethodGet, "/mc.example.com", map[string]string{"Accept": "text/html,application/xhtml+xml"})
	body := rec.Body.String()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "<title>mc.example.com</title>")
	assert.Contains(t, body, `<span style="color: #55FF55">Hello</span>`)
	assert.Contains(t, body, `<img src="data:image/png;base64,AAAA" alt="Server Icon" />`)
	assert.Contains(t, body, "<p>Players: 1/20</p>")
}

func TestStatusHTMLWithoutFaviconLinksIcon(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{result: onlineResult()}, nil, testConfig())

	rec := do(h, http.MethodGet, "/mc.example.com", map[string]string{"Accept": "text/html"})
	assert.Contains(t, rec.Body.String(), `<img src="https://status.example.com/icon/mc.example.com" alt="Server Icon" />`)
}

func TestIcon(t *testing.T) {
	png := []byte("\x89PNG fake")
	res := onlineResult()
	res.Favicon = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	_, h := newTestServer(t, &fakeEngine{result: res}, nil, testConfig())

	rec := do(h, http.MethodGet, "/icon/mc.example.com", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestIconDefault(t *testing.T) {
	want, err := assets.ReadFile(assets.DefaultIcon)
	require.NoError(t, err)

	for _, favicon := range []string{"", "data:image/png;base64,!!!not-base64"} {
		res := onlineResult()
		res.Favicon = favicon
		_, h := newTestServer(t, &fakeEngine{result: res}, nil, testConfig())

		rec := do(h, http.MethodGet, "/icon/mc.example.com", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, rec.Body.Bytes())
	}
}

func TestIndexAndVersion(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{}, nil, testConfig())

	rec := do(h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://status.example.com/your.server.ip?port=25566")

	rec = do(h, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"mcstatus"`)

	rec = do(h, http.MethodGet, "/a/b/c", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{panics: true}, nil, testConfig())

	rec := do(h, http.MethodGet, "/mc.example.com", map[string]string{"Accept": "application/json"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal Server Error","error":{}}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.HardLimitCount = 2
	cfg.RateLimit.HardLimitWin = time.Hour
	_, h := newTestServer(t, &fakeEngine{result: onlineResult()}, nil, cfg)

	accept := map[string]string{"Accept": "application/json"}
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/mc.example.com", accept).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/icon/mc.example.com", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/mc.example.com", accept).Code)

	// non-resolving routes are not limited
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/version", nil).Code)
}

func TestAdminAPI(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UTC()
	require.NoError(t, store.UpsertServer(models.ServerFromStatus("mc.example.com", 0, onlineResult(), now)))

	_, h := newTestServer(t, &fakeEngine{result: onlineResult()}, store, testConfig())
	auth := map[string]string{"Authorization": "Bearer " + testToken}

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/servers", nil).Code)

	rec := do(h, http.MethodGet, "/api/servers", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var servers []models.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &servers))
	require.Len(t, servers, 1)
	assert.Equal(t, "mc.example.com", servers[0].Host)

	rec = do(h, http.MethodGet, "/api/server?host=mc.example.com", auth)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/server?host=other.example.com", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodDelete, "/api/server?host=mc.example.com&port=0", auth)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := store.GetServer("mc.example.com", 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAdminAPIDisabledWithoutToken(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AuthToken = ""
	_, h := newTestServer(t, &fakeEngine{}, nil, cfg)

	rec := do(h, http.MethodGet, "/api/servers", map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolutionsAreRecorded(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := New(&fakeEngine{result: onlineResult()}, store, nil, testConfig())
	srv.StartWorkers()
	h := srv.Run()

	accept := map[string]string{"Accept": "application/json"}
	do(h, http.MethodGet, "/203.0.113.7?port=25570", accept)
	// soft window skips the second write
	do(h, http.MethodGet, "/203.0.113.7?port=25570", accept)

	srv.StopWorkers()

	got, err := store.GetServer("203.0.113.7", 25570)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "203.0.113.7", got.IP)
	assert.Equal(t, "§aHello", got.Name)
	assert.Equal(t, int64(1), got.Count)
}

func TestWatchStreamsStatus(t *testing.T) {
	engine := &fakeEngine{result: onlineResult()}
	_, h := newTestServer(t, engine, nil, testConfig())

	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/watch/mc.example.com?port=25566"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got models.StatusResult
		require.NoError(t, conn.ReadJSON(&got))
		assert.True(t, got.Online)
		assert.Equal(t, "1.20.4", got.Version)
	}

	assert.Equal(t, uint16(25566), engine.lastQuery().Port)
}

func TestWatchRejectsDeniedHost(t *testing.T) {
	_, h := newTestServer(t, &fakeEngine{}, nil, testConfig())

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/watch/localhost")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEnqueueAfterStopWorkersIsDropped(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := New(&fakeEngine{result: onlineResult()}, store, nil, testConfig())
	srv.StartWorkers()
	srv.StopWorkers()

	q := models.ServerQuery{Host: "203.0.113.9", Port: 25565}
	assert.NotPanics(t, func() { srv.enqueue(q, onlineResult()) })
	assert.NotPanics(t, srv.StopWorkers)

	got, err := store.GetServer("203.0.113.9", 25565)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnqueueRacesStopWorkers(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	cfg.RateLimit.SoftLimitDur = 0
	srv := New(&fakeEngine{result: onlineResult()}, store, nil, cfg)
	srv.StartWorkers()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				srv.enqueue(models.ServerQuery{Host: "203.0.113.10", Port: 25565}, onlineResult())
			}
		}()
	}

	srv.StopWorkers()
	wg.Wait()
}
