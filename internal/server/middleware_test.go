package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		header     map[string]string
		want       string
		trustProxy bool
	}{
		{"remote addr", nil, "192.0.2.1", false},
		{"proxy headers ignored", map[string]string{"X-Forwarded-For": "198.51.100.7"}, "192.0.2.1", false},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "198.51.100.9", "X-Forwarded-For": "198.51.100.7"}, "198.51.100.9", true},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": " 198.51.100.7 , 10.0.0.1"}, "198.51.100.7", true},
		{"empty forwarded hop", map[string]string{"X-Forwarded-For": ", 10.0.0.1"}, "192.0.2.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.1:51234"
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trustProxy))
		})
	}
}

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(2, time.Hour)
	now := time.Now()

	assert.True(t, l.allow("192.0.2.1", now))
	assert.True(t, l.allow("192.0.2.1", now))
	assert.False(t, l.allow("192.0.2.1", now))
	// buckets are per address
	assert.True(t, l.allow("192.0.2.2", now))

	l.prune(now.Add(time.Second))
	assert.Empty(t, l.clients)
	assert.True(t, l.allow("192.0.2.1", now))
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	srv := New(&fakeEngine{}, nil, nil, testConfig())
	h := srv.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mc.example.com", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, buf.String(), `"status":503`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"path":"/mc.example.com"`)
}

func TestStatusWriterWithoutHijacker(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := sw.Hijack()
	assert.Error(t, err)
}
