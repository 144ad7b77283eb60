package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := map[string]string{
		"":             "127.0.0.1:8080",
		"garbage":      "127.0.0.1:8080",
		"0.0.0.0:9090": "127.0.0.1:9090",
		":9090":        "127.0.0.1:9090",
		"[::]:9090":    "127.0.0.1:9090",
		"10.0.0.5:80":  "10.0.0.5:80",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, normalizeAddr(in))
		})
	}
}

func TestCheck(t *testing.T) {
	serve := func(status int, body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	}

	t.Run("healthy", func(t *testing.T) {
		srv := serve(http.StatusOK, `{"status":"ok"}`)
		defer srv.Close()
		assert.Equal(t, 0, check(srv.URL, time.Second))
	})

	t.Run("wrong status body", func(t *testing.T) {
		srv := serve(http.StatusOK, `{"status":"degraded"}`)
		defer srv.Close()
		assert.Equal(t, 1, check(srv.URL, time.Second))
	})

	t.Run("server error", func(t *testing.T) {
		srv := serve(http.StatusInternalServerError, `{"error":"boom"}`)
		defer srv.Close()
		assert.Equal(t, 1, check(srv.URL, time.Second))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := serve(http.StatusOK, `{"status":"ok"}`)
		url := srv.URL
		srv.Close()
		assert.Equal(t, 1, check(url, time.Second))
	})
}
