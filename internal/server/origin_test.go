package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   string
		ok     bool
	}{
		{"http://example.com", "http://example.com", true},
		{"HTTP://EXAMPLE.COM", "http://example.com", true},
		{"https://Chat.Example.com:8443", "https://chat.example.com:8443", true},
		{"not-a-url", "", false},
		{"://missing-scheme", "", false},
		{"http://", "", false},
		{"ftp://unsupported-scheme.com", "", false},
		{"javascript:alert(1)", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			got, ok := normalizeOrigin(tt.origin)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOriginPolicy(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	t.Run("allow list", func(t *testing.T) {
		req := require.New(t)
		p := newOriginPolicy(log, []string{"http://example.com", "not a url", ""})

		req.True(p.checkOrigin(request("http://example.com")))
		req.True(p.checkOrigin(request("http://EXAMPLE.com")))
		req.False(p.checkOrigin(request("http://evil.com")))
		req.False(p.checkOrigin(request("")))
		req.False(p.checkOrigin(request("javascript:alert(1)")))
	})

	t.Run("wildcard", func(t *testing.T) {
		req := require.New(t)
		p := newOriginPolicy(log, []string{"*"})

		req.True(p.checkOrigin(request("http://anything.example")))
		req.False(p.checkOrigin(request("")))
	})

	t.Run("empty allow list", func(t *testing.T) {
		p := newOriginPolicy(log, nil)
		require.False(t, p.checkOrigin(request("http://localhost:8080")))
	})
}
