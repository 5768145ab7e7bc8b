// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakepool/log"
)

type mockLogger struct {
	loggedData []any
}

func (m *mockLogger) With(_ ...any) log.Logger                    { return m }
func (m *mockLogger) Trace(_ string, _ ...any)                    {}
func (m *mockLogger) Debug(_ string, _ ...any)                    {}
func (m *mockLogger) Error(_ string, _ ...any)                    {}
func (m *mockLogger) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (m *mockLogger) Info(_ string, ctx ...any) {
	m.loggedData = append(m.loggedData, ctx...)
}

func (m *mockLogger) Warn(_ string, ctx ...any) {
	m.loggedData = append(m.loggedData, ctx...)
}

func TestRequestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		enabled   bool
		threshold time.Duration
		log5xx    bool
		shouldLog bool
	}{
		{
			name:      "enabled",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("OK")) },
			enabled:   true,
			shouldLog: true,
		},
		{
			name:    "disabled",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("OK")) },
		},
		{
			name: "slow",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				time.Sleep(15 * time.Millisecond)
				w.WriteHeader(http.StatusOK)
			},
			threshold: 10 * time.Millisecond,
			shouldLog: true,
		},
		{
			name:      "fast",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
			threshold: time.Second,
		},
		{
			name:      "5xx",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			log5xx:    true,
			shouldLog: true,
		},
		{
			name:    "4xx",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			log5xx:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			enabled := &atomic.Bool{}
			enabled.Store(tt.enabled)

			handler := RequestLoggerMiddleware(logger, enabled, tt.threshold, tt.log5xx)(tt.handler)
			req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{"op":"top_up"}`))
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !tt.shouldLog {
				assert.Empty(t, logger.loggedData)
				return
			}
			require.NotEmpty(t, logger.loggedData)
			assert.Contains(t, logger.loggedData, "URI")
			assert.Contains(t, logger.loggedData, `{"op":"top_up"}`)
		})
	}
}

func TestBodyStillReadable(t *testing.T) {
	enabled := &atomic.Bool{}
	enabled.Store(true)

	var got string
	handler := RequestLoggerMiddleware(&mockLogger{}, enabled, 0, false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("body")))
	assert.Equal(t, "body", got)
}

func TestMetricsMiddleware(t *testing.T) {
	router := mux.NewRouter()
	router.Path("/treasury").Name("treasury").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Use(MetricsMiddleware)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/treasury", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
