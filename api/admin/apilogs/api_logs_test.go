// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package apilogs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestAPILogs(t *testing.T) {
	enabled := &atomic.Bool{}
	router := mux.NewRouter()
	New(enabled).Mount(router, "/admin/apilogs")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/apilogs", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"enabled":false}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/apilogs", strings.NewReader(`{"enabled":true}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"enabled":true}`, rr.Body.String())
	assert.True(t, enabled.Load())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/apilogs", strings.NewReader(`{"on":true}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, enabled.Load())
}
