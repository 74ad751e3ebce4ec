package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ares/pkg/logger"
)

func newEcho() *echo.Echo {
	e := echo.New()
	log := logger.Nop()
	e.Use(RequestID(), Recover(log), RequestLogging(log), Metrics(prometheus.NewRegistry(), log, 0))
	e.Use(CORS(CORSConfig{
		AllowOrigins: []string{"https://app.example"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, GetRequestID(c)) })
	e.GET("/panic", func(echo.Context) error { panic("boom") })
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDAssignedAndPropagated(t *testing.T) {
	e := newEcho()

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ok", nil))
	id := rec.Header().Get(echo.HeaderXRequestID)
	require.Len(t, id, 36)
	assert.Equal(t, id, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderXRequestID, "scan-42")
	rec = serve(e, req)
	assert.Equal(t, "scan-42", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRecoverAnswersWithRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(echo.HeaderXRequestID, "r-1")
	rec := serve(newEcho(), req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"request_id":"r-1"`)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestCORSPreflight(t *testing.T) {
	e := newEcho()

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := serve(e, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example")
	rec = serve(e, req)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
