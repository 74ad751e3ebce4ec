package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type optimizeReq struct {
	Symbols   []string `json:"symbols" validate:"required,min=2"`
	Objective string   `json:"objective" default:"max_sharpe" validate:"oneof=max_sharpe min_volatility"`
	Lookback  int      `json:"lookback" default:"504" validate:"gte=30"`
}

func newJSONContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	c, _ := newJSONContext(t, `{"symbols":["AAPL","MSFT"]}`)
	var req optimizeReq
	require.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "max_sharpe", req.Objective)
	assert.Equal(t, 504, req.Lookback)
}

func TestReadAndValidateRequestReportsFields(t *testing.T) {
	c, _ := newJSONContext(t, `{"symbols":["AAPL"],"objective":"yolo"}`)
	var req optimizeReq
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_MIN", errs[0].Code)
	assert.Equal(t, "symbols", errs[0].Field)
	assert.Equal(t, "ERR_ONEOF", errs[1].Code)
	assert.Equal(t, []string{"max_sharpe", "min_volatility"}, errs[1].Params["options"])
}

func TestReadAndValidateRequestMalformedBody(t *testing.T) {
	c, _ := newJSONContext(t, `{"symbols":`)
	var req optimizeReq
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	assert.Equal(t, "ERR_UNKNOWN", errs[0].Code)
}

func TestAppErrorResponseUsesStatus(t *testing.T) {
	c, rec := newJSONContext(t, ``)
	err := UnprocessableError("ERR_INSUFFICIENT_DATA", "need 20 bars").WithParam("bars", 5)
	require.NoError(t, AppErrorResponse(c, err))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnprocessableEntity, body.Status)
	assert.Equal(t, "ERR_INSUFFICIENT_DATA", body.Data[0].Code)
	assert.EqualValues(t, 5, body.Data[0].Params["bars"])
}

func TestAppErrorResponseHidesUnknownErrors(t *testing.T) {
	c, rec := newJSONContext(t, ``)
	require.NoError(t, AppErrorResponse(c, errors.New("dial tcp: refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })
}

func TestServerRoutesMetricsAndRecovery(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer([]Handler{pingHandler{}}, WithPrometheus(reg, reg))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/ping",status="200"} 1`)
}

func TestSymbolValidation(t *testing.T) {
	type req struct {
		Symbols []string `json:"symbols" validate:"dive,symbol"`
	}
	assert.Nil(t, ValidateStruct(req{Symbols: []string{"AAPL", "BRK.B", "^GSPC"}}))

	errs, ok := ValidateStruct(req{Symbols: []string{"AAPL", "DROP TABLE"}}).([]ValidationError)
	require.True(t, ok)
	assert.Equal(t, "ERR_SYMBOL", errs[0].Code)
	assert.Equal(t, "symbols[1]", errs[0].Field)
}

func TestServerStartBindsAndStops(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer([]Handler{pingHandler{}}, WithAddr("127.0.0.1", 0), WithPrometheus(reg, reg), WithMetricsPath(""))
	require.NoError(t, s.Start())
	require.NotEmpty(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
}

func TestServerStartReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := NewServer(nil, WithAddr("127.0.0.1", port), WithPrometheus(prometheus.NewRegistry(), nil), WithMetricsPath(""))
	assert.ErrorContains(t, s.Start(), "listen")
}
