package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/response"
	"github.com/stretchr/testify/require"
)

func newRequest(method, target, body string, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func gatewayResponse(code int, message string, data any) *baokim.Response {
	return &baokim.Response{
		Success: baokim.MasterSubSuccessCodes.Contains(code),
		Code:    &code,
		Message: message,
		Data:    data,
	}
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) GatewayResult {
	t.Helper()
	var res GatewayResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var res response.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res
}
