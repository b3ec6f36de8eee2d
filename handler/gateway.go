package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/response"
)

// requestTimeout bounds one merchant API request, token refresh included.
const requestTimeout = 60 * time.Second

// GatewayResult is the gateway envelope returned to API clients.
type GatewayResult struct {
	Success bool   `json:"success"`
	Code    *int   `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// newGatewayResult copies the envelope. A missing message is filled from
// the known gateway codes.
func newGatewayResult(resp *baokim.Response) GatewayResult {
	result := GatewayResult{
		Success: resp.Success,
		Code:    resp.Code,
		Message: resp.Message,
		Data:    resp.Data,
	}
	if result.Message == "" && resp.Code != nil {
		result.Message = baokim.CodeMessage(*resp.Code)
	}
	return result
}

// StatusForError maps an error kind to the HTTP status of the merchant API.
func StatusForError(err error) int {
	switch baokim.KindOf(err) {
	case baokim.KindValidation:
		return http.StatusBadRequest
	case baokim.KindAuthentication, baokim.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeGateway writes the gateway envelope with 200, or the mapped error.
// A gateway rejection is still a 200 with success false.
func writeGateway(w http.ResponseWriter, resp *baokim.Response, err error, failMessage string) {
	if err != nil {
		response.Error(w, StatusForError(err), failMessage, err)
		return
	}
	_ = response.WriteJSON(w, http.StatusOK, newGatewayResult(resp))
}

// decodeJSON decodes the body into v and validates it. On failure the 400
// response is already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := baokim.ValidateRequest(v); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := baokim.ValidateRequest(v); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return false
	}
	return true
}

// queryInt reads a positive integer query parameter bounded by max.
func queryInt(r *http.Request, key string, def, max int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}
