package baokim

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"slices"
)

// SuccessCodes is the whitelist of gateway codes that count as success for
// one API family.
type SuccessCodes []int

var (
	TokenSuccessCodes     = SuccessCodes{CodeSuccess, CodeProcessing}
	MasterSubSuccessCodes = SuccessCodes{CodeSuccess, CodeProcessing, CodeSuccessRedirect, CodeAccepted}
	DirectSuccessCodes    = SuccessCodes{CodeSuccess, CodeProcessing, CodeSuccessRedirect, CodeAccepted}
	VASuccessCodes        = SuccessCodes{CodeSuccess, CodeProcessing, CodeAccepted}
)

// Contains reports whether code is whitelisted.
func (s SuccessCodes) Contains(code int) bool {
	return slices.Contains(s, code)
}

// Response is the normalized gateway reply. Success is derived from Code and
// the caller's whitelist only, never from the HTTP status.
type Response struct {
	Success bool           `json:"success"`
	Code    *int           `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Raw     map[string]any `json:"raw"`
}

// NormalizeResponse decodes a gateway body. A body that is not a JSON object
// is an ErrTransport.
func NormalizeResponse(body []byte, codes SuccessCodes) (*Response, error) {
	raw := map[string]any{}
	if err := decodeStrict(body, &raw); err != nil {
		return nil, newError(KindTransport, "invalid JSON response", err)
	}

	resp := &Response{Raw: raw, Data: raw["data"]}
	if msg, ok := raw["message"].(string); ok {
		resp.Message = msg
	}
	if code, ok := integralCode(raw["code"]); ok {
		resp.Code = &code
		resp.Success = codes.Contains(code)
	}
	return resp, nil
}

// decodeStrict decodes exactly one JSON value with numbers kept as
// json.Number. Anything after that value is an error.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// integralCode accepts only JSON numbers with an integral value.
func integralCode(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}

// DataMap returns Data as an object, or nil when it is not one.
func (r *Response) DataMap() map[string]any {
	m, _ := r.Data.(map[string]any)
	return m
}

// DataString returns a string field of the data object.
func (r *Response) DataString(key string) string {
	if m := r.DataMap(); m != nil {
		switch v := m[key].(type) {
		case string:
			return v
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// CodeValue returns the code or -1 when the gateway sent none.
func (r *Response) CodeValue() int {
	if r.Code == nil {
		return -1
	}
	return *r.Code
}
