package baokim

// Gateway response codes.
const (
	CodeSuccess          = 0
	CodeProcessing       = 100
	CodeSuccessRedirect  = 101
	CodeProviderError    = 102
	CodeSignatureInvalid = 104
	CodeAuthFailed       = 111
	CodeAccepted         = 200
	CodeDataInvalid      = 422
	CodeDuplicateOrder   = 707

	CodeHTTPUnauthorized = 401
	CodeHTTPForbidden    = 403
	CodeHTTPNotFound     = 404
	CodeHTTPServerError  = 500
)

var codeMessages = map[int]string{
	CodeSuccess:          "Success",
	CodeProcessing:       "Processing",
	CodeSuccessRedirect:  "Success, redirect to payment page",
	CodeProviderError:    "Payment provider error",
	CodeSignatureInvalid: "Invalid signature or malformed data",
	CodeAuthFailed:       "Authentication failed",
	CodeAccepted:         "Accepted",
	CodeDataInvalid:      "Invalid data",
	CodeDuplicateOrder:   "Order ID already exists",
	CodeHTTPUnauthorized: "Unauthorized",
	CodeHTTPForbidden:    "Forbidden",
	CodeHTTPNotFound:     "Not found",
	CodeHTTPServerError:  "Internal server error",
}

// CodeMessage returns a human readable message for a gateway code.
func CodeMessage(code int) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}

// IsAuthCode reports whether code signals an authentication problem.
func IsAuthCode(code int) bool {
	return code == CodeAuthFailed || code == CodeHTTPUnauthorized || code == CodeHTTPForbidden
}
