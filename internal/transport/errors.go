package transport

import (
	"encoding/json"
	"net/http"

	"github.com/rpggio/interview/internal/mcp"
)

// ErrorBody is the JSON error envelope of the REST surface.
type ErrorBody struct {
	ErrorCode    string `json:"error_code"`
	Message      string `json:"message"`
	Detail       any    `json:"detail,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

// statusFor maps a domain error to an HTTP status and error body. The codes
// are shared with the MCP surface.
func statusFor(err error) (int, ErrorBody) {
	apiErr := mcp.MapError(err)
	if apiErr == nil {
		return http.StatusInternalServerError, ErrorBody{ErrorCode: "INTERNAL_ERROR", Message: "internal error"}
	}
	body := ErrorBody{
		ErrorCode:    apiErr.Code,
		Message:      apiErr.Message,
		Detail:       apiErr.Details,
		RecoveryHint: apiErr.RecoveryHint,
	}
	switch apiErr.Code {
	case "VALIDATION_ERROR":
		return http.StatusBadRequest, body
	case "UNAUTHORIZED":
		return http.StatusUnauthorized, body
	case "CAPABILITY_REQUIRED", "GLOBAL_LEDGER_DISABLED", "GLOBAL_LEDGER_FORBIDDEN", "TENANT_FORBIDDEN":
		return http.StatusForbidden, body
	case "RATE_LIMITED":
		return http.StatusTooManyRequests, body
	case "TIMEOUT":
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusServiceUnavailable, body
	}
}

// WriteError writes err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	status, body := statusFor(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
