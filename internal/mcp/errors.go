package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/sources"
	"github.com/rpggio/interview/internal/viewer"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var (
		validation *query.ValidationError
		missing    *viewer.CapabilityError
		exhausted  *sources.SourceExhaustedError
	)
	switch {
	case errors.As(err, &validation):
		return &APIError{Code: "VALIDATION_ERROR", Message: validation.Error(),
			Details: map[string]string{"field": validation.Field, "reason": validation.Reason}}
	case errors.Is(err, query.ErrInvalidQuery):
		return &APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
	case errors.As(err, &missing):
		return &APIError{Code: "CAPABILITY_REQUIRED", Message: "missing capability",
			Details: map[string]string{"capability": string(missing.Capability)}, RecoveryHint: "Use a key whose role grants the capability"}
	case errors.Is(err, viewer.ErrCapabilityRequired):
		return &APIError{Code: "CAPABILITY_REQUIRED", Message: err.Error()}
	case errors.Is(err, sources.ErrGlobalLedgerDisabled):
		return &APIError{Code: "GLOBAL_LEDGER_DISABLED", Message: "global ledger access is disabled",
			RecoveryHint: "Set allow_global_ledger=true; requires can_force_global_ledger"}
	case errors.Is(err, sources.ErrGlobalLedgerForbidden):
		return &APIError{Code: "GLOBAL_LEDGER_FORBIDDEN", Message: "caller lacks can_force_global_ledger",
			RecoveryHint: "Retry without allow_global_ledger or use a key with the capability"}
	case errors.As(err, &exhausted):
		details := map[string]any{"attempts": exhausted.Attempts, "cost_units": exhausted.CostUnits}
		if exhausted.RateLimitedOnly() {
			return &APIError{Code: "RATE_LIMITED", Message: "component polls rate limited", Details: details,
				RecoveryHint: "Retry later or accept cached data"}
		}
		return &APIError{Code: "SOURCE_EXHAUSTED", Message: "no source could answer", Details: details,
			RecoveryHint: "Retry later; check component health"}
	case errors.Is(err, auth.ErrUnauthorized):
		return &APIError{Code: "UNAUTHORIZED", Message: "missing or invalid API key",
			RecoveryHint: "Send Authorization: Bearer <key> or X-API-Key"}
	case errors.Is(err, auth.ErrTenantMismatch):
		return &APIError{Code: "TENANT_FORBIDDEN", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Code: "TIMEOUT", Message: "request deadline exceeded"}
	case errors.Is(err, context.Canceled):
		return &APIError{Code: "CANCELED", Message: "request canceled"}
	default:
		return nil
	}
}
