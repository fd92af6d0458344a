package sources

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a tier answered but holds no evidence for the key.
	ErrNotFound = errors.New("no evidence for key")
	// ErrSourceUnavailable indicates a tier could not answer.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrRateLimited indicates a poll was denied admission. It is a fallback signal, not a failure.
	ErrRateLimited = errors.New("rate limited")
	// ErrGlobalLedgerDisabled indicates the request needs the global ledger but did not opt in.
	ErrGlobalLedgerDisabled = errors.New("global ledger access not enabled for this request")
	// ErrGlobalLedgerForbidden indicates the caller opted in without can_force_global_ledger.
	ErrGlobalLedgerForbidden = errors.New("global ledger access requires can_force_global_ledger")
	// ErrSourceExhausted indicates every eligible tier failed or was disallowed.
	ErrSourceExhausted = errors.New("all eligible sources exhausted")
	// ErrOperationNotAllowed indicates a component call outside the read-only allowlist.
	ErrOperationNotAllowed = errors.New("operation not in read-only allowlist")
)

// SourceUnavailableError is a single-tier failure.
type SourceUnavailableError struct {
	Tier Tier
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Tier, e.Err)
}

func (e *SourceUnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

func unavailable(tier Tier, err error) error {
	return &SourceUnavailableError{Tier: tier, Err: err}
}

// SourceExhaustedError is the hard failure returned when no tier could answer.
type SourceExhaustedError struct {
	Attempts  []Attempt
	CostUnits int
}

func (e *SourceExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		part := fmt.Sprintf("%s: %s", a.Tier, a.Outcome)
		if a.Reason != "" {
			part += " (" + a.Reason + ")"
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return ErrSourceExhausted.Error() + ": no eligible tier"
	}
	return ErrSourceExhausted.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SourceExhaustedError) Unwrap() error {
	return ErrSourceExhausted
}

// RateLimitedOnly reports whether every attempted tier was denied by the rate limiter.
func (e *SourceExhaustedError) RateLimitedOnly() bool {
	sawLimited := false
	for _, a := range e.Attempts {
		switch a.Outcome {
		case OutcomeRateLimited:
			sawLimited = true
		case OutcomeSkipped, OutcomeMiss, OutcomeNotFound:
		default:
			return false
		}
	}
	return sawLimited
}
