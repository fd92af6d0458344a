package viewer

import (
	"errors"
	"fmt"

	"github.com/rpggio/interview/internal/domain/capability"
)

// ErrCapabilityRequired indicates the caller lacks a capability the surface requires.
var ErrCapabilityRequired = errors.New("capability required")

// CapabilityError names the missing capability.
type CapabilityError struct {
	Capability capability.Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCapabilityRequired, e.Capability)
}

func (e *CapabilityError) Unwrap() error {
	return ErrCapabilityRequired
}

func requireCapability(caps capability.Set, c capability.Capability) error {
	if caps.Has(c) {
		return nil
	}
	return &CapabilityError{Capability: c}
}
