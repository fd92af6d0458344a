package capability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Capability is a permission granted to a caller by the auth layer.
type Capability string

const (
	ViewReceipts      Capability = "can_view_receipts"
	ViewArtifacts     Capability = "can_view_artifacts"
	PollHealth        Capability = "can_poll_health"
	PollQueue         Capability = "can_poll_queue"
	ForceGlobalLedger Capability = "can_force_global_ledger"
)

// ErrUnknownCapability indicates a capability name outside the known set.
var ErrUnknownCapability = errors.New("unknown capability")

// All returns every known capability.
func All() []Capability {
	return []Capability{ViewReceipts, ViewArtifacts, PollHealth, PollQueue, ForceGlobalLedger}
}

// Parse converts a name into a Capability.
func Parse(name string) (Capability, error) {
	c := Capability(strings.TrimSpace(strings.ToLower(name)))
	for _, known := range All() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCapability, name)
}

// Set is a caller's capabilities. The zero value grants nothing.
type Set struct {
	caps map[Capability]struct{}
}

// NewSet builds a set from the given capabilities.
func NewSet(caps ...Capability) Set {
	s := Set{caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		s.caps[c] = struct{}{}
	}
	return s
}

// ParseSet builds a set from capability names.
func ParseSet(names []string) (Set, error) {
	caps := make([]Capability, 0, len(names))
	for _, name := range names {
		c, err := Parse(name)
		if err != nil {
			return Set{}, err
		}
		caps = append(caps, c)
	}
	return NewSet(caps...), nil
}

// Has reports whether c is granted.
func (s Set) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// List returns the granted capabilities in sorted order.
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
