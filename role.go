package flyweight

import (
	"encoding/json"
	"fmt"
)

// Role is the part an acquisition plays for its (type, key) pair.
type Role int

const (
	// RoleObserver means an instance already existed (a cache hit).
	// No construction is permitted and committing is a protocol violation.
	RoleObserver Role = iota

	// RoleClaimant means this acquisition holds the exclusive claim on the
	// pair: it must construct the instance and see that it gets committed.
	RoleClaimant

	// RoleReentrant means an enclosing acquisition in the same logical call
	// already holds the claim. The caller may construct and commit on behalf
	// of the chain, but finishing the claim is left to the claimant.
	RoleReentrant
)

// String returns the string representation of the Role.
func (r Role) String() string {
	switch r {
	case RoleObserver:
		return "Observer"
	case RoleClaimant:
		return "Claimant"
	case RoleReentrant:
		return "Reentrant"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// IsValid checks if the role is valid.
func (r Role) IsValid() bool {
	return r >= RoleObserver && r <= RoleReentrant
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Observer", "observer", "hit":
		*r = RoleObserver
	case "Claimant", "claimant", "claim":
		*r = RoleClaimant
	case "Reentrant", "reentrant":
		*r = RoleReentrant
	default:
		return fmt.Errorf("invalid role: %q", string(text))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return r.UnmarshalText([]byte(s))
}

// State is the lifecycle state of a [Scope].
type State int

const (
	// StateOpen means the scope has not been released yet.
	StateOpen State = iota
	// StateCommitted means the scope exited normally.
	StateCommitted
	// StateRolledBack means the scope exited via a failure and registry
	// state was restored.
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateCommitted:
		return "Committed"
	case StateRolledBack:
		return "RolledBack"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}
