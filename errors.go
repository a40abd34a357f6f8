package flyweight

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that are usually wrapped in typed errors when returned.

var (
	// Key validation errors.
	ErrTypeNil          = errors.New("instance type cannot be nil")
	ErrKeyNotComparable = errors.New("instance key must be comparable")

	// Registry state errors.
	ErrRegistryNil     = errors.New("registry cannot be nil")
	ErrRegistryClosed  = errors.New("registry has been closed")
	ErrClaimInProgress = errors.New("instance is under construction")

	// Protocol errors.
	ErrNoClaim          = errors.New("no open claim for this context")
	ErrNotClaimant      = errors.New("only the claimant may finish a claim")
	ErrAlreadyCommitted = errors.New("instance already committed for this claim")
	ErrNotCommitted     = errors.New("no instance was committed for this claim")
	ErrClaimClosed      = errors.New("claim has already been closed")
	ErrCommitOnHit      = errors.New("cannot commit: an instance already exists")
	ErrNilInstance      = errors.New("instance cannot be nil")
	ErrNilBuild         = errors.New("build function cannot be nil")
)

var (
	_ error = ProtocolViolationError{}
	_ error = DuplicateKeyError{}
	_ error = TypeMismatchError{}
	_ error = WaitError{}
	_ error = DisposalError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// ProtocolViolationError indicates that calling code misused the acquisition
// protocol: committing without an open claim, committing twice, finishing a
// claim from a context that does not own it, and so on.
//
// It is a programming error and is never retried.
type ProtocolViolationError struct {
	Type  reflect.Type
	Key   any
	Op    string // "commit", "revoke", "abort", "end", "begin", "release"
	Cause error
}

func (e ProtocolViolationError) Error() string {
	return fmt.Sprintf("flyweight protocol violation: %s %s: %v", e.Op, formatKey(e.Type, e.Key), e.Cause)
}

func (e ProtocolViolationError) Unwrap() error {
	return e.Cause
}

// DuplicateKeyError indicates a second live instance was about to be
// registered for a pair that already has one. It should never surface if the
// acquisition protocol is followed.
type DuplicateKeyError struct {
	Type reflect.Type
	Key  any
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("flyweight internal consistency fault: duplicate instance for %s", formatKey(e.Type, e.Key))
}

// TypeMismatchError indicates the committed instance is not of the type the
// claim was opened for.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string
}

func (e TypeMismatchError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("type mismatch in %s: expected %s, got %s",
			e.Context, formatType(e.Expected), formatType(e.Actual))
	}
	return fmt.Sprintf("type mismatch: expected %s, got %s", formatType(e.Expected), formatType(e.Actual))
}

// WaitError indicates the caller gave up waiting for a concurrent claim on
// the same pair to resolve.
type WaitError struct {
	Type  reflect.Type
	Key   any
	Cause error
}

func (e WaitError) Error() string {
	return fmt.Sprintf("waiting for %s: %v", formatKey(e.Type, e.Key), e.Cause)
}

func (e WaitError) Unwrap() error {
	return e.Cause
}

// DisposalError collects the failures returned by instances closed when the
// registry is closed.
type DisposalError struct {
	Errors []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("disposal failed: %v", e.Errors[0])
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("disposal failed with %d errors:", len(e.Errors)))
	for _, err := range e.Errors {
		b.WriteString("\n  • ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// ========================================
// Helpers
// ========================================

// IsProtocolViolation reports whether err is a ProtocolViolationError.
func IsProtocolViolation(err error) bool {
	var pv ProtocolViolationError
	return errors.As(err, &pv)
}

// IsDuplicateKey reports whether err is a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var dk DuplicateKeyError
	return errors.As(err, &dk)
}

func violation(t reflect.Type, key any, op string, cause error) error {
	return ProtocolViolationError{Type: t, Key: key, Op: op, Cause: cause}
}

// formatKey renders a (type, key) pair for messages.
func formatKey(t reflect.Type, key any) string {
	return fmt.Sprintf("%s[%v]", formatType(t), key)
}
