package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks. Each typed error below matches its sentinel.
var (
	ErrMalformedSourceMap   = errors.New("malformed source map")
	ErrInvalidBytecode      = errors.New("invalid bytecode")
	ErrIncompleteArtifact   = errors.New("incomplete artifact")
	ErrUnresolvableLocation = errors.New("unresolvable location")
)

// MalformedSourceMapError reports a source map slot with a field that is neither empty nor valid.
type MalformedSourceMapError struct {
	Slot  int
	Field string
	Value string
}

// Error implements the error interface for MalformedSourceMapError.
func (e *MalformedSourceMapError) Error() string {
	return fmt.Sprintf("malformed source map: slot %d: invalid %s %q", e.Slot, e.Field, e.Value)
}

// Is reports whether target is ErrMalformedSourceMap.
func (e *MalformedSourceMapError) Is(target error) bool {
	return target == ErrMalformedSourceMap
}

// NewMalformedSourceMapError constructs a MalformedSourceMapError.
func NewMalformedSourceMapError(slot int, field, value string) error {
	return &MalformedSourceMapError{
		Slot:  slot,
		Field: field,
		Value: value,
	}
}

// InvalidBytecodeError reports bytecode that cannot be decoded from hex.
type InvalidBytecodeError struct {
	Offset int
	Reason string
}

// Error implements the error interface for InvalidBytecodeError.
func (e *InvalidBytecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("invalid bytecode: %s", e.Reason)
	}
	return fmt.Sprintf("invalid bytecode at hex offset %d: %s", e.Offset, e.Reason)
}

// Is reports whether target is ErrInvalidBytecode.
func (e *InvalidBytecodeError) Is(target error) bool {
	return target == ErrInvalidBytecode
}

// NewInvalidBytecodeError constructs an InvalidBytecodeError. Use a negative offset when the
// problem is not tied to a position.
func NewInvalidBytecodeError(offset int, reason string) error {
	return &InvalidBytecodeError{
		Offset: offset,
		Reason: reason,
	}
}

// IncompleteArtifactError lists the mandatory artifact fields that were missing or unusable.
type IncompleteArtifactError struct {
	Contract string
	Missing  []string
}

// Error implements the error interface for IncompleteArtifactError.
func (e *IncompleteArtifactError) Error() string {
	name := e.Contract
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("incomplete artifact %q: missing %s", name, strings.Join(e.Missing, ", "))
}

// Is reports whether target is ErrIncompleteArtifact.
func (e *IncompleteArtifactError) Is(target error) bool {
	return target == ErrIncompleteArtifact
}

// NewIncompleteArtifactError constructs an IncompleteArtifactError.
func NewIncompleteArtifactError(contract string, missing ...string) error {
	return &IncompleteArtifactError{
		Contract: contract,
		Missing:  missing,
	}
}

// UnresolvableLocationError means a single finding location could not be mapped to source.
// It is never fatal: callers downgrade the finding to an unresolved range.
type UnresolvableLocationError struct {
	Location string
	Reason   string
}

// Error implements the error interface for UnresolvableLocationError.
func (e *UnresolvableLocationError) Error() string {
	return fmt.Sprintf("unresolvable location %q: %s", e.Location, e.Reason)
}

// Is reports whether target is ErrUnresolvableLocation.
func (e *UnresolvableLocationError) Is(target error) bool {
	return target == ErrUnresolvableLocation
}

// NewUnresolvableLocationError constructs an UnresolvableLocationError.
func NewUnresolvableLocationError(location, reason string) error {
	return &UnresolvableLocationError{
		Location: location,
		Reason:   reason,
	}
}

// CommandError represents an error that occurred during command execution, storing relevant results.
type CommandError struct {
	ExitCode    int
	CommonError string
	Args        interface{}
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

// NewCommandError creates a new CommandError instance, encapsulating args and the error message.
func NewCommandError(args interface{}, err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Args:        args,
	}
}
