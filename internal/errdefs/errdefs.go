// Package errdefs defines the error taxonomy shared by the ledger, the
// registries, and the HTTP façade.
//
// Operations return typed failures matched with errors.Is; the façade is the
// only layer that translates them into transport status codes.
package errdefs

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a referenced GUID (device, dequeue, worker) that does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrIntegrity marks an operation referencing a device or queue that was
// never registered. The caller must re-announce and retry.
var ErrIntegrity = errors.New("integrity violation")

// ErrInvalid marks malformed caller input, such as an unparseable filter
// expression.
var ErrInvalid = errors.New("invalid argument")

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Integrityf wraps ErrIntegrity with context.
func Integrityf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrIntegrity)...)
}

// Invalidf wraps ErrInvalid with context.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalid)...)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsIntegrity reports whether err wraps ErrIntegrity.
func IsIntegrity(err error) bool { return errors.Is(err, ErrIntegrity) }

// IsInvalid reports whether err wraps ErrInvalid.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }
