// Package common defines sentinel errors and small helpers shared across
// vaultkeeper packages. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engines wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrGone         = errors.New("gone")
	ErrIntegrity    = errors.New("integrity error")
	ErrAuditWrite   = errors.New("audit write failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// Checkout errors.
var (
	ErrAlreadyCheckedOut = fmt.Errorf("%w: item is checked out by another principal", ErrConflict)
	ErrNotCheckedOut     = fmt.Errorf("%w: item is not checked out", ErrConflict)
	ErrNotLockHolder     = fmt.Errorf("%w: principal does not hold the lock", ErrForbidden)
	ErrCheckoutNotNeeded = fmt.Errorf("%w: item does not require checkout", ErrValidation)
)

// Approval workflow errors.
var (
	ErrSelfApproval      = fmt.Errorf("%w: requester cannot approve own request", ErrForbidden)
	ErrNotApprover       = fmt.Errorf("%w: approver role required", ErrForbidden)
	ErrDuplicateApprover = fmt.Errorf("%w: approver already approved this request", ErrConflict)
	ErrAlreadyDecided    = fmt.Errorf("%w: request is no longer pending", ErrConflict)
	ErrEmptyReason       = fmt.Errorf("%w: reason is required", ErrValidation)
)

// Token errors.
var (
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthorized)
)

// Kind returns the error kind err wraps, or ErrInternal when it wraps none.
func Kind(err error) error {
	for _, k := range []error{
		ErrValidation, ErrForbidden, ErrConflict, ErrNotFound, ErrGone,
		ErrIntegrity, ErrAuditWrite, ErrUnauthorized,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
