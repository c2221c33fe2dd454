package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAccountType = errors.New("invalid account type")

	// Operation errors
	ErrSameAccount   = errors.New("cannot transfer to the same account")
	ErrInvalidAmount = errors.New("invalid amount")

	// Concurrency errors
	ErrBusy            = errors.New("account is busy, retry later")
	ErrVersionConflict = errors.New("account version conflict")

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage failure")
)

// StorageError hides a persistence failure behind a generic message.
// Err keeps the cause for logging.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return ErrStorage.Error()
	}
	return fmt.Sprintf("%s during %s", ErrStorage.Error(), e.Op)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	// ClassValidation: bad input, never retry.
	ClassValidation
	// ClassState: input is fine but the account state forbids it.
	ClassState
	// ClassConcurrency: safe to retry after a short wait.
	ClassConcurrency
	// ClassStorage: persistence failed, no state changed.
	ClassStorage
	// ClassAuth: the caller is not authenticated.
	ClassAuth
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassState:
		return "state"
	case ClassConcurrency:
		return "concurrency"
	case ClassStorage:
		return "storage"
	case ClassAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Classify maps err onto its ErrorClass.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAccountType),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrPasswordTooWeak):
		return ClassValidation
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrUserExists),
		errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrUserNotFound):
		return ClassState
	case errors.Is(err, ErrBusy), errors.Is(err, ErrVersionConflict):
		return ClassConcurrency
	case errors.Is(err, ErrStorage):
		return ClassStorage
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrInvalidCredentials):
		return ClassAuth
	default:
		return ClassUnknown
	}
}

// IsDomainError reports whether err carries one of the package's known errors.
func IsDomainError(err error) bool {
	return Classify(err) != ClassUnknown
}
