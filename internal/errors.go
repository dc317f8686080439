package internal

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("sleep session not found")
	ErrAlreadyClosed     = errors.New("sleep session already closed")
	ErrInvalidInterval   = errors.New("wake time must be after sleep time")
	ErrAlreadySleeping   = errors.New("a sleep session is already in progress")
	ErrNoPendingSession  = errors.New("no sleep session in progress")
	ErrStoreUnavailable  = errors.New("record store unavailable")
	ErrInsufficientCoins = errors.New("not enough coins")
	ErrItemNotFound      = errors.New("item not found")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrUserRequired      = errors.New("user id is required")
	ErrSessionTooLong    = errors.New("sleep and wake time must be at most one day apart")
)

var domainErrors = []error{
	ErrSessionNotFound,
	ErrAlreadyClosed,
	ErrInvalidInterval,
	ErrAlreadySleeping,
	ErrNoPendingSession,
	ErrInsufficientCoins,
	ErrItemNotFound,
	ErrAlreadyOwned,
	ErrUserRequired,
	ErrSessionTooLong,
}

// StoreError is a backend failure on a record store or registry call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// StoreFailure classifies err from a backend call. Domain errors pass through,
// anything else becomes a *StoreError for op.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func IsDomainError(err error) bool {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}

// AppError is the error body returned to API clients.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

func NewAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}
