package client

import (
	"errors"
	"fmt"
)

// StatusPageMessage is attached to connectivity failures surfaced to callers.
const StatusPageMessage = "Error with connection, check your internet connection or visit api.summarify.io/status for SumAPI status"

// Common errors returned by the client.
var (
	// ErrAuth is returned when the token endpoint rejects the credentials.
	ErrAuth = errors.New("incorrect username or password")

	// ErrNetwork is returned when the service could not be reached,
	// including gateway failures that persisted after the retry.
	ErrNetwork = errors.New("network error")

	// ErrGateway marks a 502 response or the nginx bad gateway page.
	ErrGateway = errors.New("bad gateway")

	// ErrTokenExpired is returned when the service still rejects the token
	// after it has been refreshed.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidRequest is returned when no envelope can be built from the
	// supplied parameters. No request is sent.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBatchItem is returned when a batch response, after recovery,
	// still carries no evaluations.
	ErrBatchItem = errors.New("batch item error")

	// ErrMalformedToken is returned when the token endpoint answers with
	// something that is not a token.
	ErrMalformedToken = errors.New("malformed token response")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassAuth represents rejected credentials. Fatal.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassNetwork represents connectivity errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassGateway represents HTTP 502 and the nginx error page.
	ErrorClassGateway ErrorClass = "gateway"

	// ErrorClassTokenExpired represents the "Could not validate credentials" sentinel.
	ErrorClassTokenExpired ErrorClass = "token_expired"

	// ErrorClassInvalidRequest represents a parameter set with no envelope. Fatal.
	ErrorClassInvalidRequest ErrorClass = "invalid_request"

	// ErrorClassBatchItem represents a batch packet answered without evaluations.
	ErrorClassBatchItem ErrorClass = "batch_item"
)

// sentinel returns the package error a class is matched against.
func (c ErrorClass) sentinel() error {
	switch c {
	case ErrorClassAuth:
		return ErrAuth
	case ErrorClassNetwork:
		return ErrNetwork
	case ErrorClassGateway:
		return ErrGateway
	case ErrorClassTokenExpired:
		return ErrTokenExpired
	case ErrorClassInvalidRequest:
		return ErrInvalidRequest
	case ErrorClassBatchItem:
		return ErrBatchItem
	default:
		return nil
	}
}

// APIError represents a SumAPI failure with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sumapi %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("sumapi %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the error's class, so
// errors.Is(err, ErrNetwork) holds for every network-class APIError.
func (e *APIError) Is(target error) bool {
	s := e.ErrorClass.sentinel()
	return s != nil && target == s
}

// IsFatal reports whether err must abort processing without a retry.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrInvalidRequest)
}

// shouldRetry determines if an error class is retried by the gateway layer.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassNetwork, ErrorClassGateway:
		return true
	default:
		// auth and invalid requests are fatal, token expiry has its own refresh path
		return false
	}
}

// classOf extracts the ErrorClass of err, treating unknown errors as network failures.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}
