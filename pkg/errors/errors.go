package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeChallenge   ErrorType = "challenge"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeForbidden   ErrorType = "forbidden"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// ParseError reports malformed tag file input.
type ParseError struct {
	Line   int
	Column int
	Token  string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("line %d, column %d: %s (near %q)", e.Line, e.Column, e.Msg, e.Token)
	}
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// UnknownTagError is returned when a tag has no catalog record and no alias.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag %q: no catalog record or alias", e.Tag)
}

// RetrievalError records that an entry's pages could not be fetched after retries.
type RetrievalError struct {
	Entry string
	Page  int
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval of %q failed at page %d: %v", e.Entry, e.Page, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// AuthError means the credentials were rejected. It is fatal for the run.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (code %d): %s", e.Code, e.Message)
}

// ChallengeError means the service answered with a bot check page instead of data.
type ChallengeError struct {
	URL    string
	Marker string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("challenge page detected at %s (%s)", e.URL, e.Marker)
}

// DownloadError describes a single post that could not be materialized.
type DownloadError struct {
	PostID   int
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of post %d failed after %d attempt(s): %v", e.PostID, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the entire run.
func IsFatal(err error) bool {
	var authErr *AuthError
	var challengeErr *ChallengeError
	var parseErr *ParseError
	return stderrors.As(err, &authErr) || stderrors.As(err, &challengeErr) || stderrors.As(err, &parseErr)
}

// IsTransient reports whether retrying the operation that produced err may succeed.
func IsTransient(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return IsRetryable(apiErr.Type)
	}
	var unknown *UnknownTagError
	if stderrors.As(err, &unknown) {
		return false
	}
	return true
}
