package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs, run summaries and internal error handling.
const (
	// Navigation.
	ErrCodeTimeout     = "SCRAPE_TIMEOUT"
	ErrCodeNavigation  = "NAVIGATION_FAILED"
	ErrCodeSoftBlocked = "SOFT_BLOCKED"

	// Extraction. Missing fields always resolve to a default, so this code
	// only appears in debug logs.
	ErrCodeFieldNotFound = "FIELD_NOT_FOUND"

	// Images.
	ErrCodeImageNotFound = "IMAGE_NOT_FOUND"
	ErrCodeImageDownload = "IMAGE_DOWNLOAD_FAILED"

	// Persistence.
	ErrCodePersistence = "PERSISTENCE_FAILED"

	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// Status server.
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeNoRun        = "NO_ACTIVE_RUN"
)

// ErrorDetail is the structured error in API and tool responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first ScrapeError in err's chain, or
// ErrCodeInternal when there is none. A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsFatal reports whether err means the page session itself is gone.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeBrowserCrash
}
