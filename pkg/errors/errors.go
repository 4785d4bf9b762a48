package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned errors still compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyRequests    = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Receipt lifecycle errors. Each names the rule that fired.
var (
	ErrFutureOrCurrentPeriod = New("FUTURE_OR_CURRENT_PERIOD", http.StatusUnprocessableEntity, "receipts can only be submitted for closed months")
	ErrBeforeInternshipStart = New("BEFORE_INTERNSHIP_START", http.StatusUnprocessableEntity, "period precedes the internship start month")
	ErrPeriodAlreadyApproved = New("PERIOD_ALREADY_APPROVED", http.StatusUnprocessableEntity, "an approved receipt already exists for this period")
	ErrConfirmationRequired  = New("SUPPLEMENTARY_CONFIRMATION_REQUIRED", http.StatusConflict, "receipts already exist for this period; confirm to submit a supplementary receipt")
	ErrInvalidTransition     = New("INVALID_TRANSITION", http.StatusConflict, "receipt is no longer pending")
	ErrMissingReason         = New("MISSING_REASON", http.StatusBadRequest, "rejection reason is required")
	ErrImmutableApproved     = New("IMMUTABLE_APPROVED", http.StatusForbidden, "approved receipts cannot be modified or deleted")
	ErrUnsupportedFileType   = New("UNSUPPORTED_FILE_TYPE", http.StatusUnsupportedMediaType, "only image receipts can be analyzed")
	ErrAnalysisService       = New("ANALYSIS_SERVICE_ERROR", http.StatusBadGateway, "analysis service failed")
	ErrAnalysisDisabled      = New("ANALYSIS_DISABLED", http.StatusServiceUnavailable, "receipt analysis is not configured")
	ErrBatchTooLarge         = New("BATCH_TOO_LARGE", http.StatusBadRequest, "batch exceeds the maximum size")
	ErrEmptyBatch            = New("EMPTY_BATCH", http.StatusBadRequest, "batch must contain at least one receipt")
	ErrFileTooLarge          = New("FILE_TOO_LARGE", http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size")
	ErrFileTypeNotAllowed    = New("FILE_TYPE_NOT_ALLOWED", http.StatusUnsupportedMediaType, "file type is not accepted")
	ErrInvalidDownloadToken  = New("INVALID_DOWNLOAD_TOKEN", http.StatusUnauthorized, "download link is invalid or expired")
	ErrRemindersDisabled     = New("REMINDERS_DISABLED", http.StatusServiceUnavailable, "reminder delivery is not configured")
	ErrUnknownFileRef        = New("UNKNOWN_FILE_REF", http.StatusUnprocessableEntity, "file_ref does not name a document you uploaded")
	ErrFileRefInUse          = New("FILE_REF_IN_USE", http.StatusConflict, "document is already attached to another receipt")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	clone.Details = nil
	return &clone
}

// WithDetails returns a copy of the error carrying structured details for the client.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	clone.Details = details
	return clone
}
