package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/datashare/internal/i18n"
)

// ErrorCode application error code
type ErrorCode int

// Error codes
const (
	// Generic errors (1000-1999)
	ErrSuccess        ErrorCode = 0    // success
	ErrInternalServer ErrorCode = 1000 // internal server error
	ErrInvalidParams  ErrorCode = 1001 // missing or empty required fields
	ErrUnauthorized   ErrorCode = 1002 // missing or invalid credentials
	ErrForbidden      ErrorCode = 1003 // caller lacks the required role or ownership
	ErrNotFound       ErrorCode = 1004 // resource not found

	// Dataset and file errors (2000-2999)
	ErrDatasetNotFound    ErrorCode = 2000 // dataset id does not resolve
	ErrFileUploadFailed   ErrorCode = 2002 // staging or reading an upload failed
	ErrFileSizeTooLarge   ErrorCode = 2006 // upload exceeds the ceiling
	ErrFileTypeNotAllowed ErrorCode = 2007 // declared type not in the allow-list
	ErrNoFileAttached     ErrorCode = 2010 // dataset has no stored payload
	ErrFileInfected       ErrorCode = 2011 // antivirus reported a signature
	ErrFileScanFailed     ErrorCode = 2012 // antivirus unreachable or failed

	// Database errors (4000-4999)
	ErrDatabaseConnection ErrorCode = 4000 // database connection error
	ErrDatabaseQuery      ErrorCode = 4001 // database query error
	ErrDatabaseInsert     ErrorCode = 4002 // database insert error
	ErrDatabaseUpdate     ErrorCode = 4003 // database update error
	ErrDatabaseDelete     ErrorCode = 4004 // database delete error
)

// AppError application error
type AppError struct {
	// Code error code
	Code ErrorCode `json:"code"`
	// Message human readable message
	Message string `json:"message"`
	// Details extra information, shown to clients only for 4xx errors
	Details string `json:"details,omitempty"`
	// OriginalError underlying cause
	OriginalError error `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the original error to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// WithDetails returns a copy carrying details
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Status returns the HTTP status for the error
func (e *AppError) Status() int {
	return HTTPStatus(e.Code)
}

// ClientMessage returns the message safe to show to a client.
// Server-side failures never leak their details.
func (e *AppError) ClientMessage() string {
	if e.Status() >= http.StatusInternalServerError || e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// New creates an application error with the default message for code
func New(code ErrorCode) *AppError {
	return &AppError{
		Code:    code,
		Message: GetErrorMessage(code),
	}
}

// NewWithDetails creates an application error with details
func NewWithDetails(code ErrorCode, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: GetErrorMessage(code),
		Details: details,
	}
}

// Newf creates an application error with formatted details
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return NewWithDetails(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an underlying error
func Wrap(code ErrorCode, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       GetErrorMessage(code),
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// GetAppError extracts an AppError from err's chain
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}

// HTTPStatus maps an error code to its HTTP status
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrSuccess:
		return http.StatusOK
	case ErrInvalidParams, ErrFileTypeNotAllowed, ErrFileInfected:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrDatasetNotFound, ErrNoFileAttached:
		return http.StatusNotFound
	case ErrFileSizeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:        "success",
	ErrInternalServer: "internal_server_error",
	ErrInvalidParams:  "invalid_params",
	ErrUnauthorized:   "unauthorized",
	ErrForbidden:      "forbidden",
	ErrNotFound:       "not_found",

	ErrDatasetNotFound:    "dataset_not_found",
	ErrFileUploadFailed:   "file_upload_failed",
	ErrFileSizeTooLarge:   "file_size_too_large",
	ErrFileTypeNotAllowed: "file_type_not_allowed",
	ErrNoFileAttached:     "no_file_attached",
	ErrFileInfected:       "file_infected",
	ErrFileScanFailed:     "file_scan_failed",

	ErrDatabaseConnection: "database_connection",
	ErrDatabaseQuery:      "database_query",
	ErrDatabaseInsert:     "database_insert",
	ErrDatabaseUpdate:     "database_update",
	ErrDatabaseDelete:     "database_delete",
}

// GetErrorMessage returns the message for code in the default language
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang returns the message for code in lang
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}
