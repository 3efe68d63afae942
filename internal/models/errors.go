package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeUniqueViolation  = "UNIQUE_VIOLATION"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// errorNames maps codes to the machine-readable name rendered to clients.
var errorNames = map[string]string{
	CodeNotFound:         "NotFoundError",
	CodeInvalidReference: "InvalidReferenceError",
	CodeUniqueViolation:  "UniqueConstraintError",
	CodeUnauthorized:     "UnauthorizedError",
	CodeValidation:       "ValidationError",
	CodeInternal:         "InternalError",
}

// FieldIssue is a single field-level validation problem.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorBody is the inner object of an error response.
type ErrorBody struct {
	Name    string       `json:"name"`
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
	Issues  []FieldIssue `json:"issues,omitempty"`
}

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Issues  []FieldIssue
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Name returns the client-facing error name.
func (e *AppError) Name() string {
	if name, ok := errorNames[e.Code]; ok {
		return name
	}
	return errorNames[CodeInternal]
}

// Status maps the error code to an HTTP status.
func (e *AppError) Status() int {
	switch e.Code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeInvalidReference, CodeValidation:
		return fiber.StatusBadRequest
	case CodeUniqueViolation:
		return fiber.StatusConflict
	case CodeUnauthorized:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// NewNotFoundError reports a missing or invisible resource. The message always contains "not found".
func NewNotFoundError(resource string, id interface{}) *AppError {
	msg := fmt.Sprintf("%s not found", resource)
	if id != nil {
		msg = fmt.Sprintf("%s with ID %v not found", resource, id)
	}
	return &AppError{
		Code:    CodeNotFound,
		Message: msg,
	}
}

// NewInvalidReferenceError reports a foreign-key-shaped input that resolves to nothing.
func NewInvalidReferenceError(field string, err error) *AppError {
	return &AppError{
		Code:    CodeInvalidReference,
		Message: fmt.Sprintf("%s does not reference an existing record", field),
		Issues:  []FieldIssue{{Field: field, Message: "invalid reference"}},
		Err:     err,
	}
}

// NewUniqueConstraintError reports a duplicate value for a unique field.
func NewUniqueConstraintError(field string, err error) *AppError {
	return &AppError{
		Code:    CodeUniqueViolation,
		Message: fmt.Sprintf("%s already exists", field),
		Issues:  []FieldIssue{{Field: field, Message: "must be unique"}},
		Err:     err,
	}
}

func NewValidationError(message string, issues ...FieldIssue) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Issues:  issues,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// RespondWithError writes a standardized error response. Unrecognized errors become 500s
// without leaking their text.
func RespondWithError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewInternalError(err)
	}

	return c.Status(appErr.Status()).JSON(ErrorResponse{
		Error: ErrorBody{
			Name:    appErr.Name(),
			Message: appErr.Message,
			Code:    appErr.Code,
			Issues:  appErr.Issues,
		},
	})
}
