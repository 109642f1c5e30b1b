package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError names one invalid input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInvalidProductURL   = "INVALID_PRODUCT_URL"
	ErrCodeGuardViolation      = "GUARD_VIOLATION"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeRequestNotFound     = "REQUEST_NOT_FOUND"
	ErrCodeSourceNotFound      = "SOURCE_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrRequestNotFound   = NewDomainError(ErrCodeRequestNotFound, "Request not found")
	ErrSourceNotFound    = NewDomainError(ErrCodeSourceNotFound, "Source request not found or has no offer")
	ErrUserNotFound      = NewDomainError(ErrCodeUserNotFound, "User not found")
	ErrForbidden         = NewDomainError(ErrCodeForbidden, "Action is not permitted for this actor")
	ErrConflict          = NewDomainError(ErrCodeConcurrencyConflict, "Request was changed by another operation")
	ErrInvalidProductURL = NewDomainError(ErrCodeInvalidProductURL, "Product link must be an http or https URL")
)
