package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Message       string `json:"message"`
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies domain errors so transport layers can map them without string matching.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindNotFound
	KindInvalidInput
	KindInvalidState
	KindExternalFailure
	KindUnauthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidState:
		return "invalid_state"
	case KindExternalFailure:
		return "external_failure"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unexpected"
	}
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeMissingField         = "MISSING_FIELD"
	ErrCodeInvalidQuantity      = "INVALID_QUANTITY"
	ErrCodeInvalidRating        = "INVALID_RATING"
	ErrCodeInvalidPrice         = "INVALID_PRICE"
	ErrCodeInvalidTotal         = "INVALID_TOTAL"
	ErrCodeInvalidPaymentStatus = "INVALID_PAYMENT_STATUS"
	ErrCodeInvalidOrderStatus   = "INVALID_ORDER_STATUS"
	ErrCodeEmptyCheckout        = "EMPTY_CHECKOUT"
	ErrCodeProductNotFound      = "PRODUCT_NOT_FOUND"
	ErrCodeCartNotFound         = "CART_NOT_FOUND"
	ErrCodeLineNotFound         = "CART_LINE_NOT_FOUND"
	ErrCodeGuestCartNotFound    = "GUEST_CART_NOT_FOUND"
	ErrCodeGuestCartEmpty       = "GUEST_CART_EMPTY"
	ErrCodeSessionNotFound      = "CHECKOUT_NOT_FOUND"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodePaymentNotCompleted  = "PAYMENT_NOT_COMPLETED"
	ErrCodeAlreadyFinalized     = "ALREADY_FINALIZED"
	ErrCodeAlreadyReviewed      = "ALREADY_REVIEWED"
	ErrCodeIllegalTransition    = "ILLEGAL_STATUS_TRANSITION"
	ErrCodeInvoiceExists        = "INVOICE_EXISTS"
	ErrCodeInvoiceFailed        = "INVOICE_FAILED"
	ErrCodeUnauthorised         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that wrapped copies still compare equal.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// InvalidInput builds an ad-hoc validation error with a specific message.
func InvalidInput(code, message string) *DomainError {
	return NewDomainError(KindInvalidInput, code, message)
}

// KindOf reports the kind of err, or KindUnexpected when err carries no domain error.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}

// Common domain errors
var (
	ErrInvalidQuantity      = NewDomainError(KindInvalidInput, ErrCodeInvalidQuantity, "quantity must be greater than zero")
	ErrInvalidRating        = NewDomainError(KindInvalidInput, ErrCodeInvalidRating, "rating must be between 1 and 5")
	ErrInvalidPaymentStatus = NewDomainError(KindInvalidInput, ErrCodeInvalidPaymentStatus, "invalid payment status")
	ErrInvalidOrderStatus   = NewDomainError(KindInvalidInput, ErrCodeInvalidOrderStatus, "invalid order status")
	ErrEmptyCheckout        = NewDomainError(KindInvalidInput, ErrCodeEmptyCheckout, "checkout must contain at least one item")
	ErrTotalMismatch        = NewDomainError(KindInvalidInput, ErrCodeInvalidTotal, "total price does not match items, discount and shipping")

	ErrProductNotFound = NewDomainError(KindNotFound, ErrCodeProductNotFound, "product not found")
	ErrCartNotFound    = NewDomainError(KindNotFound, ErrCodeCartNotFound, "cart not found")
	ErrLineNotFound    = NewDomainError(KindNotFound, ErrCodeLineNotFound, "product not found in cart")
	ErrNoGuestCart     = NewDomainError(KindNotFound, ErrCodeGuestCartNotFound, "no guest cart to merge")
	ErrSessionNotFound = NewDomainError(KindNotFound, ErrCodeSessionNotFound, "checkout session not found")
	ErrOrderNotFound   = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "order not found")

	ErrGuestCartEmpty      = NewDomainError(KindInvalidState, ErrCodeGuestCartEmpty, "guest cart is empty")
	ErrPaymentNotCompleted = NewDomainError(KindInvalidState, ErrCodePaymentNotCompleted, "payment not completed")
	ErrAlreadyFinalized    = NewDomainError(KindInvalidState, ErrCodeAlreadyFinalized, "already finalized")
	ErrAlreadyReviewed     = NewDomainError(KindInvalidState, ErrCodeAlreadyReviewed, "product already reviewed")
	ErrIllegalTransition   = NewDomainError(KindInvalidState, ErrCodeIllegalTransition, "illegal order status transition")
	ErrInvoiceExists       = NewDomainError(KindInvalidState, ErrCodeInvoiceExists, "order already has an invoice")

	ErrInvoiceFailed = NewDomainError(KindExternalFailure, ErrCodeInvoiceFailed, "invoice generation failed")

	ErrUnauthenticated = NewDomainError(KindUnauthenticated, ErrCodeUnauthorised, "authentication required")
)
