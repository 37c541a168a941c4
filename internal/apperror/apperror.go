package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to decide how to surface it.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindConflict
	KindPersistence
	KindCheckoutFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	case KindCheckoutFailed:
		return "checkout_failed"
	default:
		return "unknown"
	}
}

// Error is the application error type. Two errors are considered the same
// (errors.Is) when their codes match, so sentinels can be enriched with detail.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// New creates a new application error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithDetail returns a copy of the error with extra context appended to the message.
func (e *Error) WithDetail(format string, args ...any) *Error {
	clone := *e
	clone.Message = e.Message + ": " + fmt.Sprintf(format, args...)
	return &clone
}

// Wrap returns a copy of the error carrying cause.
func (e *Error) Wrap(cause error) *Error {
	clone := *e
	clone.Err = cause
	return &clone
}

var (
	ErrInvalidQuantity         = New(KindValidation, "INVALID_QUANTITY", "quantity must be a positive integer")
	ErrPaymentMethodRequired   = New(KindValidation, "PAYMENT_METHOD_REQUIRED", "payment method is required")
	ErrInvalidStatus           = New(KindValidation, "INVALID_STATUS", "unknown supplier order status")
	ErrInvalidStatusTransition = New(KindValidation, "INVALID_STATUS_TRANSITION", "status transition not allowed")
	ErrEmptyCart               = New(KindValidation, "EMPTY_CART", "cannot check out an empty cart")

	ErrCustomerNotFound      = New(KindNotFound, "CUSTOMER_NOT_FOUND", "customer not found")
	ErrArticleNotFound       = New(KindNotFound, "ARTICLE_NOT_FOUND", "article not found")
	ErrSupplierNotFound      = New(KindNotFound, "SUPPLIER_NOT_FOUND", "supplier not found")
	ErrCartNotFound          = New(KindNotFound, "CART_NOT_FOUND", "cart not found")
	ErrItemNotFound          = New(KindNotFound, "ITEM_NOT_FOUND", "article not present in cart")
	ErrOrderNotFound         = New(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrSupplierOrderNotFound = New(KindNotFound, "SUPPLIER_ORDER_NOT_FOUND", "supplier order not found")

	ErrInsufficientStock = New(KindInsufficientStock, "INSUFFICIENT_STOCK", "insufficient stock")

	ErrConflict = New(KindConflict, "CONCURRENT_MODIFICATION", "resource was modified by another request")

	ErrPersistence    = New(KindPersistence, "PERSISTENCE_FAILURE", "persistence failure")
	ErrCheckoutFailed = New(KindCheckoutFailed, "CHECKOUT_FAILED", "checkout failed")
)

// Persistence wraps a storage error raised while performing op.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return ErrPersistence.WithDetail("%s", op).Wrap(err)
}

// CheckoutFailed wraps the cause of a rolled back checkout.
func CheckoutFailed(err error) error {
	return ErrCheckoutFailed.Wrap(err)
}

// InsufficientStockError reports a reservation that could not be satisfied.
type InsufficientStockError struct {
	ArticleID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for article %d: requested %d, available %d",
		e.ArticleID, e.Requested, e.Available)
}

// Shortfall is the number of units missing to satisfy the request.
func (e *InsufficientStockError) Shortfall() int {
	if e.Available >= e.Requested {
		return 0
	}
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// KindOf returns the kind of the first application error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return KindInsufficientStock
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first application error in err's chain.
func CodeOf(err error) string {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return ErrInsufficientStock.Code
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
