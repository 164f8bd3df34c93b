package service

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrCheckoutFailed  = errors.New("checkout failed")
	ErrInvalidCartLine = errors.New("invalid cart line")
	ErrInvalidInput    = errors.New("invalid input")
)

// Checkout steps reported by CheckoutError.
const (
	StepListCart       = "list cart"
	StepValidateCart   = "validate cart"
	StepCreateOrder    = "create order"
	StepCreateLineItem = "create line item"
	StepClearCart      = "clear cart"
	StepTransaction    = "transaction"
)

// CheckoutError reports which step of a checkout failed. It matches
// ErrCheckoutFailed with errors.Is and unwraps to the store error.
type CheckoutError struct {
	Step string
	Err  error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed: %s: %v", e.Step, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

func (e *CheckoutError) Is(target error) bool { return target == ErrCheckoutFailed }

func checkoutFailed(step string, err error) error {
	return &CheckoutError{Step: step, Err: err}
}
