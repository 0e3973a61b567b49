package service

import "errors"

// Workflow errors surfaced to the API layer. Anything not listed here is
// an internal failure and is passed through wrapped.
var (
	// ErrInvalidItems rejects carts that are empty or carry a
	// non-positive quantity.
	ErrInvalidItems = errors.New("sale requires at least one item with a positive quantity")

	// ErrInvalidPayment rejects payment methods outside {CASH, MOMO}.
	ErrInvalidPayment = errors.New("unsupported payment method")

	// ErrScanDisabled rejects customer self-checkout while the operator
	// has the scan channel switched off. Manual staff sales never hit it.
	ErrScanDisabled = errors.New("self-checkout is currently disabled")

	// ErrMissingProduct rejects the whole sale when any referenced
	// product cannot be priced.
	ErrMissingProduct = errors.New("unknown product in sale items")

	// ErrRetryExhausted reports that every code generation attempt
	// collided with an active sale. Transient; the caller may retry.
	ErrRetryExhausted = errors.New("could not allocate a public code")

	// ErrInvalidCode rejects lookup codes too short to ever match.
	ErrInvalidCode = errors.New("public code too short")

	// ErrCodeNotFound reports that no sale carries the given code.
	ErrCodeNotFound = errors.New("no sale with that public code")

	// ErrAlreadyConfirmed reports a duplicate confirmation attempt.
	// Confirmation happens at most once per sale.
	ErrAlreadyConfirmed = errors.New("sale already confirmed")

	// ErrNotScanSource reports a confirmation attempt on a manual POS
	// sale, which is paid at creation and has no redemption step.
	ErrNotScanSource = errors.New("manual sales have no confirmation step")
)
