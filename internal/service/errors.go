package service

import "errors"

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrEmailRequired          = errors.New("email is required for guest checkout")
	ErrAmountTooLarge         = errors.New("order total exceeds the maximum charge")
	ErrGatewayTimeout         = errors.New("payment gateway unavailable")
	ErrPaymentNotSucceeded    = errors.New("payment has not succeeded")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrNotOwner               = errors.New("not the owner")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrCheckoutNotFound       = errors.New("checkout not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderItemNotFound      = errors.New("order item not found")
	ErrFileUnavailable        = errors.New("file unavailable")
	ErrDownloadLimitExceeded  = errors.New("download limit exceeded")
)
