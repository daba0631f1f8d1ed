package apperrors

import "errors"

// Standardized venue errors. Exchange adapters map raw API error payloads
// onto these so the engine can branch without knowing venue formats.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOrderRejected         = errors.New("order rejected")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrNetwork               = errors.New("network error")
	ErrInvalidPair           = errors.New("invalid pair")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrExchangeMaintenance   = errors.New("exchange maintenance")
	ErrOrderNotFound         = errors.New("order not found")
	ErrDuplicateOrder        = errors.New("duplicate order")
	ErrInvalidOrderParameter = errors.New("invalid order parameter")
	ErrMinimalAmount         = errors.New("minimal order amount is not met")
	ErrRatesUnavailable      = errors.New("rates unavailable")
)
