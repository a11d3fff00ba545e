package exception

import "errors"

// Configuration errors, surfaced at run construction.
var (
	ErrInvalidCapital      = errors.New("initial capital must be > 0")
	ErrUnknownSizingMethod = errors.New("unknown position sizing method")
	ErrInvalidLotSize      = errors.New("lot size must be > 0")
	ErrInvalidThreshold    = errors.New("risk threshold must be > 0")
	ErrNoStrategies        = errors.New("no strategies registered")
)

// Data errors.
var (
	ErrBarOutOfOrder = errors.New("bar timestamp out of order")
	ErrEmptySeries   = errors.New("series has no bars")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Order errors, surfaced as rejections rather than run failures.
var (
	ErrOrderTooSmall       = errors.New("order value below minimum")
	ErrOrderTooLarge       = errors.New("order value above maximum")
	ErrInsufficientCash    = errors.New("insufficient cash")
	ErrInsufficientHolding = errors.New("sell exceeds held quantity")
	ErrPositionLimit       = errors.New("position limit exceeded")
	ErrExposureLimit       = errors.New("total exposure limit exceeded")
	ErrTradingHalted       = errors.New("trading halted by circuit breaker")
)
