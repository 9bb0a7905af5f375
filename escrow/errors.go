package escrow

import "errors"

// Typed failure taxonomy surfaced by every engine operation. Operations either
// fully succeed or fail with one of these sentinels and zero state change.
var (
	// ErrProductNotFound is returned when the catalog has no seller for the
	// referenced product.
	ErrProductNotFound = errors.New("escrow: product not found")
	// ErrOrderNotFound is returned for order ids outside the assigned range.
	ErrOrderNotFound = errors.New("escrow: order not found")
	// ErrSelfPurchase is returned when a seller attempts to buy their own
	// listing.
	ErrSelfPurchase = errors.New("escrow: buyer and seller must differ")
	// ErrNotBuyer is returned when a buyer-only transition is invoked by
	// anyone else.
	ErrNotBuyer = errors.New("escrow: caller is not the buyer")
	// ErrNotSeller is returned when a seller-only transition is invoked by
	// anyone else.
	ErrNotSeller = errors.New("escrow: caller is not the seller")
	// ErrUnauthorized is returned when a governance-gated operation is
	// invoked by an address other than the configured authority.
	ErrUnauthorized = errors.New("escrow: caller is not the authority")
	// ErrInvalidTransition is returned when the order status does not admit
	// the requested transition.
	ErrInvalidTransition = errors.New("escrow: status transition not allowed")
	// ErrPaymentMismatch is returned when the attached value differs from
	// the computed total, in either direction.
	ErrPaymentMismatch = errors.New("escrow: payment must equal total price")
	// ErrUnavailable is returned when the listing is inactive or holds
	// insufficient stock.
	ErrUnavailable = errors.New("escrow: product unavailable")
	// ErrTransferFailed wraps a downstream value-movement failure after the
	// engine has unwound any applied status change.
	ErrTransferFailed = errors.New("escrow: transfer failed")
)
