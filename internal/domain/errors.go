package domain

import "errors"

// The engine's error taxonomy is fixed. Every entrypoint validates all
// preconditions before any mutation; the first failing check aborts the
// call with its specific error and zero side effects.
var (
	// ErrNotOwner is returned when the caller does not own the token
	ErrNotOwner = errors.New("not owner")

	// ErrNotApproved is returned when the caller is neither owner, approved
	// spender, nor an authorized delegate
	ErrNotApproved = errors.New("not approved")

	// ErrNotFound is returned when the referenced entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidPrice is returned when a price or amount is zero or malformed
	ErrInvalidPrice = errors.New("invalid price")

	// ErrTokenFrozen is returned when any transfer path touches a frozen token
	ErrTokenFrozen = errors.New("token frozen")

	// ErrNotAuthorized is returned on admin-only violations and when the
	// marketplace or minting is paused
	ErrNotAuthorized = errors.New("not authorized")

	// ErrRoyaltyOutOfRange is returned when royalty-bps exceeds 2500 (25%)
	ErrRoyaltyOutOfRange = errors.New("royalty out of range")

	// ErrMintLimitReached is returned when the caller's per-wallet mint
	// count would exceed the active phase's max-per-wallet
	ErrMintLimitReached = errors.New("mint limit reached")

	// ErrNotAllowlisted is returned when the caller has no remaining
	// allowlist spots for an allowlist phase
	ErrNotAllowlisted = errors.New("not allowlisted")

	// ErrCollectionLocked is returned when minting into a locked collection
	ErrCollectionLocked = errors.New("collection locked")

	// ErrAuctionActive is returned when settlement is attempted before the
	// auction's end block has passed
	ErrAuctionActive = errors.New("auction active")

	// ErrBidTooLow is returned when a bid is below the reserve price or the
	// minimum increment over the current bid
	ErrBidTooLow = errors.New("bid too low")

	// ErrBundleEmpty is returned when a bundle is created with no tokens
	ErrBundleEmpty = errors.New("bundle empty")

	// ErrBundleTooLarge is returned when a bundle exceeds 10 tokens
	ErrBundleTooLarge = errors.New("bundle too large")

	// ErrSellerOnly is returned when someone other than the seller cancels
	// a listing, auction, or bundle
	ErrSellerOnly = errors.New("seller only")

	// ErrTokenEncumbered is returned by the single-state-per-token guard
	// when a token already sits in a listing, auction, or bundle
	ErrTokenEncumbered = errors.New("token encumbered")

	// ErrInsufficientFunds is returned when the caller's available balance
	// cannot cover the required amount plus any action fee
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidArgument is returned for malformed inputs (empty names,
	// oversized URIs, invalid principals, bad phase windows)
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorCode returns the stable machine code for an engine error, suitable
// for transport boundaries. Unknown errors map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrNotApproved):
		return "not_approved"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrTokenFrozen):
		return "token_frozen"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrRoyaltyOutOfRange):
		return "royalty_out_of_range"
	case errors.Is(err, ErrMintLimitReached):
		return "mint_limit_reached"
	case errors.Is(err, ErrNotAllowlisted):
		return "not_allowlisted"
	case errors.Is(err, ErrCollectionLocked):
		return "collection_locked"
	case errors.Is(err, ErrAuctionActive):
		return "auction_active"
	case errors.Is(err, ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ErrBundleEmpty):
		return "bundle_empty"
	case errors.Is(err, ErrBundleTooLarge):
		return "bundle_too_large"
	case errors.Is(err, ErrSellerOnly):
		return "seller_only"
	case errors.Is(err, ErrTokenEncumbered):
		return "token_encumbered"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal_error"
	}
}
