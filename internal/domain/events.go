package domain

import "time"

// MarketEventType identifies the kind of state change an event records
type MarketEventType string

const (
	EventTokenMinted      MarketEventType = "token.minted"
	EventTokenTransferred MarketEventType = "token.transferred"
	EventTokenBurned      MarketEventType = "token.burned"
	EventTokenFrozen      MarketEventType = "token.frozen"
	EventTokenUnfrozen    MarketEventType = "token.unfrozen"

	EventCollectionCreated MarketEventType = "collection.created"
	EventCollectionLocked  MarketEventType = "collection.locked"
	EventPhaseActivated    MarketEventType = "phase.activated"

	EventListingCreated   MarketEventType = "listing.created"
	EventListingUpdated   MarketEventType = "listing.updated"
	EventListingCancelled MarketEventType = "listing.cancelled"
	EventSaleCompleted    MarketEventType = "sale.completed"

	EventOfferMade      MarketEventType = "offer.made"
	EventOfferCancelled MarketEventType = "offer.cancelled"
	EventOfferAccepted  MarketEventType = "offer.accepted"

	EventAuctionCreated MarketEventType = "auction.created"
	EventBidPlaced      MarketEventType = "auction.bid"
	EventAuctionSettled MarketEventType = "auction.settled"
	EventAuctionUnsold  MarketEventType = "auction.unsold"

	EventBundleCreated   MarketEventType = "bundle.created"
	EventBundleSold      MarketEventType = "bundle.sold"
	EventBundleCancelled MarketEventType = "bundle.cancelled"

	EventFeesClaimed MarketEventType = "treasury.fees_claimed"
)

// MarketEvent is the normalized state-change record published to the
// message broker for off-chain indexers. It is informational only; the
// engine's journal, not the event stream, is the source of truth.
type MarketEvent struct {
	Type         MarketEventType `json:"type"`
	BlockHeight  BlockHeight     `json:"block_height"`
	Actor        Principal       `json:"actor"`
	Counterparty *Principal      `json:"counterparty,omitempty"`
	TokenID      *TokenID        `json:"token_id,omitempty"`
	CollectionID *CollectionID   `json:"collection_id,omitempty"`
	AuctionID    *AuctionID      `json:"auction_id,omitempty"`
	BundleID     *BundleID       `json:"bundle_id,omitempty"`
	Amount       Amount          `json:"amount,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Valid reports whether the event carries the fields its type requires
func (e *MarketEvent) Valid() bool {
	if e.Type == "" || !e.Actor.Valid() {
		return false
	}

	switch e.Type {
	case EventTokenMinted, EventTokenTransferred, EventTokenBurned,
		EventTokenFrozen, EventTokenUnfrozen,
		EventListingCreated, EventListingUpdated, EventListingCancelled,
		EventSaleCompleted,
		EventOfferMade, EventOfferCancelled, EventOfferAccepted:
		return e.TokenID != nil
	case EventCollectionCreated, EventCollectionLocked, EventPhaseActivated:
		return e.CollectionID != nil
	case EventAuctionCreated, EventBidPlaced, EventAuctionSettled, EventAuctionUnsold:
		return e.AuctionID != nil
	case EventBundleCreated, EventBundleSold, EventBundleCancelled:
		return e.BundleID != nil
	case EventFeesClaimed:
		return e.Amount > 0
	default:
		return false
	}
}
