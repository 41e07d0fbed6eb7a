package engine

import (
	"context"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

func (e *Engine) auctionByID(id domain.AuctionID) (*domain.Auction, error) {
	a, ok := e.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

const opCreateAuction = "create_auction"

type createAuctionArgs struct {
	TokenID        domain.TokenID     `json:"token_id"`
	ReservePrice   domain.Amount      `json:"reserve_price"`
	DurationBlocks domain.BlockHeight `json:"duration_blocks"`
}

// CreateAuction opens a timed auction on a token. Owner-only; the end
// block is the current height plus duration. The fixed action fee is
// charged atomically with creation.
func (e *Engine) CreateAuction(ctx context.Context, caller domain.Principal, id domain.TokenID, reserve domain.Amount, duration domain.BlockHeight) (domain.AuctionID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.marketPaused {
		return 0, fmt.Errorf("marketplace paused: %w", domain.ErrNotAuthorized)
	}
	t, err := e.tokenByID(id)
	if err != nil {
		return 0, err
	}
	if t.Owner != caller {
		return 0, fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
	}
	if t.Frozen {
		return 0, fmt.Errorf("%s: %w", id, domain.ErrTokenFrozen)
	}
	if t.State != domain.TokenStateFree {
		return 0, fmt.Errorf("%s is %s: %w", id, t.State, domain.ErrTokenEncumbered)
	}
	if reserve == 0 {
		return 0, fmt.Errorf("reserve price: %w", domain.ErrInvalidPrice)
	}
	if duration == 0 {
		return 0, fmt.Errorf("auction duration: %w", domain.ErrInvalidArgument)
	}
	if !e.accounts.canSpend(caller, e.cfg.ActionFee) {
		return 0, fmt.Errorf("action fee: %w", domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opCreateAuction, createAuctionArgs{
		TokenID:        id,
		ReservePrice:   reserve,
		DurationBlocks: duration,
	}); err != nil {
		return 0, err
	}

	e.chargeFee(caller)
	e.lastAuctionID++
	aid := e.lastAuctionID
	e.auctions[aid] = &domain.Auction{
		ID:           aid,
		TokenID:      id,
		Seller:       caller,
		ReservePrice: reserve,
		EndBlock:     e.height + duration,
	}
	t.State = domain.TokenStateAuctioned

	e.emit(domain.MarketEvent{
		Type:        domain.EventAuctionCreated,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
		AuctionID:   &aid,
		Amount:      reserve,
	})
	return aid, nil
}

const opPlaceBid = "place_bid"

type placeBidArgs struct {
	AuctionID domain.AuctionID `json:"auction_id"`
	Amount    domain.Amount    `json:"amount"`
}

// PlaceBid escrows a bid on an open auction. The first bid must meet the
// reserve; every later bid must exceed the current bid by at least 5%,
// with the prior highest bidder refunded in full. A bid landing inside
// the anti-snipe window extends the end block by a fixed increment.
func (e *Engine) PlaceBid(ctx context.Context, caller domain.Principal, id domain.AuctionID, amount domain.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.auctionByID(id)
	if err != nil {
		return err
	}
	if e.height >= a.EndBlock {
		return fmt.Errorf("bidding closed on %s at block %d: %w", id, a.EndBlock, domain.ErrInvalidArgument)
	}
	if caller == a.Seller {
		return fmt.Errorf("bidding on own auction: %w", domain.ErrInvalidArgument)
	}
	if !caller.Valid() {
		return fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}

	if a.HighestBidder == nil {
		if amount < a.ReservePrice {
			return fmt.Errorf("bid %d below reserve %d: %w", amount, a.ReservePrice, domain.ErrBidTooLow)
		}
	} else if amount < domain.MinNextBid(a.CurrentBid) {
		return fmt.Errorf("bid %d below minimum %d: %w", amount, domain.MinNextBid(a.CurrentBid), domain.ErrBidTooLow)
	}

	// The caller's own prior escrow (when rebidding as highest bidder) is
	// refunded before the new bid is reserved
	var priorOwn domain.Amount
	if a.HighestBidder != nil && *a.HighestBidder == caller {
		priorOwn = e.accounts.escrowed(bidEscrow(id, caller))
	}
	if e.accounts.balance(caller)+priorOwn < amount {
		return fmt.Errorf("bid %d: %w", amount, domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opPlaceBid, placeBidArgs{AuctionID: id, Amount: amount}); err != nil {
		return err
	}

	// Refund the outbid bidder in full
	if a.HighestBidder != nil {
		prev := *a.HighestBidder
		e.accounts.release(bidEscrow(id, prev), prev)
	}
	e.accounts.reserve(bidEscrow(id, caller), caller, amount)

	bidder := caller
	a.CurrentBid = amount
	a.HighestBidder = &bidder

	if a.EndBlock-e.height <= e.cfg.AntiSnipeWindow {
		a.EndBlock += e.cfg.AntiSnipeExtension
	}

	e.emit(domain.MarketEvent{
		Type:        domain.EventBidPlaced,
		BlockHeight: e.height,
		Actor:       caller,
		AuctionID:   &id,
		Amount:      amount,
	})
	return nil
}

const opSettleAuction = "settle_auction"

type auctionArgs struct {
	AuctionID domain.AuctionID `json:"auction_id"`
}

// SettleAuction finalizes an auction once its end block has passed.
// Callable by anyone. With a winning bid, the token transfers to the
// highest bidder and the bid distributes under the standard royalty/fee
// split; with zero bids, the auction closes unsold and the token is
// released unchanged.
func (e *Engine) SettleAuction(ctx context.Context, caller domain.Principal, id domain.AuctionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.auctionByID(id)
	if err != nil {
		return err
	}
	if e.height < a.EndBlock {
		return fmt.Errorf("%s open until block %d: %w", id, a.EndBlock, domain.ErrAuctionActive)
	}
	t, err := e.tokenByID(a.TokenID)
	if err != nil {
		return err
	}
	if a.HighestBidder != nil && t.Frozen {
		return fmt.Errorf("%s: %w", a.TokenID, domain.ErrTokenFrozen)
	}

	if err := e.journalAppend(ctx, caller, opSettleAuction, auctionArgs{AuctionID: id}); err != nil {
		return err
	}

	tid := a.TokenID
	if a.HighestBidder == nil {
		// Unsold: terminal close, ownership unchanged
		delete(e.auctions, id)
		t.State = domain.TokenStateFree
		e.emit(domain.MarketEvent{
			Type:        domain.EventAuctionUnsold,
			BlockHeight: e.height,
			Actor:       a.Seller,
			TokenID:     &tid,
			AuctionID:   &id,
		})
		return nil
	}

	winner := *a.HighestBidder
	royaltyBps, creator := e.royaltyFor(t)
	split := domain.SplitSale(a.CurrentBid, royaltyBps, e.cfg.MarketFeeBps)
	e.feesAccrued += e.accounts.settle(bidEscrow(id, winner), split, a.Seller, creator)

	delete(e.auctions, id)
	t.Owner = winner
	t.Approved = nil
	t.State = domain.TokenStateFree

	e.emit(domain.MarketEvent{
		Type:         domain.EventAuctionSettled,
		BlockHeight:  e.height,
		Actor:        winner,
		Counterparty: &a.Seller,
		TokenID:      &tid,
		AuctionID:    &id,
		Amount:       a.CurrentBid,
	})
	return nil
}

const opCancelAuction = "cancel_auction"

// CancelAuction withdraws an auction that has received no qualifying bid.
// Seller-only; once a bid has been accepted the auction can only settle.
func (e *Engine) CancelAuction(ctx context.Context, caller domain.Principal, id domain.AuctionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.auctionByID(id)
	if err != nil {
		return err
	}
	if a.Seller != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrSellerOnly)
	}
	if a.HighestBidder != nil {
		return fmt.Errorf("%s has a standing bid: %w", id, domain.ErrAuctionActive)
	}

	if err := e.journalAppend(ctx, caller, opCancelAuction, auctionArgs{AuctionID: id}); err != nil {
		return err
	}

	tid := a.TokenID
	delete(e.auctions, id)
	if t, ok := e.tokens[tid]; ok {
		t.State = domain.TokenStateFree
	}

	e.emit(domain.MarketEvent{
		Type:        domain.EventAuctionUnsold,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &tid,
		AuctionID:   &id,
	})
	return nil
}
