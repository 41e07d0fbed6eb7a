package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/artfolio/chainmarket/internal/adapter"
	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/logger"
	"github.com/artfolio/chainmarket/internal/messaging"
)

const (
	// DefaultActionFee is the fixed per-action fee (0.01 units in micro-units)
	DefaultActionFee domain.Amount = 10_000

	// DefaultMarketFeeBps is the marketplace cut on every sale (2.5%)
	DefaultMarketFeeBps uint16 = 250

	// DefaultAntiSnipeWindow is how close to the end block a bid must land
	// to trigger an extension
	DefaultAntiSnipeWindow domain.BlockHeight = 12

	// DefaultAntiSnipeExtension is the fixed extension added when a bid
	// lands inside the anti-snipe window (~12h of blocks)
	DefaultAntiSnipeExtension domain.BlockHeight = 72

	// eventBufferSize bounds the in-flight event queue to the publisher
	eventBufferSize = 1024
)

// Config holds engine parameters. Zero values fall back to defaults,
// except Admin which is required.
type Config struct {
	// Admin is the principal allowed to unfreeze tokens, pause the
	// marketplace and minting, credit balances, advance the clock, and
	// claim accrued fees
	Admin domain.Principal

	// ActionFee is charged atomically with mint, create-collection,
	// create-auction, and list-nft
	ActionFee domain.Amount

	// MarketFeeBps is the marketplace cut applied to every sale
	MarketFeeBps uint16

	// AntiSnipeWindow and AntiSnipeExtension control late-bid extension
	AntiSnipeWindow    domain.BlockHeight
	AntiSnipeExtension domain.BlockHeight
}

func (c Config) withDefaults() Config {
	if c.ActionFee == 0 {
		c.ActionFee = DefaultActionFee
	}
	if c.MarketFeeBps == 0 {
		c.MarketFeeBps = DefaultMarketFeeBps
	}
	if c.AntiSnipeWindow == 0 {
		c.AntiSnipeWindow = DefaultAntiSnipeWindow
	}
	if c.AntiSnipeExtension == 0 {
		c.AntiSnipeExtension = DefaultAntiSnipeExtension
	}
	return c
}

// Command is a journaled engine mutation. Successful entrypoints append
// exactly one command before applying their state changes; replaying the
// journal in sequence order rebuilds the full engine state.
type Command struct {
	ID     string             `json:"id"`
	Seq    uint64             `json:"seq"`
	Height domain.BlockHeight `json:"height"`
	Caller domain.Principal   `json:"caller"`
	Op     string             `json:"op"`
	Args   json.RawMessage    `json:"args"`
}

// Journal persists commands before the engine applies them. Append must be
// durable on return; a failed append aborts the entrypoint with no state
// change.
type Journal interface {
	Append(ctx context.Context, cmd Command) error
}

type allowlistKey struct {
	Collection domain.CollectionID
	Wallet     domain.Principal
}

type walletMintKey struct {
	Collection domain.CollectionID
	Phase      domain.PhaseKind
	Wallet     domain.Principal
}

type offerKey struct {
	Token   domain.TokenID
	Offerer domain.Principal
}

type delegateKey struct {
	Owner    domain.Principal
	Delegate domain.Principal
}

// Engine is the marketplace state machine. All state lives in id-keyed
// arena tables guarded by a single mutex: every entrypoint validates all
// preconditions first, journals the command, then applies mutations that
// cannot fail. Concurrent callers are strictly serialized, never
// interleaved mid-operation.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	height domain.BlockHeight

	tokens      map[domain.TokenID]*domain.Token
	lastTokenID domain.TokenID

	collections      map[domain.CollectionID]*domain.Collection
	lastCollectionID domain.CollectionID
	allowlist        map[allowlistKey]uint64
	walletMints      map[walletMintKey]uint64

	listings map[domain.TokenID]*domain.Listing
	offers   map[offerKey]*domain.Offer

	auctions      map[domain.AuctionID]*domain.Auction
	lastAuctionID domain.AuctionID

	bundles      map[domain.BundleID]*domain.Bundle
	lastBundleID domain.BundleID

	delegates map[delegateKey]*domain.Delegate

	accounts    *accounts
	feesAccrued domain.Amount

	mintPaused   bool
	marketPaused bool

	journal   Journal
	seq       uint64
	replaying bool

	publisher messaging.Publisher
	clock     adapter.Clock
	events    chan domain.MarketEvent
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates an engine. Journal and publisher may be nil; a nil journal
// disables durability and a nil publisher disables event streaming.
func New(cfg Config, journal Journal, publisher messaging.Publisher, clock adapter.Clock) (*Engine, error) {
	if !cfg.Admin.Valid() {
		return nil, fmt.Errorf("engine config: %w: admin principal", domain.ErrInvalidArgument)
	}
	if clock == nil {
		clock = adapter.NewClock()
	}

	e := &Engine{
		cfg:         cfg.withDefaults(),
		tokens:      make(map[domain.TokenID]*domain.Token),
		collections: make(map[domain.CollectionID]*domain.Collection),
		allowlist:   make(map[allowlistKey]uint64),
		walletMints: make(map[walletMintKey]uint64),
		listings:    make(map[domain.TokenID]*domain.Listing),
		offers:      make(map[offerKey]*domain.Offer),
		auctions:    make(map[domain.AuctionID]*domain.Auction),
		bundles:     make(map[domain.BundleID]*domain.Bundle),
		delegates:   make(map[delegateKey]*domain.Delegate),
		accounts:    newAccounts(),
		journal:     journal,
		publisher:   publisher,
		clock:       clock,
	}

	if publisher != nil {
		e.events = make(chan domain.MarketEvent, eventBufferSize)
		e.stopCh = make(chan struct{})
		e.stoppedCh = make(chan struct{})
		go e.pumpEvents()
	}

	return e, nil
}

// Close stops the event pump, draining any queued events
func (e *Engine) Close() {
	if e.stopCh == nil {
		return
	}
	close(e.stopCh)
	<-e.stoppedCh
}

// pumpEvents forwards staged events to the publisher outside the state
// lock. Publish failures are logged, never propagated: the journal, not
// the event stream, is the source of truth.
func (e *Engine) pumpEvents() {
	defer close(e.stoppedCh)
	for {
		select {
		case evt := <-e.events:
			if err := e.publisher.PublishEvent(context.Background(), &evt); err != nil {
				logger.Error(err,
					zap.String("event_type", string(evt.Type)),
					zap.Uint64("block_height", uint64(evt.BlockHeight)),
				)
			}
		case <-e.stopCh:
			// Drain what is already queued before exiting
			for {
				select {
				case evt := <-e.events:
					if err := e.publisher.PublishEvent(context.Background(), &evt); err != nil {
						logger.Error(err, zap.String("event_type", string(evt.Type)))
					}
				default:
					return
				}
			}
		}
	}
}

// emit stages an event for publication. Called with the state lock held;
// the channel is buffered so staging never blocks a mutation. Replay does
// not re-publish.
func (e *Engine) emit(evt domain.MarketEvent) {
	if e.publisher == nil || e.replaying {
		return
	}
	evt.Timestamp = e.clock.Now()
	select {
	case e.events <- evt:
	default:
		logger.Warn("event queue full, dropping event",
			zap.String("event_type", string(evt.Type)),
		)
	}
}

// journalAppend persists the command for the current entrypoint. Must be
// called after all validation and before any mutation.
func (e *Engine) journalAppend(ctx context.Context, caller domain.Principal, op string, args any) error {
	if e.journal == nil || e.replaying {
		return nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", op, err)
	}

	cmd := Command{
		ID:     ulid.Make().String(),
		Seq:    e.seq + 1,
		Height: e.height,
		Caller: caller,
		Op:     op,
		Args:   raw,
	}
	if err := e.journal.Append(ctx, cmd); err != nil {
		return fmt.Errorf("journal append %s: %w", op, err)
	}

	e.seq++
	return nil
}

// requireAdmin gates admin-only entrypoints
func (e *Engine) requireAdmin(caller domain.Principal) error {
	if caller != e.cfg.Admin {
		return domain.ErrNotAuthorized
	}
	return nil
}

// Height returns the current logical block height
func (e *Engine) Height() domain.BlockHeight {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.height
}

const opAdvanceBlock = "advance_block"

type advanceBlockArgs struct {
	Blocks uint64 `json:"blocks"`
}

// AdvanceBlock moves the logical clock forward by n blocks. Admin-only and
// journaled, so replay reproduces every deadline decision exactly.
func (e *Engine) AdvanceBlock(ctx context.Context, caller domain.Principal, n uint64) (domain.BlockHeight, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("advance by zero blocks: %w", domain.ErrInvalidArgument)
	}

	if err := e.journalAppend(ctx, caller, opAdvanceBlock, advanceBlockArgs{Blocks: n}); err != nil {
		return 0, err
	}

	e.height += domain.BlockHeight(n)
	return e.height, nil
}

const opSetMintPaused = "set_mint_paused"

type setPausedArgs struct {
	Paused bool `json:"paused"`
}

// SetMintPaused toggles the global minting kill switch. Admin-only.
func (e *Engine) SetMintPaused(ctx context.Context, caller domain.Principal, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.journalAppend(ctx, caller, opSetMintPaused, setPausedArgs{Paused: paused}); err != nil {
		return err
	}

	e.mintPaused = paused
	return nil
}

const opSetMarketplacePaused = "set_marketplace_paused"

// SetMarketplacePaused toggles the global kill switch for new listings,
// offers, auctions, and bundles. Admin-only. Existing records can still be
// cancelled or settled while paused.
func (e *Engine) SetMarketplacePaused(ctx context.Context, caller domain.Principal, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.journalAppend(ctx, caller, opSetMarketplacePaused, setPausedArgs{Paused: paused}); err != nil {
		return err
	}

	e.marketPaused = paused
	return nil
}

const opCreditBalance = "credit_balance"

type creditBalanceArgs struct {
	Principal domain.Principal `json:"principal"`
	Amount    domain.Amount    `json:"amount"`
}

// CreditBalance funds an account. Admin-only: this is the off-chain
// mirror of value arriving from the host ledger.
func (e *Engine) CreditBalance(ctx context.Context, caller, principal domain.Principal, amount domain.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if !principal.Valid() {
		return fmt.Errorf("credit principal: %w", domain.ErrInvalidArgument)
	}
	if amount == 0 {
		return fmt.Errorf("credit amount: %w", domain.ErrInvalidPrice)
	}

	if err := e.journalAppend(ctx, caller, opCreditBalance, creditBalanceArgs{Principal: principal, Amount: amount}); err != nil {
		return err
	}

	e.accounts.credit(principal, amount)
	return nil
}

// Replay re-executes journaled commands in sequence order to rebuild
// engine state. Must be called before the engine serves any traffic.
// Commands were validated when first executed, so a replay failure means
// the journal is corrupt.
func (e *Engine) Replay(ctx context.Context, cmds []Command) error {
	e.mu.Lock()
	e.replaying = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.replaying = false
		e.mu.Unlock()
	}()

	for _, cmd := range cmds {
		if err := e.apply(ctx, cmd); err != nil {
			return fmt.Errorf("replay seq %d op %s: %w", cmd.Seq, cmd.Op, err)
		}
		e.mu.Lock()
		e.seq = cmd.Seq
		e.mu.Unlock()
	}

	return nil
}

// apply dispatches a single journaled command through the same entrypoint
// that produced it
func (e *Engine) apply(ctx context.Context, cmd Command) error {
	decode := func(v any) error {
		if err := json.Unmarshal(cmd.Args, v); err != nil {
			return fmt.Errorf("decode args: %w", err)
		}
		return nil
	}

	switch cmd.Op {
	case opAdvanceBlock:
		var a advanceBlockArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.AdvanceBlock(ctx, cmd.Caller, a.Blocks)
		return err

	case opSetMintPaused:
		var a setPausedArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.SetMintPaused(ctx, cmd.Caller, a.Paused)

	case opSetMarketplacePaused:
		var a setPausedArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.SetMarketplacePaused(ctx, cmd.Caller, a.Paused)

	case opCreditBalance:
		var a creditBalanceArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.CreditBalance(ctx, cmd.Caller, a.Principal, a.Amount)

	case opMint:
		var a mintArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.Mint(ctx, cmd.Caller, a.URI)
		return err

	case opBatchMint:
		var a batchMintArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.BatchMint(ctx, cmd.Caller, a.URIs)
		return err

	case opTransfer:
		var a transferArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.Transfer(ctx, cmd.Caller, a.TokenID, a.From, a.To)

	case opBurn:
		var a tokenArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.Burn(ctx, cmd.Caller, a.TokenID)

	case opFreeze:
		var a tokenArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.Freeze(ctx, cmd.Caller, a.TokenID)

	case opUnfreeze:
		var a tokenArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.Unfreeze(ctx, cmd.Caller, a.TokenID)

	case opApprove:
		var a approveArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.Approve(ctx, cmd.Caller, a.TokenID, a.Spender)

	case opRevokeApproval:
		var a tokenArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.RevokeApproval(ctx, cmd.Caller, a.TokenID)

	case opAddDelegate:
		var a addDelegateArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.AddDelegate(ctx, cmd.Caller, a.Delegate, a.Rights, a.ExpiryBlock)

	case opRemoveDelegate:
		var a removeDelegateArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.RemoveDelegate(ctx, cmd.Caller, a.Delegate)

	case opCreateCollection:
		var a createCollectionArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.createCollection(ctx, cmd.Caller, a)
		return err

	case opSetMintPhase:
		var a setMintPhaseArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.SetMintPhase(ctx, cmd.Caller, a.CollectionID, domain.MintPhase{
			Kind:         a.Kind,
			StartBlock:   a.StartBlock,
			EndBlock:     a.EndBlock,
			Price:        a.Price,
			MaxPerWallet: a.MaxPerWallet,
		})

	case opActivatePhase:
		var a activatePhaseArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.ActivatePhase(ctx, cmd.Caller, a.CollectionID, a.Kind)

	case opAddToAllowlist:
		var a addToAllowlistArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.AddToAllowlist(ctx, cmd.Caller, a.CollectionID, a.Wallet, a.Spots)

	case opMintFromCollection:
		var a collectionArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.MintFromCollection(ctx, cmd.Caller, a.CollectionID)
		return err

	case opAirdrop:
		var a airdropArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.Airdrop(ctx, cmd.Caller, a.CollectionID, a.Recipients)
		return err

	case opLockCollection:
		var a collectionArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.LockCollection(ctx, cmd.Caller, a.CollectionID)

	case opListNFT:
		var a listNFTArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.ListNFT(ctx, cmd.Caller, a.TokenID, a.Price)

	case opCancelListing:
		var a tokenArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.CancelListing(ctx, cmd.Caller, a.TokenID)

	case opUpdateListingPrice:
		var a listNFTArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.UpdateListingPrice(ctx, cmd.Caller, a.TokenID, a.Price)

	case opBuyNFT:
		var a tokenArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.BuyNFT(ctx, cmd.Caller, a.TokenID)

	case opMakeOffer:
		var a makeOfferArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.MakeOffer(ctx, cmd.Caller, a.TokenID, a.Amount, a.ExpiryBlocks)

	case opCancelOffer:
		var a tokenArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.CancelOffer(ctx, cmd.Caller, a.TokenID)

	case opExpireOffer:
		var a expireOfferArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.ExpireOffer(ctx, cmd.Caller, a.TokenID, a.Offerer)

	case opAcceptOffer:
		var a acceptOfferArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.AcceptOffer(ctx, cmd.Caller, a.TokenID, a.Offerer)

	case opCreateAuction:
		var a createAuctionArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.CreateAuction(ctx, cmd.Caller, a.TokenID, a.ReservePrice, a.DurationBlocks)
		return err

	case opPlaceBid:
		var a placeBidArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.PlaceBid(ctx, cmd.Caller, a.AuctionID, a.Amount)

	case opSettleAuction:
		var a auctionArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.SettleAuction(ctx, cmd.Caller, a.AuctionID)

	case opCancelAuction:
		var a auctionArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.CancelAuction(ctx, cmd.Caller, a.AuctionID)

	case opCreateBundle:
		var a createBundleArgs
		if err := decode(&a); err != nil {
			return err
		}
		_, err := e.CreateBundle(ctx, cmd.Caller, a.TokenIDs, a.Price)
		return err

	case opBuyBundle:
		var a bundleArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.BuyBundle(ctx, cmd.Caller, a.BundleID)

	case opCancelBundle:
		var a bundleArgs
		if err := decode(&a); err != nil {
			return err
		}
		return e.CancelBundle(ctx, cmd.Caller, a.BundleID)

	case opClaimFees:
		_, err := e.ClaimFees(ctx, cmd.Caller)
		return err

	default:
		return fmt.Errorf("unknown op %q", cmd.Op)
	}
}
