package engine

import (
	"context"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

const (
	maxCollectionNameLength = 64
	maxAirdropRecipients    = 200
)

func (e *Engine) collectionByID(id domain.CollectionID) (*domain.Collection, error) {
	c, ok := e.collections[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

const opCreateCollection = "create_collection"

type createCollectionArgs struct {
	Name       string                    `json:"name"`
	MaxSupply  uint64                    `json:"max_supply"`
	RoyaltyBps uint16                    `json:"royalty_bps"`
	MintPrice  domain.Amount             `json:"mint_price"`
	Socials    *domain.CollectionSocials `json:"socials,omitempty"`
}

// CreateCollection registers a collection with the basic metadata set.
// The fixed action fee is charged atomically with registration.
func (e *Engine) CreateCollection(ctx context.Context, caller domain.Principal, name string, maxSupply uint64, royaltyBps uint16, mintPrice domain.Amount) (domain.CollectionID, error) {
	return e.createCollectionOp(ctx, caller, createCollectionArgs{
		Name:       name,
		MaxSupply:  maxSupply,
		RoyaltyBps: royaltyBps,
		MintPrice:  mintPrice,
	})
}

// CreateCollectionFull registers a collection with the extended metadata
// set (description, banner, socials). Shares every invariant with the
// basic variant.
func (e *Engine) CreateCollectionFull(ctx context.Context, caller domain.Principal, name string, maxSupply uint64, royaltyBps uint16, mintPrice domain.Amount, socials domain.CollectionSocials) (domain.CollectionID, error) {
	return e.createCollectionOp(ctx, caller, createCollectionArgs{
		Name:       name,
		MaxSupply:  maxSupply,
		RoyaltyBps: royaltyBps,
		MintPrice:  mintPrice,
		Socials:    &socials,
	})
}

func (e *Engine) createCollectionOp(ctx context.Context, caller domain.Principal, args createCollectionArgs) (domain.CollectionID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createCollection(ctx, caller, args)
}

func (e *Engine) createCollection(ctx context.Context, caller domain.Principal, args createCollectionArgs) (domain.CollectionID, error) {
	if !caller.Valid() {
		return 0, fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}
	if args.Name == "" || len(args.Name) > maxCollectionNameLength {
		return 0, fmt.Errorf("collection name: %w", domain.ErrInvalidArgument)
	}
	if args.MaxSupply == 0 {
		return 0, fmt.Errorf("max supply: %w", domain.ErrInvalidArgument)
	}
	if args.RoyaltyBps > domain.MaxRoyaltyBps {
		return 0, fmt.Errorf("royalty %d bps: %w", args.RoyaltyBps, domain.ErrRoyaltyOutOfRange)
	}
	if args.Socials != nil {
		if args.Socials.BannerURI != "" && !domain.ValidURI(args.Socials.BannerURI) {
			return 0, fmt.Errorf("banner uri: %w", domain.ErrInvalidArgument)
		}
	}
	if !e.accounts.canSpend(caller, e.cfg.ActionFee) {
		return 0, fmt.Errorf("action fee: %w", domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opCreateCollection, args); err != nil {
		return 0, err
	}

	e.chargeFee(caller)
	e.lastCollectionID++
	id := e.lastCollectionID
	e.collections[id] = &domain.Collection{
		ID:         id,
		Creator:    caller,
		Name:       args.Name,
		MaxSupply:  args.MaxSupply,
		RoyaltyBps: args.RoyaltyBps,
		MintPrice:  args.MintPrice,
		Socials:    args.Socials,
		Phases:     make(map[domain.PhaseKind]*domain.MintPhase),
	}
	e.emit(domain.MarketEvent{
		Type:         domain.EventCollectionCreated,
		BlockHeight:  e.height,
		Actor:        caller,
		CollectionID: &id,
	})
	return id, nil
}

const opSetMintPhase = "set_mint_phase"

type setMintPhaseArgs struct {
	CollectionID domain.CollectionID `json:"collection_id"`
	Kind         domain.PhaseKind    `json:"kind"`
	StartBlock   domain.BlockHeight  `json:"start_block"`
	EndBlock     domain.BlockHeight  `json:"end_block"`
	Price        domain.Amount       `json:"price"`
	MaxPerWallet uint64              `json:"max_per_wallet"`
}

// SetMintPhase defines (without activating) a mint phase for a collection.
// Creator-only. Redefining a phase overwrites the prior definition.
func (e *Engine) SetMintPhase(ctx context.Context, caller domain.Principal, id domain.CollectionID, phase domain.MintPhase) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.collectionByID(id)
	if err != nil {
		return err
	}
	if c.Creator != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotAuthorized)
	}
	if !phase.Kind.Valid() {
		return fmt.Errorf("phase kind %q: %w", phase.Kind, domain.ErrInvalidArgument)
	}
	if phase.StartBlock >= phase.EndBlock {
		return fmt.Errorf("phase window [%d,%d): %w", phase.StartBlock, phase.EndBlock, domain.ErrInvalidArgument)
	}
	if phase.MaxPerWallet == 0 {
		return fmt.Errorf("max per wallet: %w", domain.ErrInvalidArgument)
	}

	if err := e.journalAppend(ctx, caller, opSetMintPhase, setMintPhaseArgs{
		CollectionID: id,
		Kind:         phase.Kind,
		StartBlock:   phase.StartBlock,
		EndBlock:     phase.EndBlock,
		Price:        phase.Price,
		MaxPerWallet: phase.MaxPerWallet,
	}); err != nil {
		return err
	}

	p := phase
	c.Phases[phase.Kind] = &p
	return nil
}

const opActivatePhase = "activate_phase"

type activatePhaseArgs struct {
	CollectionID domain.CollectionID `json:"collection_id"`
	Kind         domain.PhaseKind    `json:"kind"`
}

// ActivatePhase switches the collection's active-phase pointer. Exactly
// one phase is live at a time; activating a phase deactivates the prior
// one. Creator-only.
func (e *Engine) ActivatePhase(ctx context.Context, caller domain.Principal, id domain.CollectionID, kind domain.PhaseKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.collectionByID(id)
	if err != nil {
		return err
	}
	if c.Creator != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotAuthorized)
	}
	if _, ok := c.Phases[kind]; !ok {
		return fmt.Errorf("phase %q of %s: %w", kind, id, domain.ErrNotFound)
	}

	if err := e.journalAppend(ctx, caller, opActivatePhase, activatePhaseArgs{CollectionID: id, Kind: kind}); err != nil {
		return err
	}

	c.ActivePhase = kind
	e.emit(domain.MarketEvent{
		Type:         domain.EventPhaseActivated,
		BlockHeight:  e.height,
		Actor:        caller,
		CollectionID: &id,
	})
	return nil
}

const opAddToAllowlist = "add_to_allowlist"

type addToAllowlistArgs struct {
	CollectionID domain.CollectionID `json:"collection_id"`
	Wallet       domain.Principal    `json:"wallet"`
	Spots        uint64              `json:"spots"`
}

// AddToAllowlist grants a wallet minting spots for the collection's
// allowlist phase. Creator-only; spots accumulate across grants.
func (e *Engine) AddToAllowlist(ctx context.Context, caller domain.Principal, id domain.CollectionID, wallet domain.Principal, spots uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.collectionByID(id)
	if err != nil {
		return err
	}
	if c.Creator != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotAuthorized)
	}
	if !wallet.Valid() {
		return fmt.Errorf("wallet: %w", domain.ErrInvalidArgument)
	}
	if spots == 0 {
		return fmt.Errorf("spots: %w", domain.ErrInvalidArgument)
	}

	if err := e.journalAppend(ctx, caller, opAddToAllowlist, addToAllowlistArgs{CollectionID: id, Wallet: wallet, Spots: spots}); err != nil {
		return err
	}

	e.allowlist[allowlistKey{Collection: id, Wallet: wallet}] += spots
	return nil
}

const opMintFromCollection = "mint_from_collection"

type collectionArgs struct {
	CollectionID domain.CollectionID `json:"collection_id"`
}

// MintFromCollection mints the next token of a collection under its active
// phase. Validation order: collection not locked, an active phase exists
// and the current block is inside its window, allowlist spots (for an
// allowlist phase), per-wallet cap, supply cap. The phase price is paid to
// the creator and the fixed action fee to the treasury, atomically with
// the mint.
func (e *Engine) MintFromCollection(ctx context.Context, caller domain.Principal, id domain.CollectionID) (domain.TokenID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mintPaused {
		return 0, fmt.Errorf("minting paused: %w", domain.ErrNotAuthorized)
	}
	if !caller.Valid() {
		return 0, fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}
	c, err := e.collectionByID(id)
	if err != nil {
		return 0, err
	}
	if c.Locked {
		return 0, fmt.Errorf("%s: %w", id, domain.ErrCollectionLocked)
	}
	if c.ActivePhase == "" {
		return 0, fmt.Errorf("no active phase on %s: %w", id, domain.ErrNotAuthorized)
	}
	phase := c.Phases[c.ActivePhase]
	if e.height < phase.StartBlock || e.height >= phase.EndBlock {
		return 0, fmt.Errorf("block %d outside phase window [%d,%d): %w",
			e.height, phase.StartBlock, phase.EndBlock, domain.ErrNotAuthorized)
	}

	alKey := allowlistKey{Collection: id, Wallet: caller}
	if phase.Kind == domain.PhaseAllowlist && e.allowlist[alKey] == 0 {
		return 0, fmt.Errorf("%s on %s: %w", caller, id, domain.ErrNotAllowlisted)
	}

	wmKey := walletMintKey{Collection: id, Phase: phase.Kind, Wallet: caller}
	if e.walletMints[wmKey] >= phase.MaxPerWallet {
		return 0, fmt.Errorf("wallet cap %d on %s: %w", phase.MaxPerWallet, id, domain.ErrMintLimitReached)
	}
	if c.MintedCount >= c.MaxSupply {
		return 0, fmt.Errorf("supply cap %d on %s: %w", c.MaxSupply, id, domain.ErrMintLimitReached)
	}

	cost := phase.Price + e.cfg.ActionFee
	if !e.accounts.canSpend(caller, cost) {
		return 0, fmt.Errorf("phase price plus fee: %w", domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opMintFromCollection, collectionArgs{CollectionID: id}); err != nil {
		return 0, err
	}

	e.chargeFee(caller)
	if phase.Price > 0 {
		e.accounts.debit(caller, phase.Price)
		e.accounts.credit(c.Creator, phase.Price)
	}

	c.MintedCount++
	e.walletMints[wmKey]++
	if phase.Kind == domain.PhaseAllowlist {
		e.allowlist[alKey]--
	}

	uri := fmt.Sprintf("collection://%d/%d", uint64(id), c.MintedCount)
	cid := id
	return e.mintToken(caller, uri, &cid), nil
}

const opAirdrop = "airdrop"

type airdropArgs struct {
	CollectionID domain.CollectionID `json:"collection_id"`
	Recipients   []domain.Principal  `json:"recipients"`
}

// Airdrop mints one token per recipient, bypassing the action fee and all
// phase checks. Creator-only; the supply cap still binds. Returns the
// count minted.
func (e *Engine) Airdrop(ctx context.Context, caller domain.Principal, id domain.CollectionID, recipients []domain.Principal) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.collectionByID(id)
	if err != nil {
		return 0, err
	}
	if c.Creator != caller {
		return 0, fmt.Errorf("%s: %w", id, domain.ErrNotAuthorized)
	}
	if c.Locked {
		return 0, fmt.Errorf("%s: %w", id, domain.ErrCollectionLocked)
	}
	if len(recipients) == 0 || len(recipients) > maxAirdropRecipients {
		return 0, fmt.Errorf("recipient count %d: %w", len(recipients), domain.ErrInvalidArgument)
	}
	for i, r := range recipients {
		if !r.Valid() {
			return 0, fmt.Errorf("recipient %d: %w", i, domain.ErrInvalidArgument)
		}
	}
	if c.MintedCount+uint64(len(recipients)) > c.MaxSupply {
		return 0, fmt.Errorf("supply cap %d on %s: %w", c.MaxSupply, id, domain.ErrMintLimitReached)
	}

	if err := e.journalAppend(ctx, caller, opAirdrop, airdropArgs{CollectionID: id, Recipients: recipients}); err != nil {
		return 0, err
	}

	cid := id
	for _, r := range recipients {
		c.MintedCount++
		uri := fmt.Sprintf("collection://%d/%d", uint64(id), c.MintedCount)
		e.mintToken(r, uri, &cid)
	}
	return uint64(len(recipients)), nil
}

const opLockCollection = "lock_collection"

// LockCollection permanently closes a collection to further minting.
// Creator-only and one-way: there is no unlock path, not even for the
// admin.
func (e *Engine) LockCollection(ctx context.Context, caller domain.Principal, id domain.CollectionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.collectionByID(id)
	if err != nil {
		return err
	}
	if c.Creator != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotAuthorized)
	}
	if c.Locked {
		return fmt.Errorf("%s: %w", id, domain.ErrCollectionLocked)
	}

	if err := e.journalAppend(ctx, caller, opLockCollection, collectionArgs{CollectionID: id}); err != nil {
		return err
	}

	c.Locked = true
	e.emit(domain.MarketEvent{
		Type:         domain.EventCollectionLocked,
		BlockHeight:  e.height,
		Actor:        caller,
		CollectionID: &id,
	})
	return nil
}
