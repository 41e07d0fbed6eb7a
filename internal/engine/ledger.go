package engine

import (
	"context"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

// tokenByID looks up a live token
func (e *Engine) tokenByID(id domain.TokenID) (*domain.Token, error) {
	t, ok := e.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// delegateFor returns the grant owner→caller if one exists and is unexpired
func (e *Engine) delegateFor(owner, caller domain.Principal) *domain.Delegate {
	d, ok := e.delegates[delegateKey{Owner: owner, Delegate: caller}]
	if !ok || !d.Active(e.height) {
		return nil
	}
	return d
}

// canMoveToken reports whether caller may move the token: owner, approved
// spender, or a delegate holding can-transfer
func (e *Engine) canMoveToken(t *domain.Token, caller domain.Principal) bool {
	if caller == t.Owner {
		return true
	}
	if t.Approved != nil && *t.Approved == caller {
		return true
	}
	if d := e.delegateFor(t.Owner, caller); d != nil && d.Rights.Has(domain.DelegateCanTransfer) {
		return true
	}
	return false
}

// chargeFee debits the fixed action fee and accrues it to the treasury.
// Sufficiency must have been validated.
func (e *Engine) chargeFee(caller domain.Principal) {
	e.accounts.debit(caller, e.cfg.ActionFee)
	e.feesAccrued += e.cfg.ActionFee
}

// mintToken creates the next sequential token. All preconditions must
// already hold.
func (e *Engine) mintToken(owner domain.Principal, uri string, collection *domain.CollectionID) domain.TokenID {
	e.lastTokenID++
	id := e.lastTokenID
	e.tokens[id] = &domain.Token{
		ID:           id,
		Owner:        owner,
		URI:          uri,
		CollectionID: collection,
		State:        domain.TokenStateFree,
	}
	e.emit(domain.MarketEvent{
		Type:         domain.EventTokenMinted,
		BlockHeight:  e.height,
		Actor:        owner,
		TokenID:      &id,
		CollectionID: collection,
	})
	return id
}

const opMint = "mint"

type mintArgs struct {
	URI string `json:"uri"`
}

// Mint creates a standalone token owned by the caller. The fixed action
// fee is charged atomically: the fee transfer and the mint succeed or fail
// together.
func (e *Engine) Mint(ctx context.Context, caller domain.Principal, uri string) (domain.TokenID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mintPaused {
		return 0, fmt.Errorf("minting paused: %w", domain.ErrNotAuthorized)
	}
	if !caller.Valid() {
		return 0, fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}
	if !domain.ValidURI(uri) {
		return 0, fmt.Errorf("uri: %w", domain.ErrInvalidArgument)
	}
	if !e.accounts.canSpend(caller, e.cfg.ActionFee) {
		return 0, fmt.Errorf("action fee: %w", domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opMint, mintArgs{URI: uri}); err != nil {
		return 0, err
	}

	e.chargeFee(caller)
	return e.mintToken(caller, uri, nil), nil
}

const opBatchMint = "batch_mint"

type batchMintArgs struct {
	URIs []string `json:"uris"`
}

// BatchMint folds mint over the URI list with all-or-nothing semantics:
// every URI and the total fee are validated up front, so a batch either
// mints completely or not at all. Returns the last minted id.
func (e *Engine) BatchMint(ctx context.Context, caller domain.Principal, uris []string) (domain.TokenID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mintPaused {
		return 0, fmt.Errorf("minting paused: %w", domain.ErrNotAuthorized)
	}
	if !caller.Valid() {
		return 0, fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}
	if len(uris) == 0 {
		return 0, fmt.Errorf("empty batch: %w", domain.ErrInvalidArgument)
	}
	for i, uri := range uris {
		if !domain.ValidURI(uri) {
			return 0, fmt.Errorf("uri %d: %w", i, domain.ErrInvalidArgument)
		}
	}
	totalFee := e.cfg.ActionFee * domain.Amount(len(uris))
	if !e.accounts.canSpend(caller, totalFee) {
		return 0, fmt.Errorf("batch action fee: %w", domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opBatchMint, batchMintArgs{URIs: uris}); err != nil {
		return 0, err
	}

	var last domain.TokenID
	for _, uri := range uris {
		e.chargeFee(caller)
		last = e.mintToken(caller, uri, nil)
	}
	return last, nil
}

const opTransfer = "transfer"

type transferArgs struct {
	TokenID domain.TokenID   `json:"token_id"`
	From    domain.Principal `json:"from"`
	To      domain.Principal `json:"to"`
}

// Transfer moves a token from its owner to a recipient. The caller must be
// the owner, the approved spender, or a delegate holding an unexpired
// can-transfer grant. Frozen or encumbered tokens reject.
func (e *Engine) Transfer(ctx context.Context, caller domain.Principal, id domain.TokenID, from, to domain.Principal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if t.Owner != from {
		return fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
	}
	if t.Frozen {
		return fmt.Errorf("%s: %w", id, domain.ErrTokenFrozen)
	}
	if t.State != domain.TokenStateFree {
		return fmt.Errorf("%s is %s: %w", id, t.State, domain.ErrTokenEncumbered)
	}
	if !e.canMoveToken(t, caller) {
		return fmt.Errorf("%s: %w", id, domain.ErrNotApproved)
	}
	if !to.Valid() {
		return fmt.Errorf("recipient: %w", domain.ErrInvalidArgument)
	}

	if err := e.journalAppend(ctx, caller, opTransfer, transferArgs{TokenID: id, From: from, To: to}); err != nil {
		return err
	}

	t.Owner = to
	t.Approved = nil
	e.emit(domain.MarketEvent{
		Type:         domain.EventTokenTransferred,
		BlockHeight:  e.height,
		Actor:        from,
		Counterparty: &to,
		TokenID:      &id,
	})
	return nil
}

const opBurn = "burn"

type tokenArgs struct {
	TokenID domain.TokenID `json:"token_id"`
}

// Burn destroys a token. Owner-only; subsequent lookups return not-found.
// Frozen and encumbered tokens cannot be burned.
func (e *Engine) Burn(ctx context.Context, caller domain.Principal, id domain.TokenID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if t.Owner != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
	}
	if t.Frozen {
		return fmt.Errorf("%s: %w", id, domain.ErrTokenFrozen)
	}
	if t.State != domain.TokenStateFree {
		return fmt.Errorf("%s is %s: %w", id, t.State, domain.ErrTokenEncumbered)
	}

	if err := e.journalAppend(ctx, caller, opBurn, tokenArgs{TokenID: id}); err != nil {
		return err
	}

	delete(e.tokens, id)
	e.emit(domain.MarketEvent{
		Type:        domain.EventTokenBurned,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
	})
	return nil
}

const opFreeze = "freeze"

// Freeze blocks every transfer path on a token until the ledger admin
// unfreezes it. Callable by the owner or a can-transfer delegate.
func (e *Engine) Freeze(ctx context.Context, caller domain.Principal, id domain.TokenID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if t.Frozen {
		return fmt.Errorf("%s already frozen: %w", id, domain.ErrTokenFrozen)
	}
	if !e.canMoveToken(t, caller) {
		return fmt.Errorf("%s: %w", id, domain.ErrNotApproved)
	}

	if err := e.journalAppend(ctx, caller, opFreeze, tokenArgs{TokenID: id}); err != nil {
		return err
	}

	t.Frozen = true
	e.emit(domain.MarketEvent{
		Type:        domain.EventTokenFrozen,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
	})
	return nil
}

const opUnfreeze = "unfreeze"

// Unfreeze lifts a freeze. Restricted to the ledger admin: the authority
// is intentionally asymmetric so an owner cannot reverse a freeze imposed
// for moderation.
func (e *Engine) Unfreeze(ctx context.Context, caller domain.Principal, id domain.TokenID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if !t.Frozen {
		return fmt.Errorf("%s not frozen: %w", id, domain.ErrInvalidArgument)
	}

	if err := e.journalAppend(ctx, caller, opUnfreeze, tokenArgs{TokenID: id}); err != nil {
		return err
	}

	t.Frozen = false
	e.emit(domain.MarketEvent{
		Type:        domain.EventTokenUnfrozen,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
	})
	return nil
}

const opApprove = "approve"

type approveArgs struct {
	TokenID domain.TokenID   `json:"token_id"`
	Spender domain.Principal `json:"spender"`
}

// Approve designates a spender allowed to transfer the token. Owner-only;
// cleared automatically on any ownership change.
func (e *Engine) Approve(ctx context.Context, caller domain.Principal, id domain.TokenID, spender domain.Principal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if t.Owner != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
	}
	if !spender.Valid() || spender == caller {
		return fmt.Errorf("spender: %w", domain.ErrInvalidArgument)
	}

	if err := e.journalAppend(ctx, caller, opApprove, approveArgs{TokenID: id, Spender: spender}); err != nil {
		return err
	}

	t.Approved = &spender
	return nil
}

const opRevokeApproval = "revoke_approval"

// RevokeApproval clears the approved spender. Owner-only.
func (e *Engine) RevokeApproval(ctx context.Context, caller domain.Principal, id domain.TokenID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if t.Owner != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
	}
	if t.Approved == nil {
		return fmt.Errorf("no approval on %s: %w", id, domain.ErrNotFound)
	}

	if err := e.journalAppend(ctx, caller, opRevokeApproval, tokenArgs{TokenID: id}); err != nil {
		return err
	}

	t.Approved = nil
	return nil
}

const opAddDelegate = "add_delegate"

type addDelegateArgs struct {
	Delegate    domain.Principal      `json:"delegate"`
	Rights      domain.DelegateRights `json:"rights"`
	ExpiryBlock domain.BlockHeight    `json:"expiry_block"`
}

// AddDelegate grants a principal a bounded subset of the caller's rights
// until the expiry block. Re-granting overwrites the prior grant.
func (e *Engine) AddDelegate(ctx context.Context, caller, delegate domain.Principal, rights domain.DelegateRights, expiry domain.BlockHeight) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Valid() || !delegate.Valid() || delegate == caller {
		return fmt.Errorf("delegate: %w", domain.ErrInvalidArgument)
	}
	if rights == 0 {
		return fmt.Errorf("empty rights: %w", domain.ErrInvalidArgument)
	}
	if expiry <= e.height {
		return fmt.Errorf("expiry block %d not in the future: %w", expiry, domain.ErrInvalidArgument)
	}

	if err := e.journalAppend(ctx, caller, opAddDelegate, addDelegateArgs{Delegate: delegate, Rights: rights, ExpiryBlock: expiry}); err != nil {
		return err
	}

	e.delegates[delegateKey{Owner: caller, Delegate: delegate}] = &domain.Delegate{
		Owner:       caller,
		Delegate:    delegate,
		Rights:      rights,
		ExpiryBlock: expiry,
	}
	return nil
}

const opRemoveDelegate = "remove_delegate"

type removeDelegateArgs struct {
	Delegate domain.Principal `json:"delegate"`
}

// RemoveDelegate revokes a grant before its expiry
func (e *Engine) RemoveDelegate(ctx context.Context, caller, delegate domain.Principal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := delegateKey{Owner: caller, Delegate: delegate}
	if _, ok := e.delegates[key]; !ok {
		return fmt.Errorf("delegate grant: %w", domain.ErrNotFound)
	}

	if err := e.journalAppend(ctx, caller, opRemoveDelegate, removeDelegateArgs{Delegate: delegate}); err != nil {
		return err
	}

	delete(e.delegates, key)
	return nil
}
