package engine

import (
	"context"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

const opClaimFees = "claim_fees"

type claimFeesArgs struct{}

// ClaimFees withdraws the treasury's accrued action fees and marketplace
// cuts into the admin's balance. Admin-only.
func (e *Engine) ClaimFees(ctx context.Context, caller domain.Principal) (domain.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return 0, err
	}
	if e.feesAccrued == 0 {
		return 0, fmt.Errorf("no fees accrued: %w", domain.ErrNotFound)
	}

	if err := e.journalAppend(ctx, caller, opClaimFees, claimFeesArgs{}); err != nil {
		return 0, err
	}

	claimed := e.feesAccrued
	e.feesAccrued = 0
	e.accounts.credit(caller, claimed)

	e.emit(domain.MarketEvent{
		Type:        domain.EventFeesClaimed,
		BlockHeight: e.height,
		Actor:       caller,
		Amount:      claimed,
	})
	return claimed, nil
}

// FeesAccrued returns the treasury balance awaiting claim
func (e *Engine) FeesAccrued() domain.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feesAccrued
}
