package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// AccessBasis names the rule that authorized access to an item.
type AccessBasis string

const (
	BasisNone       AccessBasis = ""
	BasisRole       AccessBasis = "role"
	BasisJIT        AccessBasis = "jit"
	BasisBreakGlass AccessBasis = "breakglass"
)

// AccessDecision is the outcome of evaluating a principal against an item.
// Reason is set only when access is denied.
type AccessDecision struct {
	Basis  AccessBasis
	Reason string
}

func (d AccessDecision) Allowed() bool { return d.Basis != BasisNone }

const (
	denyNoAccess       = "no_access"
	denyCheckoutNeeded = "checkout_required"
)

// hasBaseline reports whether p's role alone grants access to it. Clients
// never have baseline access; contributors lack it on high-criticality items.
func hasBaseline(p models.Principal, it *models.Item) bool {
	switch p.Role {
	case models.RoleAdmin, models.RoleManager:
		return true
	case models.RoleContributor:
		return it.Criticality != models.CriticalityHigh
	}
	return false
}

func hasBreakGlass(ctx context.Context, r repomanager.Repositories, p models.Principal, itemID string) (bool, error) {
	_, err := r.BreakGlass().FindGranting(ctx, p.ID, itemID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// evaluateAccess checks role, JIT and break-glass in that order. It does not
// look at checkout state.
func evaluateAccess(ctx context.Context, r repomanager.Repositories, p models.Principal, it *models.Item, now time.Time) (AccessDecision, error) {
	if hasBaseline(p, it) {
		return AccessDecision{Basis: BasisRole}, nil
	}

	_, err := r.JIT().FindActive(ctx, p.ID, it.ID, now)
	switch {
	case err == nil:
		return AccessDecision{Basis: BasisJIT}, nil
	case !errors.Is(err, common.ErrNotFound):
		return AccessDecision{}, err
	}

	ok, err := hasBreakGlass(ctx, r, p, it.ID)
	if err != nil {
		return AccessDecision{}, err
	}
	if ok {
		return AccessDecision{Basis: BasisBreakGlass}, nil
	}
	return AccessDecision{Reason: denyNoAccess}, nil
}

// evaluateReveal adds the checkout gate to evaluateAccess: an item that
// requires checkout may be revealed only by the lock holder, unless the
// principal holds a break-glass grant.
func evaluateReveal(ctx context.Context, r repomanager.Repositories, p models.Principal, it *models.Item, now time.Time) (AccessDecision, error) {
	d, err := evaluateAccess(ctx, r, p, it, now)
	if err != nil || !d.Allowed() {
		return d, err
	}
	if !it.RequiresCheckout || d.Basis == BasisBreakGlass {
		return d, nil
	}

	lock, err := r.Locks().Get(ctx, it.ID)
	switch {
	case err == nil && lock.HolderID == p.ID:
		return d, nil
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return AccessDecision{}, err
	}

	ok, err := hasBreakGlass(ctx, r, p, it.ID)
	if err != nil {
		return AccessDecision{}, err
	}
	if ok {
		return AccessDecision{Basis: BasisBreakGlass}, nil
	}
	return AccessDecision{Reason: denyCheckoutNeeded}, nil
}
