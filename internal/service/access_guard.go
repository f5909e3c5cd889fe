package service

import (
	"context"
	"errors"
	"fmt"

	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/repository"
)

// Actor is the authenticated caller of an escrow operation.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// AccessGuard decides who may act on a contract. Every payee comparison goes
// through PayeeOf, which normalizes the payee profile to its owning account
// id, so a profile id is never compared against a user id.
type AccessGuard struct {
	profiles *repository.ProfileRepository
}

func NewAccessGuard(profiles *repository.ProfileRepository) *AccessGuard {
	return &AccessGuard{profiles: profiles}
}

// PayeeOf resolves the contract's payee profile to account and payout references.
func (g *AccessGuard) PayeeOf(ctx context.Context, c *models.Contract) (*repository.Payee, error) {
	p, err := g.profiles.GetPayee(ctx, c.TargetType, c.PayeeProfileID())
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: contract %d has no resolvable payee", ErrInvalidContract, c.ID)
		}
		return nil, err
	}
	return p, nil
}

func (g *AccessGuard) RequireBusinessOwner(c *models.Contract, actor Actor) error {
	if actor.UserID == 0 || c.BusinessOwnerID != actor.UserID {
		return ErrAccessDenied
	}
	return nil
}

func (g *AccessGuard) RequireOwnerOrAdmin(c *models.Contract, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	return g.RequireBusinessOwner(c, actor)
}

func (g *AccessGuard) RequireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return ErrAccessDenied
	}
	return nil
}

// RequirePayee returns the resolved payee so callers do not look it up twice.
func (g *AccessGuard) RequirePayee(ctx context.Context, c *models.Contract, actor Actor) (*repository.Payee, error) {
	p, err := g.PayeeOf(ctx, c)
	if err != nil {
		return nil, err
	}
	if actor.UserID == 0 || p.AccountID != actor.UserID {
		return nil, ErrAccessDenied
	}
	return p, nil
}

// RequireParty allows the business owner, the payee and admins to read a contract.
func (g *AccessGuard) RequireParty(ctx context.Context, c *models.Contract, actor Actor) error {
	if actor.IsAdmin() || (actor.UserID != 0 && c.BusinessOwnerID == actor.UserID) {
		return nil
	}
	_, err := g.RequirePayee(ctx, c, actor)
	return err
}
