package repository

import (
	"context"
	"errors"
	"fmt"

	"hireloop/internal/domain"
	"hireloop/internal/models"

	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("payee profile not found")

// Payee is a contract's payee profile normalized to its owning account.
type Payee struct {
	TargetType      string
	ProfileID       uint
	AccountID       uint
	PayoutAccountID string
}

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) CreateFreelancer(p *models.FreelancerProfile) error {
	return r.db.Create(p).Error
}

func (r *ProfileRepository) CreateServiceProvider(p *models.ServiceProviderProfile) error {
	return r.db.Create(p).Error
}

// GetPayee loads the profile a contract targets and returns its account id
// and payout reference.
func (r *ProfileRepository) GetPayee(ctx context.Context, targetType string, profileID uint) (*Payee, error) {
	db := r.db.WithContext(ctx)
	var err error
	p := &Payee{TargetType: targetType, ProfileID: profileID}
	switch targetType {
	case domain.TargetFreelancer:
		var f models.FreelancerProfile
		if err = db.First(&f, profileID).Error; err == nil {
			p.AccountID, p.PayoutAccountID = f.UserID, f.PayoutAccountID
		}
	case domain.TargetServiceProvider:
		var s models.ServiceProviderProfile
		if err = db.First(&s, profileID).Error; err == nil {
			p.AccountID, p.PayoutAccountID = s.UserID, s.PayoutAccountID
		}
	default:
		return nil, fmt.Errorf("%w: target type %q", ErrProfileNotFound, targetType)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, storageErr(err)
	}
	return p, nil
}

// ProfileIDsForUser returns the freelancer and service provider profile ids an account owns.
func (r *ProfileRepository) ProfileIDsForUser(ctx context.Context, userID uint) (freelancerIDs, providerIDs []uint, err error) {
	db := r.db.WithContext(ctx)
	if err = db.Model(&models.FreelancerProfile{}).Where("user_id = ?", userID).Pluck("id", &freelancerIDs).Error; err != nil {
		return nil, nil, storageErr(err)
	}
	if err = db.Model(&models.ServiceProviderProfile{}).Where("user_id = ?", userID).Pluck("id", &providerIDs).Error; err != nil {
		return nil, nil, storageErr(err)
	}
	return freelancerIDs, providerIDs, nil
}

// SetPayoutAccount records the connected account once payout onboarding finishes.
func (r *ProfileRepository) SetPayoutAccount(ctx context.Context, targetType string, profileID uint, accountRef string) error {
	var model interface{}
	switch targetType {
	case domain.TargetFreelancer:
		model = &models.FreelancerProfile{}
	case domain.TargetServiceProvider:
		model = &models.ServiceProviderProfile{}
	default:
		return fmt.Errorf("%w: target type %q", ErrProfileNotFound, targetType)
	}
	res := r.db.WithContext(ctx).Model(model).Where("id = ?", profileID).Update("payout_account_id", accountRef)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}
