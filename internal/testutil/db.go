// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"hireloop/internal/database"
	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns a migrated in-memory SQLite database private to the test.
// A single connection serializes writers the way row locks do on MySQL.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a business owner and one payee of each kind.
type Fixture struct {
	Owner          models.User
	Freelancer     models.User
	Provider       models.User
	Admin          models.User
	Stranger       models.User
	FreelancerProf models.FreelancerProfile
	ProviderProf   models.ServiceProviderProfile
}

// Seed creates the fixture parties. The freelancer is onboarded for payouts;
// the service provider is not.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()
	f := &Fixture{
		Owner:      models.User{Email: "owner@example.com", Role: domain.RoleBusiness},
		Freelancer: models.User{Email: "free@example.com", Role: domain.RoleFreelancer},
		Provider:   models.User{Email: "provider@example.com", Role: domain.RoleServiceProvider},
		Admin:      models.User{Email: "admin@example.com", Role: domain.RoleAdmin},
		Stranger:   models.User{Email: "stranger@example.com", Role: domain.RoleBusiness},
	}
	users := repository.NewUserRepository(db)
	for _, u := range []*models.User{&f.Owner, &f.Freelancer, &f.Provider, &f.Admin, &f.Stranger} {
		if err := users.Create(u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	profiles := repository.NewProfileRepository(db)
	f.FreelancerProf = models.FreelancerProfile{UserID: f.Freelancer.ID, DisplayName: "Ada", PayoutAccountID: "acct_freelancer"}
	if err := profiles.CreateFreelancer(&f.FreelancerProf); err != nil {
		t.Fatalf("seed freelancer profile: %v", err)
	}
	f.ProviderProf = models.ServiceProviderProfile{UserID: f.Provider.ID, CompanyName: "Acme Plumbing"}
	if err := profiles.CreateServiceProvider(&f.ProviderProf); err != nil {
		t.Fatalf("seed provider profile: %v", err)
	}
	return f
}

// FreelancerContract builds an unsaved contract paying the fixture freelancer.
func (f *Fixture) FreelancerContract(amountCents int64) *models.Contract {
	id := f.FreelancerProf.ID
	return &models.Contract{
		BusinessOwnerID: f.Owner.ID,
		TargetType:      domain.TargetFreelancer,
		FreelancerID:    &id,
		Title:           "Landing page",
		AmountCents:     amountCents,
		Currency:        "USD",
	}
}

func (f *Fixture) ProviderContract(amountCents int64) *models.Contract {
	id := f.ProviderProf.ID
	return &models.Contract{
		BusinessOwnerID:   f.Owner.ID,
		TargetType:        domain.TargetServiceProvider,
		ServiceProviderID: &id,
		Title:             "Office repairs",
		AmountCents:       amountCents,
		Currency:          "USD",
	}
}
