package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hireloop/internal/database"
	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/repository"
	"hireloop/internal/testutil"

	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Runs against a real MySQL so row locks are exercised. Opt in with
// ESCROW_INTEGRATION=1 (needs Docker) or point ESCROW_MYSQL_DSN at a server.
func openMySQL(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("ESCROW_MYSQL_DSN")
	if dsn == "" {
		if os.Getenv("ESCROW_INTEGRATION") != "1" {
			t.Skip("set ESCROW_INTEGRATION=1 to run MySQL integration tests")
		}
		ctx := context.Background()
		ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
			tcmysql.WithDatabase("hireloop"),
			tcmysql.WithUsername("hireloop"),
			tcmysql.WithPassword("hireloop"),
		)
		if err != nil {
			t.Fatalf("start mysql: %v", err)
		}
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })
		dsn, err = ctr.ConnectionString(ctx, "parseTime=true", "clientFoundRows=true")
		if err != nil {
			t.Fatalf("mysql dsn: %v", err)
		}
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestTransitionSerializesConcurrentReleases_MySQL(t *testing.T) {
	db := openMySQL(t)
	fx := testutil.Seed(t, db)
	repo := repository.NewContractRepository(db)
	ctx := context.Background()

	c := fx.FreelancerContract(5000)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Transition(ctx, c.ID, func(c *models.Contract) error {
		c.PaymentStatus = domain.PaymentHeld
		c.PaymentIntentID = "pi_mysql"
		return nil
	}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	var transfers atomic.Int32
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Transition(ctx, c.ID, func(c *models.Contract) error {
				if c.PaymentStatus != domain.PaymentHeld {
					return repository.ErrPreconditionFailed
				}
				transfers.Add(1)
				time.Sleep(50 * time.Millisecond)
				c.PaymentStatus = domain.PaymentReleased
				c.TransferID = "tr_mysql"
				return nil
			})
		}(i)
	}
	wg.Wait()

	if got := transfers.Load(); got != 1 {
		t.Fatalf("transfer attempted %d times, want 1", got)
	}
	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrPreconditionFailed):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("ok=%d conflict=%d, want one of each", ok, conflict)
	}
}
