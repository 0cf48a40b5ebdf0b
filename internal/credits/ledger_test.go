package credits

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"persona-app/internal/domain/plans"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewLedger(db), mock
}

func TestDebitHappyPath(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "credits"=credits - $1 WHERE id = $2 AND credits >= $3`)).
		WithArgs(30, 7, 30).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ledger.Debit(context.Background(), 7, 30)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitInsufficientBalance(t *testing.T) {
	ledger, mock := newMockLedger(t)

	// The conditional update matches no rows, so the ledger re-reads the
	// balance to report required vs available.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "credits"=credits - $1 WHERE id = $2 AND credits >= $3`)).
		WithArgs(30, 7, 30).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "credits" FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(25))

	err := ledger.Debit(context.Background(), 7, 30)

	var insufficient *InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 30, insufficient.Required)
	assert.Equal(t, 25, insufficient.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	ledger, _ := newMockLedger(t)

	assert.Error(t, ledger.Debit(context.Background(), 7, 0))
	assert.Error(t, ledger.Debit(context.Background(), 7, -10))
}

func TestSetPlanOverwritesState(t *testing.T) {
	ledger, mock := newMockLedger(t)

	// Absolute values, not deltas: replaying the same event is a no-op in
	// effect, which is what makes at-least-once delivery safe.
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "credits"=$1,"plan"=$2,"subscription_id"=$3,"updated_at"=$4 WHERE id = $5`)).
			WithArgs(300, plans.PlanPro, "sub_123", sqlmock.AnyArg(), 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, ledger.SetPlan(context.Background(), 7, plans.PlanPro, 300, "sub_123"))
	require.NoError(t, ledger.SetPlan(context.Background(), 7, plans.PlanPro, 300, "sub_123"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPlanUnknownUser(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(`UPDATE "users" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := ledger.SetPlan(context.Background(), 99, plans.PlanUltra, 1000, "sub_999")
	assert.Error(t, err)
}

func TestRevokeToFreeLeavesCreditsAlone(t *testing.T) {
	ledger, mock := newMockLedger(t)

	// The SET list must not touch the credits column.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "plan"=$1,"subscription_id"=$2,"updated_at"=$3 WHERE id = $4`)).
		WithArgs(plans.PlanFree, nil, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.RevokeToFree(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasSufficient(t *testing.T) {
	tests := []struct {
		name    string
		balance int
		amount  int
		want    bool
	}{
		{"enough", 100, 30, true},
		{"exactly enough", 30, 30, true},
		{"short", 25, 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, mock := newMockLedger(t)
			mock.ExpectQuery(`SELECT "credits" FROM "users"`).
				WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(tt.balance))

			ok, err := ledger.HasSufficient(context.Background(), 7, tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
