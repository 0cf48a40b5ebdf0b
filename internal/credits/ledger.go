package credits

import (
	"context"
	"errors"
	"fmt"

	"persona-app/internal/domain/plans"
	"persona-app/internal/domain/users"

	"gorm.io/gorm"
)

// ErrUserNotFound is returned when a ledger mutation targets a user id with
// no row behind it. Webhook processing treats it as a skip, not a retry.
var ErrUserNotFound = errors.New("user not found")

// InsufficientCreditsError reports how short the balance is. The caller maps
// it to a payment-required response with both numbers.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Available)
}

// Ledger is the single source of truth for a user's spendable balance and
// plan. All plan/credit mutations go through it; nothing else writes those
// columns.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Balance(ctx context.Context, userID uint) (int, error) {
	var user users.User
	if err := l.db.WithContext(ctx).Select("credits").First(&user, userID).Error; err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	return user.Credits, nil
}

func (l *Ledger) HasSufficient(ctx context.Context, userID uint, amount int) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Debit decrements the balance by amount. The decrement is a single
// conditional UPDATE so two concurrent requests cannot both spend the same
// credits past zero; zero rows affected means the balance was short at the
// moment of the update.
func (l *Ledger) Debit(ctx context.Context, userID uint, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	res := l.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ? AND credits >= ?", userID, amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("debit credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		available, err := l.Balance(ctx, userID)
		if err != nil {
			return err
		}
		return &InsufficientCreditsError{Required: amount, Available: available}
	}
	return nil
}

// SetPlan overwrites plan, balance and subscription id in one update. The
// balance is set to creditGrant, not added to: re-applying the same renewal
// event lands on the same state, which is what makes at-least-once webhook
// delivery safe.
func (l *Ledger) SetPlan(ctx context.Context, userID uint, plan string, creditGrant int, subscriptionID string) error {
	res := l.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"plan":            plans.Normalize(plan),
			"credits":         creditGrant,
			"subscription_id": subscriptionID,
		})
	if res.Error != nil {
		return fmt.Errorf("set plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set plan for user %d: %w", userID, ErrUserNotFound)
	}
	return nil
}

// UpdatePlan changes the plan label alone, leaving credits and the
// subscription reference as they are. Used for mid-period tier changes that
// do not re-grant an allotment.
func (l *Ledger) UpdatePlan(ctx context.Context, userID uint, plan string) error {
	res := l.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", userID).
		Update("plan", plans.Normalize(plan))
	if res.Error != nil {
		return fmt.Errorf("update plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update plan for user %d: %w", userID, ErrUserNotFound)
	}
	return nil
}

// RevokeToFree drops the user back to FREE and clears the subscription
// reference. Credits already granted this period are left alone.
func (l *Ledger) RevokeToFree(ctx context.Context, userID uint) error {
	res := l.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"plan":            plans.PlanFree,
			"subscription_id": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("revoke to free: %w", res.Error)
	}
	return nil
}
