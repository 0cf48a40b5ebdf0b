package users

import (
	"time"

	"persona-app/internal/domain/plans"
)

type User struct {
	ID           uint    `gorm:"primaryKey"`
	Name         string
	Email        string  `gorm:"not null;uniqueIndex:idx_users_email"`
	Password     *string `gorm:""`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub"`
	Role         string

	// Plan and Credits are mutated only through the credit ledger.
	// Credits never goes below zero; the ledger enforces this with a
	// conditional decrement, not a read-then-write.
	Plan    string `gorm:"type:varchar(10);not null;default:'FREE'"`
	Credits int    `gorm:"not null;default:0"`

	SubscriptionID *string `gorm:"column:subscription_id;uniqueIndex:idx_users_subscription_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLocal builds a freshly registered user on the FREE plan with its
// starting credit allotment.
func NewLocal(name, email string, hashedPassword *string) User {
	return User{
		Name:         name,
		Email:        email,
		Password:     hashedPassword,
		AuthProvider: "local",
		Role:         "user",
		Plan:         plans.PlanFree,
		Credits:      plans.CreditGrant(plans.PlanFree),
	}
}
