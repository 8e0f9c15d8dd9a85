package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id string) (*User, error)
	// InsertIfAbsent reports false when a row with the same id already exists.
	InsertIfAbsent(ctx context.Context, user *User) (bool, error)
	// AssignOwner makes userID the owner of orgID unless the user already
	// belongs to an organization. It reports whether the membership changed.
	AssignOwner(ctx context.Context, userID, email, orgID string, now time.Time) (bool, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate, now time.Time) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	ListByOrganization(ctx context.Context, orgID string) ([]User, error)
	FindPendingInvite(ctx context.Context, email string) (*User, error)
	Insert(ctx context.Context, user *User) error
}
