package domain

import (
	"context"
	"errors"

	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	"gorm.io/gorm"
)

// InvitePrefix marks placeholder rows created by team invites until the
// invitee signs up.
const InvitePrefix = "invite_"

type Service interface {
	WithTx(tx *gorm.DB) Service
	Me(ctx context.Context, userID string) (*Profile, error)
	GetByID(ctx context.Context, userID string) (*User, error)
	ListTeam(ctx context.Context, orgID string) ([]User, error)
	Invite(ctx context.Context, orgID string, req InviteRequest) (*User, error)

	SyncCreated(ctx context.Context, identity Identity) (bool, error)
	SyncUpdated(ctx context.Context, identity Identity) (bool, error)
	SyncDeleted(ctx context.Context, userID string) (bool, error)
}

// Identity is the identity-provider view of a user.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

type Profile struct {
	User         User               `json:"user"`
	Organization *orgdomain.Summary `json:"organization"`
}

type InviteRequest struct {
	InvitedBy string
	Email     string
	Role      Role
}

var (
	ErrNotFound      = errors.New("user_not_found")
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrAlreadyMember = errors.New("already_member")
)
