package domain

import "time"

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
	RoleMember     Role = "member"
	RoleViewer     Role = "viewer"
)

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleSuperAdmin, RoleOwner, RoleAdmin, RoleEditor, RoleMember, RoleViewer}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User mirrors an identity-provider account. The ID is the provider's id.
type User struct {
	ID             string     `gorm:"primaryKey;type:text" json:"id"`
	OrganizationID *string    `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	Email          string     `gorm:"type:text;not null" json:"email"`
	FirstName      string     `gorm:"type:text" json:"first_name,omitempty"`
	LastName       string     `gorm:"type:text" json:"last_name,omitempty"`
	AvatarURL      string     `gorm:"type:text;column:avatar_url" json:"avatar_url,omitempty"`
	Role           Role       `gorm:"type:text;not null;default:member" json:"role"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u User) BelongsTo(orgID string) bool {
	return u.OrganizationID != nil && *u.OrganizationID != "" && *u.OrganizationID == orgID
}

func (u User) HasOrganization() bool {
	return u.OrganizationID != nil && *u.OrganizationID != ""
}

// ProfileUpdate is the patch applied from identity-provider events.
type ProfileUpdate struct {
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}
