package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser    ActorType = "user"
	ActorTypeWebhook ActorType = "webhook"
	ActorTypeSystem  ActorType = "system"
)

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrganizationID *string           `gorm:"column:organization_id;type:uuid" json:"organization_id,omitempty"`
	ActorType      string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID        *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action         string            `gorm:"type:text;not null" json:"action"`
	TargetType     string            `gorm:"type:text;not null" json:"target_type"`
	TargetID       *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
