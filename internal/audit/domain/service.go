package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes one auditable action.
type Entry struct {
	OrganizationID string
	ActorType      ActorType
	ActorID        string
	Action         string
	TargetType     string
	TargetID       string
	Metadata       map[string]any
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, orgID string, page pagination.Pagination) (ListResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListByOrganization(ctx context.Context, db *gorm.DB, orgID string, page pagination.Pagination) ([]AuditLog, int64, error)
}

var (
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidOrganization = errors.New("invalid_organization")
)
