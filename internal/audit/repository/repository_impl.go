package repository

import (
	"context"

	"github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, organization_id, actor_type, actor_id, action, target_type, target_id,
			metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrganizationID,
		entry.ActorType,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Metadata,
		entry.CreatedAt,
	).Error
	return db.Classify(err)
}

func (r *repo) ListByOrganization(ctx context.Context, conn *gorm.DB, orgID string, page pagination.Pagination) ([]domain.AuditLog, int64, error) {
	stmt := conn.WithContext(ctx).Model(&domain.AuditLog{}).Where("organization_id = ?", orgID)

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, db.Classify(err)
	}

	page = page.Normalize()
	var logs []domain.AuditLog
	err := stmt.Order("created_at desc, id desc").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	return logs, total, nil
}
