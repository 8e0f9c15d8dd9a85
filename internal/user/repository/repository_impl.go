package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/givebox/internal/user/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return &user, nil
}

func (r *repository) InsertIfAbsent(ctx context.Context, user *domain.User) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO users (id, organization_id, email, first_name, last_name, avatar_url, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID,
		user.OrganizationID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if result.Error != nil {
		return false, db.Classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Insert(ctx context.Context, user *domain.User) error {
	return db.Classify(r.db.WithContext(ctx).Create(user).Error)
}

func (r *repository) AssignOwner(ctx context.Context, userID, email, orgID string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO users (id, organization_id, email, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, 'owner', TRUE, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   organization_id = excluded.organization_id,
		   role = CASE WHEN users.role = 'super_admin' THEN users.role ELSE 'owner' END,
		   updated_at = excluded.updated_at
		 WHERE users.organization_id IS NULL`,
		userID,
		orgID,
		email,
		now,
		now,
	)
	if result.Error != nil {
		return false, db.Classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate, now time.Time) (int64, error) {
	fields := map[string]any{"updated_at": now}
	if email := strings.TrimSpace(update.Email); email != "" {
		fields["email"] = email
	}
	if update.FirstName != "" {
		fields["first_name"] = update.FirstName
	}
	if update.LastName != "" {
		fields["last_name"] = update.LastName
	}
	if update.AvatarURL != "" {
		fields["avatar_url"] = update.AvatarURL
	}

	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return 0, db.Classify(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) Delete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM users WHERE id = ?`, id)
	if result.Error != nil {
		return 0, db.Classify(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) ListByOrganization(ctx context.Context, orgID string) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	return users, nil
}

func (r *repository) FindPendingInvite(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Where("lower(email) = lower(?) AND id LIKE ? AND is_active = ?", strings.TrimSpace(email), domain.InvitePrefix+"%", false).
		Order("created_at ASC").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return &user, nil
}
