package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/clock"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	"github.com/smallbiznis/givebox/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	OrgRepo orgdomain.Repository
	Audit   auditdomain.Service `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	orgRepo orgdomain.Repository
	audit   auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("user.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		orgRepo: p.OrgRepo,
		audit:   p.Audit,
	}
}

func (s *service) WithTx(tx *gorm.DB) domain.Service {
	cp := *s
	cp.db = tx
	cp.repo = s.repo.WithTx(tx)
	cp.orgRepo = s.orgRepo.WithTx(tx)
	return &cp
}

func (s *service) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.GetByID(ctx, userID)
}

func (s *service) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &domain.Profile{User: *user}
	if !user.HasOrganization() {
		return profile, nil
	}

	org, err := s.orgRepo.GetByID(ctx, *user.OrganizationID)
	if errors.Is(err, orgdomain.ErrNotFound) {
		return profile, nil
	}
	if err != nil {
		return nil, err
	}
	summary := org.Summary()
	profile.Organization = &summary
	return profile, nil
}

func (s *service) ListTeam(ctx context.Context, orgID string) ([]domain.User, error) {
	users, err := s.repo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *service) Invite(ctx context.Context, orgID string, req domain.InviteRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	switch req.Role {
	case domain.RoleAdmin, domain.RoleEditor, domain.RoleMember, domain.RoleViewer:
	default:
		return nil, domain.ErrInvalidRole
	}

	members, err := s.repo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		if strings.EqualFold(member.Email, email) {
			return nil, domain.ErrAlreadyMember
		}
	}

	now := s.clock.Now()
	invited := &domain.User{
		ID:             domain.InvitePrefix + uuid.NewString(),
		OrganizationID: &orgID,
		Email:          email,
		Role:           req.Role,
		IsActive:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, invited); err != nil {
		return nil, err
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, auditdomain.Entry{
			OrganizationID: orgID,
			ActorType:      auditdomain.ActorTypeUser,
			ActorID:        req.InvitedBy,
			Action:         "team.invite",
			TargetType:     "user",
			TargetID:       invited.ID,
			Metadata:       map[string]any{"email": email, "role": string(req.Role)},
		})
		if err != nil {
			s.log.Warn("failed to record audit entry", zap.String("action", "team.invite"), zap.Error(err))
		}
	}
	return invited, nil
}

// SyncCreated inserts the local user for a new identity. A pending team
// invite for the same email hands over its organization and role. Replays
// of the same identity are reported as not inserted.
func (s *service) SyncCreated(ctx context.Context, identity domain.Identity) (bool, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return false, domain.ErrInvalidUser
	}
	now := s.clock.Now()
	user := &domain.User{
		ID:        strings.TrimSpace(identity.ID),
		Email:     strings.TrimSpace(identity.Email),
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		AvatarURL: identity.AvatarURL,
		Role:      domain.RoleMember,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if user.Email != "" {
			invite, err := repo.FindPendingInvite(ctx, user.Email)
			if err != nil {
				return err
			}
			if invite != nil {
				user.OrganizationID = invite.OrganizationID
				user.Role = invite.Role
				if _, err := repo.Delete(ctx, invite.ID); err != nil {
					return err
				}
			}
		}

		ok, err := repo.InsertIfAbsent(ctx, user)
		if err != nil {
			return err
		}
		inserted = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		s.log.Info("user already exists, skipping insert", zap.String("user_id", user.ID))
	}
	return inserted, nil
}

func (s *service) SyncUpdated(ctx context.Context, identity domain.Identity) (bool, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return false, domain.ErrInvalidUser
	}
	rows, err := s.repo.UpdateProfile(ctx, identity.ID, domain.ProfileUpdate{
		Email:     identity.Email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		AvatarURL: identity.AvatarURL,
	}, s.clock.Now())
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *service) SyncDeleted(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, domain.ErrInvalidUser
	}
	rows, err := s.repo.Delete(ctx, userID)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var validate = validator.New()

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
