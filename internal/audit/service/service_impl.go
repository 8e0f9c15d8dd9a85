package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/audit/masking"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	obscontext "github.com/smallbiznis/givebox/internal/observability/context"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	persist bool
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		persist: p.Cfg.Features().AuditLogging,
	}
}

// Record always emits an audit log line. The row is only written when audit
// logging is enabled for the environment.
func (s *Service) Record(ctx context.Context, entry domain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return domain.ErrInvalidAction
	}
	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}
	actorType, actorID := s.resolveActor(ctx, entry.ActorType, entry.ActorID)

	payload := map[string]any{}
	for key, value := range masking.MaskMetadata(entry.Metadata) {
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	logger.AuditEvent(logger.WithContext(ctx, s.log), action, targetType,
		zap.String("organization_id", entry.OrganizationID),
		zap.String("actor_type", actorType),
		zap.String("actor_id", actorID),
		zap.String("target_id", entry.TargetID),
	)

	if !s.persist {
		return nil
	}

	row := domain.AuditLog{
		ID:             s.genID.Generate(),
		OrganizationID: normalize(entry.OrganizationID),
		ActorType:      actorType,
		ActorID:        normalize(actorID),
		Action:         action,
		TargetType:     targetType,
		TargetID:       normalize(entry.TargetID),
		Metadata:       datatypes.JSONMap(payload),
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, orgID string, page pagination.Pagination) (domain.ListResponse, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}
	logs, total, err := s.repo.ListByOrganization(ctx, s.db, orgID, page)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	return domain.ListResponse{
		PageInfo:  pagination.BuildPageInfo(page, total),
		AuditLogs: logs,
	}, nil
}

func (s *Service) resolveActor(ctx context.Context, actorType domain.ActorType, actorID string) (string, string) {
	resolvedType := strings.TrimSpace(string(actorType))
	resolvedID := strings.TrimSpace(actorID)
	if resolvedType == "" {
		if ctxType, ctxID := obscontext.ActorFromContext(ctx); ctxType != "" {
			resolvedType = ctxType
			if resolvedID == "" {
				resolvedID = ctxID
			}
		}
	}
	if resolvedType == "" {
		resolvedType = string(domain.ActorTypeSystem)
	}
	return resolvedType, resolvedID
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
