package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/widget/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultWidgetName = "Donation Widget"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
	Audit auditdomain.Service `optional:"true"`
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	audit auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("widget.service"),
		clock: p.Clock,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

// GetOrCreateForOrganization is safe under concurrent first requests: the
// insert is skipped on conflict and every caller reads back the same row.
func (s *service) GetOrCreateForOrganization(ctx context.Context, orgID, name string) (*domain.Details, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, domain.ErrInvalidOrg
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultWidgetName
	}

	var details *domain.Details
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		candidate := s.newWidget(orgID, name, "", nil)
		if err := repo.InsertIfAbsent(ctx, candidate); err != nil {
			return err
		}
		widget, err := repo.GetByOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		if widget.ID == candidate.ID {
			theme := domain.DefaultTheme(widget.ID, widget.CreatedAt)
			if err := repo.UpsertTheme(ctx, &theme); err != nil {
				return err
			}
		}
		details, err = s.loadDetails(ctx, repo, widget, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (s *service) Create(ctx context.Context, orgID string, req domain.CreateRequest) (*domain.Widget, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, domain.ErrInvalidOrg
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	widget := s.newWidget(orgID, name, strings.TrimSpace(req.Description), req.Config)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, widget); err != nil {
			return err
		}
		theme := domain.DefaultTheme(widget.ID, widget.CreatedAt)
		return repo.UpsertTheme(ctx, &theme)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, orgID, "widget.create", widget.ID, map[string]any{"name": name})
	return widget, nil
}

func (s *service) List(ctx context.Context, orgID string) ([]domain.Widget, error) {
	widgets, err := s.repo.List(ctx, strings.TrimSpace(orgID))
	if err != nil {
		return nil, err
	}
	if widgets == nil {
		widgets = []domain.Widget{}
	}
	return widgets, nil
}

func (s *service) Get(ctx context.Context, id string) (*domain.Details, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	widget, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.loadDetails(ctx, s.repo, widget, false)
}

// GetPublic resolves an active widget by slug with its active causes only.
func (s *service) GetPublic(ctx context.Context, widgetSlug string) (*domain.Details, error) {
	widget, err := s.repo.GetBySlug(ctx, strings.TrimSpace(widgetSlug))
	if err != nil {
		return nil, err
	}
	if !widget.IsActive {
		return nil, domain.ErrWidgetUnavailable
	}
	return s.loadDetails(ctx, s.repo, widget, true)
}

func (s *service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Widget, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	fields, err := widgetFields(req.Name, req.Description, req.Config)
	if err != nil {
		return nil, err
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		return nil, domain.ErrEmptyUpdate
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	widget, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, widget.OrganizationID, "widget.update", id, nil)
	return widget, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	widget, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, widget.OrganizationID, "widget.delete", id, nil)
	return nil
}

// SaveCustomization writes widget fields, the theme and the cause list in one
// transaction and activates the widget. Causes missing from the request are
// deactivated rather than deleted so donations keep their attribution.
func (s *service) SaveCustomization(ctx context.Context, id string, req domain.CustomizationRequest) (*domain.Details, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	fields, err := widgetFields(req.Name, req.Description, req.Config)
	if err != nil {
		return nil, err
	}
	for _, input := range req.Causes {
		if err := validateCause(input.Name, input.GoalAmount, input.SuggestedAmounts); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	fields["is_active"] = true
	fields["updated_at"] = now

	var details *domain.Details
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		widget, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, id, fields); err != nil {
			return err
		}

		theme := themeFrom(id, req.Theme, now)
		if err := repo.UpsertTheme(ctx, &theme); err != nil {
			return err
		}

		keep := make([]string, 0, len(req.Causes))
		for _, input := range req.Causes {
			causeID, err := s.saveCause(ctx, repo, id, input, now)
			if err != nil {
				return err
			}
			keep = append(keep, causeID)
		}
		if err := repo.DeactivateCausesExcept(ctx, id, keep); err != nil {
			return err
		}

		widget, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		details, err = s.loadDetails(ctx, repo, widget, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, details.Widget.OrganizationID, "widget.customize", id, map[string]any{"causes": len(req.Causes)})
	return details, nil
}

func (s *service) saveCause(ctx context.Context, repo domain.Repository, widgetID string, input domain.CauseInput, now time.Time) (string, error) {
	if input.ID == "" {
		cause := newCause(widgetID, input, now)
		if err := repo.CreateCause(ctx, cause); err != nil {
			return "", err
		}
		return cause.ID, nil
	}

	existing, err := repo.GetCause(ctx, input.ID)
	if err != nil {
		return "", err
	}
	if existing.WidgetID != widgetID {
		return "", domain.ErrForeignCause
	}
	err = repo.UpdateCause(ctx, input.ID, map[string]any{
		"name":              strings.TrimSpace(input.Name),
		"description":       strings.TrimSpace(input.Description),
		"image_url":         strings.TrimSpace(input.ImageURL),
		"goal_amount":       input.GoalAmount,
		"suggested_amounts": suggested(input.SuggestedAmounts),
		"is_active":         true,
		"updated_at":        now,
	})
	return input.ID, err
}

func (s *service) ListCauses(ctx context.Context, widgetID string) ([]domain.Cause, error) {
	if !validID(widgetID) {
		return nil, domain.ErrNotFound
	}
	if _, err := s.repo.GetByID(ctx, widgetID); err != nil {
		return nil, err
	}
	causes, err := s.repo.ListCauses(ctx, widgetID, false)
	if err != nil {
		return nil, err
	}
	if causes == nil {
		causes = []domain.Cause{}
	}
	return causes, nil
}

// GetCause returns the cause together with the widget that owns it.
func (s *service) GetCause(ctx context.Context, id string) (*domain.Cause, *domain.Widget, error) {
	if !validID(id) {
		return nil, nil, domain.ErrCauseNotFound
	}
	cause, err := s.repo.GetCause(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	widget, err := s.repo.GetByID(ctx, cause.WidgetID)
	if err != nil {
		return nil, nil, err
	}
	return cause, widget, nil
}

func (s *service) CreateCause(ctx context.Context, widgetID string, req domain.CauseInput) (*domain.Cause, error) {
	if !validID(widgetID) {
		return nil, domain.ErrNotFound
	}
	if err := validateCause(req.Name, req.GoalAmount, req.SuggestedAmounts); err != nil {
		return nil, err
	}
	widget, err := s.repo.GetByID(ctx, widgetID)
	if err != nil {
		return nil, err
	}
	cause := newCause(widgetID, req, s.clock.Now())
	if err := s.repo.CreateCause(ctx, cause); err != nil {
		return nil, err
	}
	s.record(ctx, widget.OrganizationID, "cause.create", cause.ID, map[string]any{"widget_id": widgetID})
	return cause, nil
}

func (s *service) UpdateCause(ctx context.Context, id string, req domain.CauseUpdate) (*domain.Cause, error) {
	if !validID(id) {
		return nil, domain.ErrCauseNotFound
	}
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*req.ImageURL)
	}
	if req.GoalAmount != nil {
		if *req.GoalAmount <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		fields["goal_amount"] = *req.GoalAmount
	}
	if req.SuggestedAmounts != nil {
		if err := validateAmounts(req.SuggestedAmounts); err != nil {
			return nil, err
		}
		fields["suggested_amounts"] = suggested(req.SuggestedAmounts)
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		return nil, domain.ErrEmptyUpdate
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.repo.UpdateCause(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.GetCause(ctx, id)
}

func (s *service) DeleteCause(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrCauseNotFound
	}
	return s.repo.DeleteCause(ctx, id)
}

func (s *service) loadDetails(ctx context.Context, repo domain.Repository, widget *domain.Widget, activeOnly bool) (*domain.Details, error) {
	theme, err := repo.GetTheme(ctx, widget.ID)
	if err != nil {
		return nil, err
	}
	if theme == nil {
		fallback := domain.DefaultTheme(widget.ID, widget.CreatedAt)
		theme = &fallback
	}
	causes, err := repo.ListCauses(ctx, widget.ID, activeOnly)
	if err != nil {
		return nil, err
	}
	if causes == nil {
		causes = []domain.Cause{}
	}
	return &domain.Details{Widget: *widget, Theme: *theme, Causes: causes}, nil
}

func (s *service) newWidget(orgID, name, description string, config map[string]any) *domain.Widget {
	now := s.clock.Now()
	id := uuid.NewString()
	if config == nil {
		config = map[string]any{}
	}
	return &domain.Widget{
		ID:             id,
		OrganizationID: orgID,
		Name:           name,
		Slug:           makeSlug(name, id),
		Description:    description,
		Config:         datatypes.JSONMap(config),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *service) record(ctx context.Context, orgID, action, targetID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, auditdomain.Entry{
		OrganizationID: orgID,
		Action:         action,
		TargetType:     strings.SplitN(action, ".", 2)[0],
		TargetID:       targetID,
		Metadata:       metadata,
	})
	if err != nil {
		s.log.Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
	}
}

func newCause(widgetID string, input domain.CauseInput, now time.Time) *domain.Cause {
	return &domain.Cause{
		ID:               uuid.NewString(),
		WidgetID:         widgetID,
		Name:             strings.TrimSpace(input.Name),
		Description:      strings.TrimSpace(input.Description),
		ImageURL:         strings.TrimSpace(input.ImageURL),
		GoalAmount:       input.GoalAmount,
		SuggestedAmounts: suggested(input.SuggestedAmounts),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func themeFrom(widgetID string, in domain.ThemeInput, now time.Time) domain.Theme {
	theme := domain.DefaultTheme(widgetID, now)
	override := func(dst *string, value string) {
		if v := strings.TrimSpace(value); v != "" {
			*dst = v
		}
	}
	override(&theme.PrimaryColor, in.PrimaryColor)
	override(&theme.SecondaryColor, in.SecondaryColor)
	override(&theme.BackgroundColor, in.BackgroundColor)
	override(&theme.TextColor, in.TextColor)
	override(&theme.FontFamily, in.FontFamily)
	override(&theme.BorderColor, in.BorderColor)
	if in.FontSize != nil && *in.FontSize > 0 {
		theme.FontSize = *in.FontSize
	}
	if in.BorderRadius != nil && *in.BorderRadius >= 0 {
		theme.BorderRadius = *in.BorderRadius
	}
	if in.BorderWidth != nil && *in.BorderWidth >= 0 {
		theme.BorderWidth = *in.BorderWidth
	}
	theme.CustomCSS = in.CustomCSS
	return theme
}

func widgetFields(name, description *string, config map[string]any) (map[string]any, error) {
	fields := map[string]any{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = trimmed
	}
	if description != nil {
		fields["description"] = strings.TrimSpace(*description)
	}
	if config != nil {
		fields["config"] = datatypes.JSONMap(config)
	}
	return fields, nil
}

func validateCause(name string, goal *int64, amounts []int64) error {
	if strings.TrimSpace(name) == "" {
		return domain.ErrInvalidName
	}
	if goal != nil && *goal <= 0 {
		return domain.ErrInvalidAmount
	}
	return validateAmounts(amounts)
}

func validateAmounts(amounts []int64) error {
	for _, amount := range amounts {
		if amount <= 0 {
			return domain.ErrInvalidAmount
		}
	}
	return nil
}

func suggested(amounts []int64) datatypes.JSONSlice[int64] {
	if amounts == nil {
		return datatypes.JSONSlice[int64]{}
	}
	return datatypes.JSONSlice[int64](amounts)
}

func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

func makeSlug(name, id string) string {
	base := slug.Make(name)
	if base == "" {
		base = "widget"
	}
	return base + "-" + strings.ReplaceAll(id, "-", "")[:8]
}
