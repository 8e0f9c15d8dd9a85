package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectWidget       = "widget"
	ObjectTeam         = "team"
	ObjectPayments     = "payments"
	ObjectDonation     = "donation"
)

const (
	ActionUpdate = "update"
	ActionManage = "manage"
	ActionInvite = "invite"
	ActionView   = "view"
)

// Capability is an object/action pair, written "object:action".
type Capability struct {
	Object string
	Action string
}

func (c Capability) String() string { return c.Object + ":" + c.Action }

var (
	OrganizationUpdate = Capability{ObjectOrganization, ActionUpdate}
	WidgetManage       = Capability{ObjectWidget, ActionManage}
	TeamInvite         = Capability{ObjectTeam, ActionInvite}
	PaymentsManage     = Capability{ObjectPayments, ActionManage}
	DonationView       = Capability{ObjectDonation, ActionView}
)

// roleChain lists roles from most to least privileged. Each role inherits
// every capability of the roles after it.
var roleChain = []userdomain.Role{
	userdomain.RoleSuperAdmin,
	userdomain.RoleOwner,
	userdomain.RoleAdmin,
	userdomain.RoleEditor,
	userdomain.RoleMember,
	userdomain.RoleViewer,
}

type Service interface {
	// Authorize returns ErrForbidden unless role holds capability.
	Authorize(ctx context.Context, role userdomain.Role, capability Capability) error
	Can(role userdomain.Role, capability Capability) bool
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer builds an in-memory enforcer seeded with the role hierarchy and
// capability grants. Policies live in code, so no adapter is attached.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role userdomain.Role, capability Capability) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	allowed, err := s.enforcer.Enforce(subject(role), capability.Object, capability.Action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, role, capability)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) Can(role userdomain.Role, capability Capability) bool {
	if !role.Valid() {
		return false
	}
	allowed, err := s.enforcer.Enforce(subject(role), capability.Object, capability.Action)
	if err != nil {
		s.log.Warn("authorization enforce failed", zap.String("capability", capability.String()), zap.Error(err))
		return false
	}
	return allowed
}

func (s *ServiceImpl) auditDenied(ctx context.Context, role userdomain.Role, capability Capability) {
	s.log.Debug("authorization denied",
		zap.String("role", string(role)),
		zap.String("capability", capability.String()),
	)
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     "authorization.denied",
		TargetType: "authorization",
		TargetID:   capability.String(),
		Metadata: map[string]any{
			"role":   string(role),
			"object": capability.Object,
			"action": capability.Action,
		},
	})
	if err != nil {
		s.log.Warn("failed to record audit entry", zap.Error(err))
	}
}

func subject(role userdomain.Role) string {
	return "role:" + strings.ToLower(string(role))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Viewer permissions (read-only)
		{subject(userdomain.RoleViewer), ObjectDonation, ActionView},

		// Member permissions
		{subject(userdomain.RoleMember), ObjectPayments, ActionManage},

		// Editor permissions
		{subject(userdomain.RoleEditor), ObjectWidget, ActionManage},

		// Admin permissions
		{subject(userdomain.RoleAdmin), ObjectTeam, ActionInvite},

		// Owner permissions
		{subject(userdomain.RoleOwner), ObjectOrganization, ActionUpdate},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}

	for i := 0; i+1 < len(roleChain); i++ {
		if _, err := enforcer.AddGroupingPolicy(subject(roleChain[i]), subject(roleChain[i+1])); err != nil {
			return err
		}
	}
	return nil
}
