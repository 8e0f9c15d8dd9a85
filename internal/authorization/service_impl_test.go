package authorization

import (
	"context"
	"testing"

	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestRoleHierarchy(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		capability Capability
		lowest     userdomain.Role
	}{
		{DonationView, userdomain.RoleViewer},
		{PaymentsManage, userdomain.RoleMember},
		{WidgetManage, userdomain.RoleEditor},
		{TeamInvite, userdomain.RoleAdmin},
		{OrganizationUpdate, userdomain.RoleOwner},
	}

	for _, tc := range cases {
		granted := true
		for _, role := range roleChain {
			assert.Equal(t, granted, svc.Can(role, tc.capability), "%s %s", role, tc.capability)
			if role == tc.lowest {
				granted = false
			}
		}
	}
}

func TestAuthorizeErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, userdomain.RoleAdmin, TeamInvite))
	assert.ErrorIs(t, svc.Authorize(ctx, userdomain.RoleEditor, TeamInvite), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, userdomain.Role("guest"), DonationView), ErrInvalidRole)
	assert.False(t, svc.Can(userdomain.Role(""), DonationView))
}
