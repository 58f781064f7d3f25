package resflow

import (
	"context"
)

const (
	PermissionOverrideUserLocks = "can_override_user_locks"

	RoleOrgUser     = "user_role_org_user"
	RoleOrgAdmin    = "user_role_org_admin"
	RoleOrgReviewer = "user_role_org_reviewer"
	RoleAppAdmin    = "user_role_app_admin"
	RoleDeveloper   = "user_role_developer"
)

// Actor identifies the caller of a lock or step operation.
type Actor struct {
	Identity    string `json:"identity"`
	CanOverride bool   `json:"can_override"`
}

type PermissionChecker interface {
	HasPermission(ctx context.Context, actor Actor, permission string) (bool, error)
}

type PermissionCheckerFunc func(ctx context.Context, actor Actor, permission string) (bool, error)

func (f PermissionCheckerFunc) HasPermission(ctx context.Context, actor Actor, permission string) (bool, error) {
	return f(ctx, actor, permission)
}

// RolePermission is the permission name granted to holders of role.
func RolePermission(role string) string {
	return "has_" + role
}

// StaticPermissions grants a fixed permission set per identity.
type StaticPermissions map[string][]string

func (p StaticPermissions) HasPermission(_ context.Context, actor Actor, permission string) (bool, error) {
	for _, granted := range p[actor.Identity] {
		if granted == permission {
			return true, nil
		}
	}

	return false, nil
}

// Grant adds role permissions for identity.
func (p StaticPermissions) Grant(identity string, roles ...string) {
	for _, role := range roles {
		p[identity] = append(p[identity], RolePermission(role))
	}
}

// HasActiveRole reports whether actor may act on step. A step without active
// roles is open to everyone.
func HasActiveRole(ctx context.Context, checker PermissionChecker, actor Actor, step *WorkflowStep) (bool, error) {
	if len(step.ActiveRoles) == 0 {
		return true, nil
	}
	if checker == nil {
		return false, nil
	}

	for _, role := range step.ActiveRoles {
		ok, err := checker.HasPermission(ctx, actor, RolePermission(role))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}
