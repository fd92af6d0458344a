// Package authz maps caller roles to per-tenant capabilities using casbin.
package authz

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/rpggio/interview/internal/domain/capability"
)

// AnyTenant grants a policy across every tenant.
const AnyTenant = "*"

const modelText = `
[request_definition]
r = sub, dom, obj

[policy_definition]
p = sub, dom, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.dom == "*" || r.dom == p.dom) && r.obj == p.obj
`

// Authorizer resolves the capability set a role holds within a tenant.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New builds an Authorizer from role → capability grants valid in every tenant.
func New(roles map[string][]string) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	for role, caps := range roles {
		for _, raw := range caps {
			c, err := capability.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
			if _, err := enforcer.AddPolicy(normalizeRole(role), AnyTenant, string(c)); err != nil {
				return nil, fmt.Errorf("add policy: %w", err)
			}
		}
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// NewFromFiles builds an Authorizer from a casbin model file and CSV policy file.
func NewFromFiles(modelPath, policyPath string) (*Authorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Capabilities returns what role may do within tenant. An unknown role holds
// no capabilities.
func (a *Authorizer) Capabilities(role, tenant string) (capability.Set, error) {
	role = normalizeRole(role)
	var granted []capability.Capability
	for _, c := range capability.All() {
		ok, err := a.enforcer.Enforce(role, strings.TrimSpace(tenant), string(c))
		if err != nil {
			return capability.Set{}, fmt.Errorf("enforce: %w", err)
		}
		if ok {
			granted = append(granted, c)
		}
	}
	return capability.NewSet(granted...), nil
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
