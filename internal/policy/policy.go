// Package policy decides which identities may perform administrative actions.
package policy

import (
	"errors"
	"strings"

	"github.com/featureboard/backend/internal/config"
)

type Action string

const (
	ActionUpdateStatus  Action = "update-status"
	ActionDeleteFeature Action = "delete-feature"
	ActionDeleteUser    Action = "delete-user"
	ActionListAdminData Action = "list-admin-data"
)

const roleAdmin = "ADMIN"

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("admin privileges required")
)

// Identity is the authenticated caller as carried by the session token.
type Identity struct {
	ID    string
	Email string
	Role  string
}

// Resource optionally names the object an action targets.
type Resource struct {
	Kind string
	ID   string
}

type Policy interface {
	Can(identity *Identity, action Action, resource Resource) bool
}

// RolePolicy grants administrative actions to identities with the ADMIN role.
type RolePolicy struct{}

func (RolePolicy) Can(identity *Identity, _ Action, _ Resource) bool {
	return identity != nil && identity.Role == roleAdmin
}

// EmailDomainPolicy grants administrative actions to addresses in one domain.
type EmailDomainPolicy struct {
	Domain string
}

func (p EmailDomainPolicy) Can(identity *Identity, _ Action, _ Resource) bool {
	if identity == nil || p.Domain == "" {
		return false
	}
	domain := strings.ToLower(p.Domain)
	if !strings.HasPrefix(domain, "@") {
		domain = "@" + domain
	}
	return strings.HasSuffix(strings.ToLower(identity.Email), domain)
}

type AllowListPolicy struct {
	emails map[string]struct{}
}

func NewAllowListPolicy(emails []string) AllowListPolicy {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			set[e] = struct{}{}
		}
	}
	return AllowListPolicy{emails: set}
}

func (p AllowListPolicy) Can(identity *Identity, _ Action, _ Resource) bool {
	if identity == nil {
		return false
	}
	_, ok := p.emails[strings.ToLower(identity.Email)]
	return ok
}

// AnyPolicy grants when at least one member policy grants.
type AnyPolicy []Policy

func (p AnyPolicy) Can(identity *Identity, action Action, resource Resource) bool {
	for _, member := range p {
		if member.Can(identity, action, resource) {
			return true
		}
	}
	return false
}

// New builds the policy selected by auth.admin_policy.
func New(cfg *config.AuthConfig) Policy {
	switch cfg.AdminPolicy {
	case config.AdminPolicyEmailDomain:
		return EmailDomainPolicy{Domain: cfg.AdminEmailDomain}
	case config.AdminPolicyAllowList:
		return NewAllowListPolicy(cfg.AdminEmails)
	case config.AdminPolicyAny:
		return AnyPolicy{
			RolePolicy{},
			EmailDomainPolicy{Domain: cfg.AdminEmailDomain},
			NewAllowListPolicy(cfg.AdminEmails),
		}
	default:
		return RolePolicy{}
	}
}

// Authorize returns ErrUnauthorized for a nil identity and ErrForbidden when
// the policy denies the action.
func Authorize(p Policy, identity *Identity, action Action, resource Resource) error {
	if identity == nil {
		return ErrUnauthorized
	}
	if !p.Can(identity, action, resource) {
		return ErrForbidden
	}
	return nil
}

// IsAdmin reports whether identity holds every administrative action.
func IsAdmin(p Policy, identity *Identity) bool {
	for _, a := range []Action{ActionUpdateStatus, ActionDeleteFeature, ActionDeleteUser, ActionListAdminData} {
		if !p.Can(identity, a, Resource{}) {
			return false
		}
	}
	return true
}
