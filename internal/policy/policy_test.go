package policy

import (
	"testing"

	"github.com/featureboard/backend/internal/config"
)

func TestRolePolicy(t *testing.T) {
	p := RolePolicy{}

	if !p.Can(&Identity{Role: "ADMIN"}, ActionUpdateStatus, Resource{}) {
		t.Error("admin role should be granted")
	}
	if p.Can(&Identity{Role: "USER"}, ActionUpdateStatus, Resource{}) {
		t.Error("user role should be denied")
	}
	if p.Can(nil, ActionUpdateStatus, Resource{}) {
		t.Error("nil identity should be denied")
	}
}

func TestEmailDomainPolicy(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		email  string
		want   bool
	}{
		{"matching domain", "@yourcompany.com", "alice@yourcompany.com", true},
		{"case insensitive", "@yourcompany.com", "Bob@YourCompany.COM", true},
		{"domain without at", "yourcompany.com", "carol@yourcompany.com", true},
		{"other domain", "@yourcompany.com", "dave@gmail.com", false},
		{"lookalike suffix", "@yourcompany.com", "eve@notyourcompany.com", false},
		{"empty domain", "", "alice@yourcompany.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := EmailDomainPolicy{Domain: tt.domain}
			got := p.Can(&Identity{Email: tt.email, Role: "USER"}, ActionDeleteFeature, Resource{})
			if got != tt.want {
				t.Errorf("Can(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestAllowListPolicy(t *testing.T) {
	p := NewAllowListPolicy([]string{" Root@Acme.io ", ""})

	if !p.Can(&Identity{Email: "root@acme.io"}, ActionDeleteUser, Resource{}) {
		t.Error("listed e-mail should be granted")
	}
	if p.Can(&Identity{Email: "other@acme.io"}, ActionDeleteUser, Resource{}) {
		t.Error("unlisted e-mail should be denied")
	}
	if p.Can(&Identity{Email: ""}, ActionDeleteUser, Resource{}) {
		t.Error("empty e-mail should be denied")
	}
}

func TestNew(t *testing.T) {
	cfg := &config.AuthConfig{
		AdminPolicy:      config.AdminPolicyAny,
		AdminEmailDomain: "@acme.io",
		AdminEmails:      []string{"boss@elsewhere.org"},
	}
	p := New(cfg)

	granted := []*Identity{
		{Email: "x@elsewhere.org", Role: "ADMIN"},
		{Email: "x@acme.io", Role: "USER"},
		{Email: "boss@elsewhere.org", Role: "USER"},
	}
	for _, id := range granted {
		if !p.Can(id, ActionListAdminData, Resource{}) {
			t.Errorf("any policy should grant %+v", id)
		}
	}
	if p.Can(&Identity{Email: "x@elsewhere.org", Role: "USER"}, ActionListAdminData, Resource{}) {
		t.Error("any policy should deny when no member grants")
	}

	if _, ok := New(&config.AuthConfig{}).(RolePolicy); !ok {
		t.Error("empty admin_policy should fall back to RolePolicy")
	}
}

func TestAuthorize(t *testing.T) {
	p := RolePolicy{}

	if err := Authorize(p, nil, ActionUpdateStatus, Resource{}); err != ErrUnauthorized {
		t.Errorf("nil identity: got %v, want ErrUnauthorized", err)
	}
	if err := Authorize(p, &Identity{Role: "USER"}, ActionUpdateStatus, Resource{}); err != ErrForbidden {
		t.Errorf("user: got %v, want ErrForbidden", err)
	}
	if err := Authorize(p, &Identity{Role: "ADMIN"}, ActionUpdateStatus, Resource{}); err != nil {
		t.Errorf("admin: got %v, want nil", err)
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(RolePolicy{}, &Identity{Role: "ADMIN"}) {
		t.Error("admin should be admin")
	}
	if IsAdmin(RolePolicy{}, nil) {
		t.Error("nil identity should not be admin")
	}
}
