package services

import (
	"fmt"

	"github.com/featureboard/backend/internal/config"
	"github.com/go-ldap/ldap/v3"
)

type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled && s.config.Host != ""
}

type LDAPUser struct {
	DN       string
	Username string
	Email    string
	Name     string
}

func (s *LDAPService) url() string {
	scheme := "ldap"
	if s.config.UseSSL {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.config.Host, s.config.Port)
}

// Authenticate looks the user up with the service account, then binds as
// that user to verify the password.
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, fmt.Errorf("LDAP is not enabled")
	}
	if password == "" {
		// An empty password would be an unauthenticated bind.
		return nil, fmt.Errorf("invalid credentials")
	}

	conn, err := ldap.DialURL(s.url())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(username)),
		[]string{"dn", "cn", "mail", "uid", "sAMAccountName"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, fmt.Errorf("user not found in LDAP")
	case 1:
	default:
		return nil, fmt.Errorf("multiple users found in LDAP")
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	user := &LDAPUser{
		DN:       entry.DN,
		Username: entry.GetAttributeValue("uid"),
		Email:    entry.GetAttributeValue("mail"),
		Name:     entry.GetAttributeValue("cn"),
	}
	// Active Directory
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	return user, nil
}
