package handlers

import (
	"net/http"
	"testing"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "Alice@Example.com", "name": "Alice", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user models.User
	decode(t, w, &user)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotContains(t, w.Body.String(), "hunter22")

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "name": "Again", "password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, w, &login)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, user.ID, login.User.ID)

	w = s.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User    models.User `json:"user"`
		IsAdmin bool        `json:"is_admin"`
	}
	decode(t, w, &me)
	assert.Equal(t, "alice@example.com", me.User.Email)
	assert.False(t, me.IsAdmin)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing password", map[string]string{"email": "a@example.com"}},
		{"short password", map[string]string{"email": "a@example.com", "password": "123"}},
		{"bad email", map[string]string{"email": "not-an-email", "password": "hunter22"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestRegister_Disabled(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Auth.AllowRegistration = false })

	w := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "a@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/auth/config", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg map[string]bool
	decode(t, w, &cfg)
	assert.False(t, cfg["allow_registration"])
	assert.False(t, cfg["ldap_enabled"])
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.createUser("bob@example.com", models.RoleUser)

	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, adminToken := s.createUser("root@example.com", models.RoleAdmin)
	w = s.do(http.MethodGet, "/api/auth/me", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		IsAdmin bool `json:"is_admin"`
	}
	decode(t, w, &me)
	assert.True(t, me.IsAdmin)
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	_, token := s.createUser("carol@example.com", models.RoleUser)

	w := s.do(http.MethodPost, "/api/auth/change-password", token, map[string]string{
		"old_password": "nope-nope", "new_password": "another1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/change-password", token, map[string]string{
		"old_password": "secret123", "new_password": "another1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "another1",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
