package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/utils"
	"github.com/featureboard/backend/pkg/logger"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	authConfig  *config.AuthConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, authCfg *config.AuthConfig, ldapCfg *config.LDAPConfig) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(ldapCfg),
		jwtConfig:   jwtCfg,
		authConfig:  authCfg,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	Token    string       `json:"token"`
	ExpireAt time.Time    `json:"expire_at"`
	User     *models.User `json:"user"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a local USER account.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if !s.authConfig.AllowRegistration {
		return nil, &Error{Kind: KindForbidden, Message: "registration is disabled"}
	}
	return s.CreateLocalUser(ctx, req, models.RoleUser)
}

// CreateLocalUser validates and stores a password account with the given role.
func (s *AuthService) CreateLocalUser(ctx context.Context, req *RegisterRequest, role models.Role) (*models.User, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)

	if email == "" || req.Password == "" {
		return nil, validationError("email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return nil, validationError("password must be at least 6 characters")
	}
	if !role.Valid() {
		return nil, validationError("invalid role")
	}

	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, persistenceError("check email", err)
	}
	if existing > 0 {
		return nil, validationError("email is already registered")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, validationError(err.Error())
	}

	user := &models.User{
		Email:    email,
		Name:     name,
		Password: hashed,
		Role:     role,
		AuthType: models.AuthTypeLocal,
	}
	if err := db.Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, validationError("email is already registered")
		}
		return nil, persistenceError("create user", err)
	}

	logger.Info().Str("user_id", user.ID).Str("email", email).Msg("user registered")
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	var user *models.User
	var err error

	switch req.AuthType {
	case "", models.AuthTypeLocal:
		user, err = s.localAuth(ctx, req.Email, req.Password)
	case models.AuthTypeLDAP:
		user, err = s.ldapAuth(ctx, req.Email, req.Password)
	default:
		return nil, validationError("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	token, err := utils.GenerateToken(user.ID, user.Email, string(user.Role), s.jwtConfig.ExpireHour)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		logger.Warnf("[Auth] Failed to record last login for %s: %v", user.ID, err)
	}
	user.LastLogin = &now

	return &LoginResult{
		Token:    token,
		ExpireAt: now.Add(time.Duration(s.jwtConfig.ExpireHour) * time.Hour),
		User:     user,
	}, nil
}

var errInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "invalid email or password"}

func (s *AuthService) localAuth(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ? AND auth_type = ?", normalizeEmail(email), models.AuthTypeLocal).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, persistenceError("load user", err)
	}

	if !utils.CheckPassword(password, user.Password) {
		return nil, errInvalidCredentials
	}
	return &user, nil
}

// ldapAuth binds against the directory and creates the account on first login.
func (s *AuthService) ldapAuth(ctx context.Context, username, password string) (*models.User, error) {
	if !s.ldapService.IsEnabled() {
		return nil, validationError("LDAP is not enabled")
	}

	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		logger.Warnf("[Auth] LDAP login failed for %s: %v", username, err)
		return nil, errInvalidCredentials
	}

	email := normalizeEmail(ldapUser.Email)
	if email == "" {
		email = normalizeEmail(username)
	}

	db := s.db.WithContext(ctx)

	var user models.User
	err = db.Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:    email,
			Name:     ldapUser.Name,
			Role:     models.RoleUser,
			AuthType: models.AuthTypeLDAP,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, persistenceError("create ldap user", err)
		}
	case err != nil:
		return nil, persistenceError("load user", err)
	case user.AuthType != models.AuthTypeLDAP:
		return nil, errInvalidCredentials
	default:
		syncLDAPName(db, &user, ldapUser.Name)
	}

	return &user, nil
}

// syncLDAPName copies the directory display name onto user. A failed write
// is logged and does not block the login.
func syncLDAPName(db *gorm.DB, user *models.User, name string) {
	if name == "" || name == user.Name {
		return
	}
	user.Name = name
	if err := db.Model(user).Update("name", name).Error; err != nil {
		logger.Warnf("[Auth] Failed to sync LDAP name for %s: %v", user.ID, err)
	}
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, persistenceError("load user", err)
	}
	return &user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.AuthType != models.AuthTypeLocal {
		return validationError("LDAP users cannot change password here")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return validationError("incorrect old password")
	}
	if len(req.NewPassword) < minPasswordLength {
		return validationError("password must be at least 6 characters")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return validationError(err.Error())
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return persistenceError("update password", err)
	}
	return nil
}

// CreateAdminIfNotExists seeds the bootstrap admin from configuration.
func (s *AuthService) CreateAdminIfNotExists(ctx context.Context) error {
	email := normalizeEmail(s.authConfig.BootstrapAdminEmail)
	if email == "" {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if s.authConfig.BootstrapAdminPassword == "" {
		logger.Warnf("[Auth] bootstrap_admin_email set without a password, skipping admin seed")
		return nil
	}

	_, err := s.CreateLocalUser(ctx, &RegisterRequest{
		Email:    email,
		Name:     "Administrator",
		Password: s.authConfig.BootstrapAdminPassword,
	}, models.RoleAdmin)
	if err != nil {
		return err
	}
	logger.Infof("[Auth] Bootstrap admin %s created", email)
	return nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}
