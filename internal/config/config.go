package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Auth     AuthConfig     `yaml:"auth"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	Features FeatureConfig  `yaml:"features"`
	Users    UserConfig     `yaml:"users"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Audit    AuditConfig    `yaml:"audit"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"` // debug, release, test
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console, json
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// Admin policy names accepted by auth.admin_policy.
const (
	AdminPolicyRole        = "role"
	AdminPolicyEmailDomain = "email_domain"
	AdminPolicyAllowList   = "allow_list"
	AdminPolicyAny         = "any"
)

type AuthConfig struct {
	AdminPolicy            string   `yaml:"admin_policy"`
	AdminEmailDomain       string   `yaml:"admin_email_domain"`
	AdminEmails            []string `yaml:"admin_emails"`
	BootstrapAdminEmail    string   `yaml:"bootstrap_admin_email"`
	BootstrapAdminPassword string   `yaml:"bootstrap_admin_password"`
	AllowRegistration      bool     `yaml:"allow_registration"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// Status transition modes accepted by features.status_transitions.
const (
	TransitionsFree    = "free"
	TransitionsForward = "forward"
)

type FeatureConfig struct {
	StatusTransitions  string `yaml:"status_transitions"`
	MaxAttachments     int    `yaml:"max_attachments"`
	MaxAttachmentBytes int64  `yaml:"max_attachment_bytes"`
}

// User delete policies accepted by users.delete_policy.
const (
	DeletePolicyCascade  = "cascade"
	DeletePolicyReassign = "reassign"
	DeletePolicyForbid   = "forbid"
)

type UserConfig struct {
	DeletePolicy string `yaml:"delete_policy"`
}

type StorageConfig struct {
	AttachmentsDir string `yaml:"attachments_dir"`
}

// RedisConfig enables the asynq task queue.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

type AuditConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	CleanupCron   string `yaml:"cleanup_cron"`
}

var GlobalConfig *Config

// Load reads configPath (default config.yaml), falling back to defaults when
// the file does not exist, then applies .env and environment overrides.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			Mode:           "debug",
			CORSOrigins:    []string{"*"},
			RateLimitRPS:   5,
			RateLimitBurst: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "featureboard.db",
		},
		JWT: JWTConfig{
			Secret:     "featureboard-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Auth: AuthConfig{
			AdminPolicy:       AdminPolicyRole,
			AdminEmailDomain:  "@yourcompany.com",
			AllowRegistration: true,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Features: FeatureConfig{
			StatusTransitions:  TransitionsFree,
			MaxAttachments:     5,
			MaxAttachmentBytes: 10 << 20,
		},
		Users: UserConfig{
			DeletePolicy: DeletePolicyCascade,
		},
		Storage: StorageConfig{
			AttachmentsDir: "data/attachments",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
			CleanupCron:   "30 3 * * *",
		},
	}
}

// Validate rejects enumerated settings with unknown values.
func (c *Config) Validate() error {
	switch c.Auth.AdminPolicy {
	case AdminPolicyRole, AdminPolicyEmailDomain, AdminPolicyAllowList, AdminPolicyAny:
	default:
		return fmt.Errorf("invalid auth.admin_policy %q", c.Auth.AdminPolicy)
	}
	if c.Auth.AllowRegistration && c.grantsAdminByDomain() {
		return fmt.Errorf("auth.admin_policy %q grants admin by email domain %q; disable auth.allow_registration or anyone can register an admin address",
			c.Auth.AdminPolicy, c.Auth.AdminEmailDomain)
	}
	switch c.Features.StatusTransitions {
	case TransitionsFree, TransitionsForward:
	default:
		return fmt.Errorf("invalid features.status_transitions %q", c.Features.StatusTransitions)
	}
	switch c.Users.DeletePolicy {
	case DeletePolicyCascade, DeletePolicyReassign, DeletePolicyForbid:
	default:
		return fmt.Errorf("invalid users.delete_policy %q", c.Users.DeletePolicy)
	}
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

// grantsAdminByDomain reports whether the admin policy trusts the domain of
// an unverified email address.
func (c *Config) grantsAdminByDomain() bool {
	switch c.Auth.AdminPolicy {
	case AdminPolicyEmailDomain:
		return true
	case AdminPolicyAny:
		return strings.TrimSpace(c.Auth.AdminEmailDomain) != ""
	}
	return false
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if policy := os.Getenv("ADMIN_POLICY"); policy != "" {
		c.Auth.AdminPolicy = policy
	}
	if domain := os.Getenv("ADMIN_EMAIL_DOMAIN"); domain != "" {
		c.Auth.AdminEmailDomain = domain
	}
	if emails := os.Getenv("ADMIN_EMAILS"); emails != "" {
		c.Auth.AdminEmails = splitList(emails)
	}
	if email := os.Getenv("BOOTSTRAP_ADMIN_EMAIL"); email != "" {
		c.Auth.BootstrapAdminEmail = email
	}
	if v := os.Getenv("ALLOW_REGISTRATION"); v != "" {
		if allow, err := strconv.ParseBool(v); err == nil {
			c.Auth.AllowRegistration = allow
		}
	}
	if password := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"); password != "" {
		c.Auth.BootstrapAdminPassword = password
	}
	if dir := os.Getenv("ATTACHMENTS_DIR"); dir != "" {
		c.Storage.AttachmentsDir = dir
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseRedisURL parses redis://:password@host:port/db into c.Redis.
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
