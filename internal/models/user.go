package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

const (
	AuthTypeLocal = "local"
	AuthTypeLDAP  = "ldap"
)

// DeletedUserEmail identifies the account that receives features of deleted
// users under the reassign delete policy.
const DeletedUserEmail = "deleted-user@featureboard.invalid"

// User represents a registered account
type User struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Email     string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string     `gorm:"size:100" json:"name"`
	Password  string     `gorm:"size:255" json:"-"` // Hashed password, empty for LDAP users
	Role      Role       `gorm:"size:20;default:USER;not null" json:"role"`
	AuthType  string     `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// DisplayName falls back to the e-mail when no name was given.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
