package model

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User roles. Roles are descriptive only: every authorization decision is a
// strict farm-owner equality check in the ownership guard.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleWorker  = "worker"
)

// User represents an authenticatable account. A user may exist without a farm
// between registration and farm creation.
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password  string         `json:"-" gorm:"type:varchar(255)"`
	Name      string         `json:"name" gorm:"type:varchar(100)"`
	AvatarURL string         `json:"avatar_url,omitempty" gorm:"type:varchar(255)"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'owner'"`
	FarmID    *uint          `json:"farm_id,omitempty" gorm:"index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// NormalizeEmail canonicalizes an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword replaces the stored hash with a bcrypt hash of the plaintext.
// The hash is computed here and nowhere else.
func (u *User) SetPassword(plaintext string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func (u *User) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plaintext)) == nil
}
