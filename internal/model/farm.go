package model

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionTrial    = "trial"
	SubscriptionExpired  = "expired"
	SubscriptionCanceled = "canceled"
)

// Farm is the tenant record. The slug is derived once from the name at
// creation time and is the only farm identifier ever exposed to clients:
// it appears in URLs and in session tokens, the numeric ID does not.
type Farm struct {
	ID      uint   `json:"-" gorm:"primaryKey"`
	Name    string `json:"name" gorm:"type:varchar(100)"`
	Slug    string `json:"slug" gorm:"type:varchar(100);uniqueIndex"`
	OwnerID uint   `json:"-" gorm:"index;not null"`

	// Subscription state.
	Plan               string     `json:"plan" gorm:"type:varchar(50);default:'free'"`
	SubscriptionStatus string     `json:"subscription_status" gorm:"type:varchar(50);default:'trial'"`
	SubscriptionEnd    *time.Time `json:"subscription_end,omitempty"`

	// Settings with defaults.
	Currency      string `json:"currency" gorm:"type:varchar(10);default:'USD'"`
	Locale        string `json:"locale" gorm:"type:varchar(10);default:'en'"`
	Timezone      string `json:"timezone" gorm:"type:varchar(50);default:'UTC'"`
	Notifications bool   `json:"notifications" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^\w-]`)
	slugDashes  = regexp.MustCompile(`-{2,}`)
)

// DeriveSlug builds the URL-safe farm identifier from a display name:
// lowercase, whitespace runs become hyphens, everything outside [a-z0-9_-]
// is stripped. "Green Acres Farm!!" becomes "green-acres-farm".
func DeriveSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugInvalid.ReplaceAllString(s, "")
	return slugDashes.ReplaceAllString(s, "-")
}

// BeforeCreate assigns the slug from the name on first save. The slug is
// never regenerated afterwards, even if the farm is renamed.
func (f *Farm) BeforeCreate(tx *gorm.DB) error {
	if f.Slug == "" {
		f.Slug = DeriveSlug(f.Name)
	}
	return nil
}
