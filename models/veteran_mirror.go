// models/veteran_mirror.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// VeteranMirror mirrors veteran profile data from the auth service.
// Table name: veteran_mirrors
type VeteranMirror struct {
	ID             string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	ExternalUserID string `gorm:"type:uuid;not null;uniqueIndex" json:"external_user_id"` // Primary lookup key

	DisplayName       string  `gorm:"type:varchar(128);not null" json:"display_name"`
	Branch            string  `gorm:"type:varchar(64)" json:"branch"` // service branch
	Rank              string  `gorm:"type:varchar(64)" json:"rank"`
	Location          *string `json:"location,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
	AccountStatus     string  `gorm:"type:varchar(32);not null" json:"account_status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index"`
}
