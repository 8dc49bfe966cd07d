// models/pitch.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PitchStatusDraft     = "draft"
	PitchStatusPublished = "published"
	PitchStatusArchived  = "archived"
)

// Pitch is a veteran's public pitch page. Referrals always point at a pitch,
// so every referral event resolves to an owning veteran through this row.
type Pitch struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	VeteranID string `gorm:"index;not null" json:"veteran_id"` // ExternalUserID from auth service

	Title   string `gorm:"not null" json:"title"`
	Slug    string `gorm:"uniqueIndex;not null" json:"slug"` // used in vanity share paths
	Summary string `json:"summary"`

	Status      string     `json:"status" gorm:"default:'draft'"` // draft | published | archived
	PublishedAt *time.Time `json:"published_at,omitempty"`

	Timestamps
}

// Endorsement is a supporter vouching for a veteran. Creation invalidates the
// veteran's cached metrics.
type Endorsement struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	VeteranID   string `gorm:"index;not null" json:"veteran_id"`
	SupporterID string `gorm:"index;not null" json:"supporter_id"`
	PitchID     *string `gorm:"index" json:"pitch_id,omitempty"`

	Relationship string `json:"relationship"` // served_with | worked_with | other
	Message      string `json:"message"`

	Timestamps
}

// ResumeRequest is a recruiter asking for a veteran's resume. Creation
// invalidates the veteran's cached metrics.
type ResumeRequest struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	VeteranID   string `gorm:"index;not null" json:"veteran_id"`
	RecruiterID string `gorm:"index;not null" json:"recruiter_id"`
	PitchID     *string `gorm:"index" json:"pitch_id,omitempty"`

	Company string `json:"company"`
	Note    string `json:"note"`
	Status  string `json:"status" gorm:"default:'pending'"` // pending | sent | declined

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
