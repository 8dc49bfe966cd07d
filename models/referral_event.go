// models/referral_event.go
package models

import "time"

// Tracked event types. Closed set — the recorder rejects anything else.
const (
	EventLinkOpened         = "LINK_OPENED"
	EventPitchViewed        = "PITCH_VIEWED"
	EventCallClicked        = "CALL_CLICKED"
	EventEmailClicked       = "EMAIL_CLICKED"
	EventShareReshared      = "SHARE_RESHARED"
	EventSignupFromReferral = "SIGNUP_FROM_REFERRAL"
)

// EventType wraps the tracked event-type strings
type EventType string

// IsValid reports whether et is one of the tracked event types
func (et EventType) IsValid() bool {
	switch string(et) {
	case EventLinkOpened, EventPitchViewed, EventCallClicked,
		EventEmailClicked, EventShareReshared, EventSignupFromReferral:
		return true
	default:
		return false
	}
}

// Canonical traffic platforms. DetectPlatform may also emit "telegram" and
// "direct"; NormalizeSource collapses everything outside the cohort set to
// "other".
const (
	PlatformWhatsApp = "whatsapp"
	PlatformLinkedIn = "linkedin"
	PlatformTelegram = "telegram"
	PlatformEmail    = "email"
	PlatformCopy     = "copy"
	PlatformDirect   = "direct"
	PlatformOther    = "other"
)

// NormalizeSource maps a raw platform value to a cohort source. Anything that
// is not whatsapp/linkedin/email/copy collapses to "other" — never passes
// through unmapped.
func NormalizeSource(platform string) string {
	switch platform {
	case PlatformWhatsApp, PlatformLinkedIn, PlatformEmail, PlatformCopy:
		return platform
	default:
		return PlatformOther
	}
}

// ReferralEvent is one observed interaction tied to a referral. Rows are
// append-only: never updated, never deleted in production.
//
// Invariant (enforced by the recorder, not the schema): for a given
// (referral_id, event_type) pair, no two rows within 10 minutes of each other.
type ReferralEvent struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReferralID string `gorm:"index;not null" json:"referral_id"`

	EventType string `gorm:"type:varchar(32);not null;index" json:"event_type"`
	Platform  string `gorm:"type:varchar(16);not null;default:'other'" json:"platform"`

	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`

	UserAgent string `json:"user_agent,omitempty"`
	Country   string `gorm:"type:varchar(2)" json:"country,omitempty"` // ISO country code
	IPHash    string `gorm:"type:varchar(64)" json:"ip_hash,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
