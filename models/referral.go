package models

// Referral source types — how the share link came to exist.
const (
	SourceDirect    = "direct"
	SourceSelf      = "self"      // veteran sharing their own pitch
	SourceSupporter = "supporter" // a logged-in supporter's share
	SourceAnonymous = "anonymous"
	SourceChain     = "chain" // a share of a share
)

// Referral is one supporter's unique trackable share link for one pitch.
// At most one row exists per (supporter, pitch) pair; rows are immutable after
// creation except for denormalized status fields.
type Referral struct {
	ID          string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SupporterID *string `gorm:"index:idx_referrals_supporter_pitch,unique" json:"supporter_id,omitempty"` // nil = anonymous share
	PitchID     string  `gorm:"index:idx_referrals_supporter_pitch,unique;not null" json:"pitch_id"`

	ShareLink        string  `gorm:"uniqueIndex;not null" json:"share_link"`
	ParentReferralID *string `gorm:"index" json:"parent_referral_id,omitempty"` // set when this is a share of a share
	SourceType       string  `gorm:"type:varchar(16);not null" json:"source_type"`

	Timestamps
}

// SharedPitchClick is a denormalized open counter per (supporter, pitch),
// upserted on every LINK_OPENED event. Dashboards read it instead of scanning
// raw events.
type SharedPitchClick struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SupporterID string `gorm:"index:idx_shared_clicks_supporter_pitch,unique;not null" json:"supporter_id"`
	PitchID     string `gorm:"index:idx_shared_clicks_supporter_pitch,unique;not null" json:"pitch_id"`

	Clicks int64 `json:"clicks" gorm:"default:0"`

	Timestamps
}
