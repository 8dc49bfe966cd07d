package models

// ActivityEvent is a lightweight audit row written when something notable
// happens on the platform (referral created, endorsement given, resume
// requested). Feeds the veteran's activity feed.
type ActivityEvent struct {
	ID        string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	VeteranID string  `gorm:"index;not null" json:"veteran_id"`
	ActorID   *string `gorm:"index" json:"actor_id,omitempty"` // nil for anonymous actors

	Kind    string `gorm:"type:varchar(32);not null" json:"kind"` // referral_created | endorsement_given | resume_requested
	Subject string `json:"subject"`                               // id of the row the activity refers to

	Timestamps
}
