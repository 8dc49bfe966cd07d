// services/store.go
package services

import (
	"time"

	"veteran-pitch-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralStore is the data-access contract the recorder, graph, and
// aggregator run against. The production implementation is GORM/Postgres;
// tests use an in-memory fake with the same read semantics.
type ReferralStore interface {
	CreateReferral(r *models.Referral) error
	CreateEvent(e *models.ReferralEvent) error
	CreateActivity(a *models.ActivityEvent) error
	IncrementSharedPitchClick(supporterID, pitchID string) error

	GetReferral(id string) (*models.Referral, error)
	FindReferral(supporterID *string, pitchID string) (*models.Referral, error)
	GetPitch(id string) (*models.Pitch, error)
	// GetVeteranMirror looks up a synced veteran profile by its auth-service
	// user id.
	GetVeteranMirror(externalUserID string) (*models.VeteranMirror, error)
	// HasRecentEvent reports whether an event of the given type exists on the
	// referral at or after since.
	HasRecentEvent(referralID, eventType string, since time.Time) (bool, error)

	// EventsSince returns events with occurred_at >= since, oldest first.
	// veteranID == "" means all veterans; otherwise only events whose
	// referral's pitch belongs to that veteran.
	EventsSince(veteranID string, since time.Time) ([]models.ReferralEvent, error)
	// ReferralsSince returns referrals created at or after since, scoped the
	// same way as EventsSince.
	ReferralsSince(veteranID string, since time.Time) ([]models.Referral, error)

	ReferralsBySupporter(supporterID string) ([]models.Referral, error)
	ChildReferrals(parentID string) ([]models.Referral, error)
	EventsForReferral(referralID string) ([]models.ReferralEvent, error)
}

// GormReferralStore backs ReferralStore with Postgres via GORM.
type GormReferralStore struct {
	DB *gorm.DB
}

func NewGormReferralStore(db *gorm.DB) *GormReferralStore {
	return &GormReferralStore{DB: db}
}

func (s *GormReferralStore) CreateReferral(r *models.Referral) error {
	return s.DB.Create(r).Error
}

func (s *GormReferralStore) CreateEvent(e *models.ReferralEvent) error {
	return s.DB.Create(e).Error
}

func (s *GormReferralStore) CreateActivity(a *models.ActivityEvent) error {
	return s.DB.Create(a).Error
}

// IncrementSharedPitchClick bumps the open counter for (supporter, pitch),
// inserting the row on first click. Single upsert statement, safe under
// concurrent clicks.
func (s *GormReferralStore) IncrementSharedPitchClick(supporterID, pitchID string) error {
	click := models.SharedPitchClick{
		ID:          uuid.NewString(),
		SupporterID: supporterID,
		PitchID:     pitchID,
		Clicks:      1,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "supporter_id"}, {Name: "pitch_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"clicks":     gorm.Expr("shared_pitch_clicks.clicks + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&click).Error
}

func (s *GormReferralStore) GetReferral(id string) (*models.Referral, error) {
	var r models.Referral
	if err := s.DB.Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormReferralStore) FindReferral(supporterID *string, pitchID string) (*models.Referral, error) {
	var r models.Referral
	q := s.DB.Where("pitch_id = ?", pitchID)
	if supporterID == nil {
		q = q.Where("supporter_id IS NULL")
	} else {
		q = q.Where("supporter_id = ?", *supporterID)
	}
	if err := q.First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormReferralStore) GetPitch(id string) (*models.Pitch, error) {
	var p models.Pitch
	if err := s.DB.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormReferralStore) GetVeteranMirror(externalUserID string) (*models.VeteranMirror, error) {
	var m models.VeteranMirror
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormReferralStore) HasRecentEvent(referralID, eventType string, since time.Time) (bool, error) {
	var count int64
	err := s.DB.Model(&models.ReferralEvent{}).
		Where("referral_id = ? AND event_type = ? AND occurred_at >= ?", referralID, eventType, since).
		Count(&count).Error
	return count > 0, err
}

func (s *GormReferralStore) EventsSince(veteranID string, since time.Time) ([]models.ReferralEvent, error) {
	var events []models.ReferralEvent
	q := s.DB.Model(&models.ReferralEvent{}).
		Where("referral_events.occurred_at >= ?", since)
	if veteranID != "" {
		q = q.Joins("JOIN referrals ON referrals.id = referral_events.referral_id").
			Joins("JOIN pitches ON pitches.id = referrals.pitch_id").
			Where("pitches.veteran_id = ?", veteranID)
	}
	err := q.Order("referral_events.occurred_at ASC").Find(&events).Error
	return events, err
}

func (s *GormReferralStore) ReferralsSince(veteranID string, since time.Time) ([]models.Referral, error) {
	var referrals []models.Referral
	q := s.DB.Model(&models.Referral{}).
		Where("referrals.created_at >= ?", since)
	if veteranID != "" {
		q = q.Joins("JOIN pitches ON pitches.id = referrals.pitch_id").
			Where("pitches.veteran_id = ?", veteranID)
	}
	err := q.Order("referrals.created_at ASC").Find(&referrals).Error
	return referrals, err
}

func (s *GormReferralStore) ReferralsBySupporter(supporterID string) ([]models.Referral, error) {
	var referrals []models.Referral
	err := s.DB.Where("supporter_id = ?", supporterID).
		Order("created_at ASC").
		Find(&referrals).Error
	return referrals, err
}

func (s *GormReferralStore) ChildReferrals(parentID string) ([]models.Referral, error) {
	var referrals []models.Referral
	err := s.DB.Where("parent_referral_id = ?", parentID).
		Order("created_at ASC").
		Find(&referrals).Error
	return referrals, err
}

func (s *GormReferralStore) EventsForReferral(referralID string) ([]models.ReferralEvent, error) {
	var events []models.ReferralEvent
	err := s.DB.Where("referral_id = ?", referralID).
		Order("occurred_at ASC").
		Find(&events).Error
	return events, err
}
