// services/engagement_service.go
package services

import (
	"fmt"
	"log"

	"veteran-pitch-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EngagementService handles endorsements and resume requests. Both writes are
// invalidation hooks: recording either drops the veteran's cached metrics.
type EngagementService struct {
	DB    *gorm.DB
	Cache *MetricsCache
}

func NewEngagementService(db *gorm.DB, cache *MetricsCache) *EngagementService {
	return &EngagementService{DB: db, Cache: cache}
}

// CreateEndorsement records a supporter vouching for a veteran.
func (s *EngagementService) CreateEndorsement(e *models.Endorsement) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.DB.Create(e).Error; err != nil {
		return fmt.Errorf("failed to create endorsement: %w", err)
	}

	activity := models.ActivityEvent{
		ID:        uuid.NewString(),
		VeteranID: e.VeteranID,
		ActorID:   &e.SupporterID,
		Kind:      "endorsement_given",
		Subject:   e.ID,
	}
	// best effort, feed only
	if err := s.DB.Create(&activity).Error; err != nil {
		log.Printf("⚠️ [ENGAGEMENT] Failed to log activity for endorsement %s: %v", e.ID, err)
	}

	s.Cache.InvalidateVeteran(e.VeteranID)
	return nil
}

// CreateResumeRequest records a recruiter asking for a resume.
func (s *EngagementService) CreateResumeRequest(r *models.ResumeRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.DB.Create(r).Error; err != nil {
		return fmt.Errorf("failed to create resume request: %w", err)
	}

	activity := models.ActivityEvent{
		ID:        uuid.NewString(),
		VeteranID: r.VeteranID,
		ActorID:   &r.RecruiterID,
		Kind:      "resume_requested",
		Subject:   r.ID,
	}
	if err := s.DB.Create(&activity).Error; err != nil {
		log.Printf("⚠️ [ENGAGEMENT] Failed to log activity for resume request %s: %v", r.ID, err)
	}

	s.Cache.InvalidateVeteran(r.VeteranID)
	return nil
}

// RecentActivity returns the veteran's latest feed entries, newest first.
func (s *EngagementService) RecentActivity(veteranID string, limit int) ([]models.ActivityEvent, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var activities []models.ActivityEvent
	err := s.DB.Where("veteran_id = ?", veteranID).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

// ActivityFeed bundles recent events with the veteran's mirrored profile, so
// dashboards render a display name without a second call to the auth service.
type ActivityFeed struct {
	VeteranID   string                 `json:"veteran_id"`
	DisplayName string                 `json:"display_name,omitempty"`
	Events      []models.ActivityEvent `json:"events"`
}

func (s *EngagementService) ActivityFeed(veteranID string, limit int) (*ActivityFeed, error) {
	events, err := s.RecentActivity(veteranID, limit)
	if err != nil {
		return nil, err
	}
	feed := &ActivityFeed{VeteranID: veteranID, Events: events}
	// The mirror can lag a fresh signup; the feed still renders without a name.
	var mirror models.VeteranMirror
	if err := s.DB.Where("external_user_id = ?", veteranID).First(&mirror).Error; err == nil {
		feed.DisplayName = mirror.DisplayName
	}
	return feed, nil
}
