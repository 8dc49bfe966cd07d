// services/event_recorder.go
package services

import (
	"fmt"
	"log"
	"time"

	"veteran-pitch-system/models"

	"github.com/google/uuid"
)

// DedupeWindow suppresses duplicate same-type events on the same referral.
const DedupeWindow = 10 * time.Minute

// TrackEventRequest is the ingestion payload for one referral interaction.
type TrackEventRequest struct {
	ReferralID string `json:"referral_id"`
	EventType  string `json:"event_type"`
	Platform   string `json:"platform,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Country    string `json:"country,omitempty"`
	IPHash     string `json:"ip_hash,omitempty"`
}

// EventRecorder persists referral events with a 10-minute per
// (referral, event type) debounce and keeps the cache and click counters in
// step with each write.
type EventRecorder struct {
	Store ReferralStore
	Cache *MetricsCache
}

func NewEventRecorder(store ReferralStore, cache *MetricsCache) *EventRecorder {
	return &EventRecorder{Store: store, Cache: cache}
}

// TrackReferralEvent records one interaction. A duplicate within the debounce
// window is a silent no-op, not an error. Insert failures are returned to the
// caller; cache-invalidation failures are logged and swallowed so they never
// block the write path.
//
// The existence check and the insert are two statements, not one: two
// concurrent duplicates can both pass the check and both land. Accepted —
// these are analytics events, not ledger entries.
func (r *EventRecorder) TrackReferralEvent(req TrackEventRequest) error {
	if !models.EventType(req.EventType).IsValid() {
		return fmt.Errorf("unknown event type %q", req.EventType)
	}

	referral, err := r.Store.GetReferral(req.ReferralID)
	if err != nil {
		return fmt.Errorf("referral %s not found: %w", req.ReferralID, err)
	}

	now := time.Now().UTC()
	recent, err := r.Store.HasRecentEvent(referral.ID, req.EventType, now.Add(-DedupeWindow))
	if err != nil {
		return fmt.Errorf("dedupe check failed: %w", err)
	}
	if recent {
		log.Printf("⏭️ [RECORDER] Debounced duplicate %s on referral %s", req.EventType, referral.ID)
		return nil
	}

	platform := req.Platform
	if platform == "" {
		platform = DetectPlatform(req.UserAgent)
	}

	event := models.ReferralEvent{
		ID:         uuid.NewString(),
		ReferralID: referral.ID,
		EventType:  req.EventType,
		Platform:   platform,
		OccurredAt: now,
		UserAgent:  req.UserAgent,
		Country:    req.Country,
		IPHash:     req.IPHash,
	}
	if err := r.Store.CreateEvent(&event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", req.EventType, err)
	}

	if req.EventType == models.EventLinkOpened && referral.SupporterID != nil {
		if err := r.Store.IncrementSharedPitchClick(*referral.SupporterID, referral.PitchID); err != nil {
			log.Printf("⚠️ [RECORDER] Click counter upsert failed for supporter=%s pitch=%s: %v",
				*referral.SupporterID, referral.PitchID, err)
		}
	}

	r.invalidateOwner(referral)
	return nil
}

// invalidateOwner resolves the referral's owning veteran and drops their
// cached metrics. Best effort — a stale cache beats a failed write.
func (r *EventRecorder) invalidateOwner(referral *models.Referral) {
	pitch, err := r.Store.GetPitch(referral.PitchID)
	if err != nil {
		log.Printf("⚠️ [RECORDER] Could not resolve veteran for pitch %s, skipping invalidation: %v",
			referral.PitchID, err)
		return
	}
	r.Cache.InvalidateVeteran(pitch.VeteranID)
}
