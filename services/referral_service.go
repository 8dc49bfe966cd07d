// services/referral_service.go
package services

import (
	"fmt"
	"log"
	"strings"

	"veteran-pitch-system/models"
	"veteran-pitch-system/utils"

	"github.com/google/uuid"
)

// maxChainDepth bounds the parent-referral walk. Parent links are written by
// this service and should form short trees, but a malformed row must not spin
// the resolver forever.
const maxChainDepth = 50

// ChainResolution is the result of walking a referral back to its origin.
type ChainResolution struct {
	ReferralID          string  `json:"referral_id"`
	AttributionDepth    int     `json:"attribution_depth"`
	OriginalSupporterID *string `json:"original_supporter_id,omitempty"`
	SourceType          string  `json:"source_type"`
	Truncated           bool    `json:"truncated"` // hit the depth guard
}

// ReferralService owns share-link creation and chain attribution.
type ReferralService struct {
	Store   ReferralStore
	Cache   *MetricsCache
	SiteURL string
}

func NewReferralService(store ReferralStore, cache *MetricsCache, siteURL string) *ReferralService {
	return &ReferralService{Store: store, Cache: cache, SiteURL: siteURL}
}

// CreateOrGetReferral returns the share link for (supporter, pitch), creating
// the referral row on first call. Idempotent: a second call returns the same
// link without a second row.
func (s *ReferralService) CreateOrGetReferral(supporterID *string, pitchID string, parentReferralID *string) (*models.Referral, error) {
	pitch, err := s.Store.GetPitch(pitchID)
	if err != nil {
		return nil, fmt.Errorf("pitch %s not found: %w", pitchID, err)
	}

	if existing, err := s.Store.FindReferral(supporterID, pitchID); err == nil {
		return existing, nil
	}

	referral := &models.Referral{
		ID:               uuid.NewString(),
		SupporterID:      supporterID,
		PitchID:          pitchID,
		ShareLink:        utils.BuildShareLink(s.SiteURL, utils.PitchPath(pitch.ID, pitch.Slug, pitch.Title), supporterID),
		ParentReferralID: parentReferralID,
		SourceType:       sourceTypeFor(supporterID, pitch.VeteranID, parentReferralID),
	}
	if err := s.Store.CreateReferral(referral); err != nil {
		// Lost a concurrent create race — the unique (supporter, pitch) index
		// rejected us. The winner's row is the answer.
		if existing, findErr := s.Store.FindReferral(supporterID, pitchID); findErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}

	activity := &models.ActivityEvent{
		ID:        uuid.NewString(),
		VeteranID: pitch.VeteranID,
		ActorID:   supporterID,
		Kind:      "referral_created",
		Subject:   referral.ID,
	}
	if err := s.Store.CreateActivity(activity); err != nil {
		log.Printf("⚠️ [REFERRAL] Failed to log activity for referral %s: %v", referral.ID, err)
	}

	s.Cache.InvalidateVeteran(pitch.VeteranID)
	log.Printf("🔗 Referral created: pitch=%s supporter=%v source=%s", pitchID, supporterID, referral.SourceType)
	return referral, nil
}

func sourceTypeFor(supporterID *string, veteranID string, parentReferralID *string) string {
	switch {
	case parentReferralID != nil:
		return models.SourceChain
	case supporterID == nil:
		return models.SourceAnonymous
	case *supporterID == veteranID:
		return models.SourceSelf
	default:
		return models.SourceSupporter
	}
}

// ResolveChain walks parent_referral_id links to the originating supporter.
// A missing parent row terminates the walk at the last resolvable hop; more
// than maxChainDepth hops is treated as corrupt data — logged, walk stopped,
// Truncated set.
func (s *ReferralService) ResolveChain(referralID string) (*ChainResolution, error) {
	referral, err := s.Store.GetReferral(referralID)
	if err != nil {
		return nil, fmt.Errorf("referral %s not found: %w", referralID, err)
	}

	current := referral
	depth := 0
	truncated := false
	for current.ParentReferralID != nil {
		if depth >= maxChainDepth {
			log.Printf("⚠️ [REFERRAL] Chain for %s exceeds %d hops — possible cycle, truncating walk",
				referralID, maxChainDepth)
			truncated = true
			break
		}
		parent, err := s.Store.GetReferral(*current.ParentReferralID)
		if err != nil {
			// Dangling parent reference: attribute to the last hop we reached.
			log.Printf("⚠️ [REFERRAL] Dangling parent %s on referral %s", *current.ParentReferralID, current.ID)
			break
		}
		current = parent
		depth++
	}

	res := &ChainResolution{
		ReferralID:          referralID,
		AttributionDepth:    depth,
		OriginalSupporterID: current.SupporterID,
		Truncated:           truncated,
	}
	if depth > 0 {
		res.SourceType = models.SourceChain
	} else {
		res.SourceType = referral.SourceType
	}
	return res, nil
}

// DetectPlatform maps a User-Agent to a canonical platform name. Best-effort
// heuristic only — link previews and in-app browsers identify themselves
// inconsistently.
func DetectPlatform(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "whatsapp"):
		return models.PlatformWhatsApp
	case strings.Contains(ua, "linkedin"):
		return models.PlatformLinkedIn
	case strings.Contains(ua, "telegram"):
		return models.PlatformTelegram
	case strings.Contains(ua, "email"):
		return models.PlatformEmail
	default:
		return models.PlatformDirect
	}
}
