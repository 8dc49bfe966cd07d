// utils/sharelink.go
package utils

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// BuildShareLink constructs a supporter's trackable link for a pitch. The
// shape is fixed — dashboards and the ingestion endpoint both parse it:
// {siteURL}/pitch/{pitchPath}?ref={supporterID}. Anonymous shares get the
// plain pitch URL with no ref param.
func BuildShareLink(siteURL, pitchPath string, supporterID *string) string {
	base := fmt.Sprintf("%s/pitch/%s", strings.TrimRight(siteURL, "/"), pitchPath)
	if supporterID == nil {
		return base
	}
	return fmt.Sprintf("%s?ref=%s", base, *supporterID)
}

// PitchPath is the share-link path segment for a pitch: "{slug}-{id}" so the
// URL reads like the pitch while the trailing UUID stays the lookup key.
// Pitches synced without a slug get one derived from the title; a pitch with
// neither falls back to the bare id.
func PitchPath(pitchID, pitchSlug, title string) string {
	s := pitchSlug
	if s == "" {
		s = PitchSlug(title)
	}
	if s == "" {
		return pitchID
	}
	return s + "-" + pitchID
}

// PitchSlug builds the URL-safe vanity slug for a pitch title,
// e.g. "Infantry Squad Leader, Ops Manager" becomes "infantry-squad-leader-ops-manager"
func PitchSlug(title string) string {
	return slug.Make(title)
}
