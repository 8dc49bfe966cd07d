// services/analytics_service.go
package services

import (
	"fmt"

	"veteran-pitch-system/models"
)

// AttributionWeights define relative values per event type (tunable via
// config/env later)
type AttributionWeights struct {
	ViewValue   int64 `default:"1"`
	CallValue   int64 `default:"5"`
	EmailValue  int64 `default:"5"`
	ShareValue  int64 `default:"2"`
	SignupValue int64 `default:"20"`
}

var DefaultAttributionWeights = AttributionWeights{
	ViewValue:   1,
	CallValue:   5,
	EmailValue:  5,
	ShareValue:  2,
	SignupValue: 20,
}

// EventCounts is the per-type tally used by both chain and supporter views.
type EventCounts struct {
	Opens       int64 `json:"opens"`
	Views       int64 `json:"views"`
	Calls       int64 `json:"calls"`
	Emails      int64 `json:"emails"`
	Shares      int64 `json:"shares"`
	Conversions int64 `json:"conversions"`
}

func (c *EventCounts) add(e models.ReferralEvent) {
	switch e.EventType {
	case models.EventLinkOpened:
		c.Opens++
	case models.EventPitchViewed:
		c.Views++
	case models.EventCallClicked:
		c.Calls++
	case models.EventEmailClicked:
		c.Emails++
	case models.EventShareReshared:
		c.Shares++
	case models.EventSignupFromReferral:
		c.Conversions++
	}
}

// reach is how many people the chain plausibly put the pitch in front of.
func (c *EventCounts) reach() int64 {
	return c.Opens + c.Views
}

// AttributionView is the chain-level rollup for one referral: the resolved
// chain plus counts aggregated over the referral and every descendant share.
// Recomputed on read, never persisted.
type AttributionView struct {
	Chain            ChainResolution `json:"chain"`
	Descendants      int64           `json:"descendants"` // referrals spawned below this one
	Counts           EventCounts     `json:"counts"`
	Reach            int64           `json:"reach"`
	ViralCoefficient float64         `json:"viral_coefficient"` // conversions relative to reach, 0 when reach is 0
}

// PitchRollup is one referral's contribution inside a supporter rollup.
type PitchRollup struct {
	PitchID    string      `json:"pitch_id"`
	ReferralID string      `json:"referral_id"`
	ShareLink  string      `json:"share_link"`
	Counts     EventCounts `json:"counts"`
}

// SupporterRollup aggregates everything a supporter's shares produced.
type SupporterRollup struct {
	SupporterID      string        `json:"supporter_id"`
	Referrals        int64         `json:"referrals"`
	Reach            int64         `json:"reach"`
	Conversions      int64         `json:"conversions"`
	ViralCoefficient float64       `json:"viral_coefficient"`
	AttributionValue int64         `json:"attribution_value"`
	Pitches          []PitchRollup `json:"pitches"`
}

// AnalyticsService serves the dashboard attribution views on top of the graph
// and the raw event log.
type AnalyticsService struct {
	Store     ReferralStore
	Referrals *ReferralService
	Weights   AttributionWeights
}

func NewAnalyticsService(store ReferralStore, referrals *ReferralService) *AnalyticsService {
	return &AnalyticsService{Store: store, Referrals: referrals, Weights: DefaultAttributionWeights}
}

// AttributionForReferral resolves the chain for a referral and aggregates
// counts over the referral plus its descendant shares. The descent reuses the
// chain depth guard so corrupt parent links cannot make this unbounded.
func (s *AnalyticsService) AttributionForReferral(referralID string) (*AttributionView, error) {
	chain, err := s.Referrals.ResolveChain(referralID)
	if err != nil {
		return nil, err
	}

	var counts EventCounts
	var descendants int64
	frontier := []string{referralID}
	for depth := 0; len(frontier) > 0 && depth <= maxChainDepth; depth++ {
		var next []string
		for _, id := range frontier {
			events, err := s.Store.EventsForReferral(id)
			if err != nil {
				return nil, fmt.Errorf("failed to load events for referral %s: %w", id, err)
			}
			for _, e := range events {
				counts.add(e)
			}
			children, err := s.Store.ChildReferrals(id)
			if err != nil {
				return nil, fmt.Errorf("failed to load child referrals of %s: %w", id, err)
			}
			for _, child := range children {
				descendants++
				next = append(next, child.ID)
			}
		}
		frontier = next
	}

	view := &AttributionView{
		Chain:       *chain,
		Descendants: descendants,
		Counts:      counts,
		Reach:       counts.reach(),
	}
	if view.Reach > 0 {
		view.ViralCoefficient = float64(counts.Conversions) / float64(view.Reach)
	}
	return view, nil
}

// RollupForSupporter aggregates every referral a supporter created, with a
// per-pitch breakdown and a weighted attribution value.
func (s *AnalyticsService) RollupForSupporter(supporterID string) (*SupporterRollup, error) {
	referrals, err := s.Store.ReferralsBySupporter(supporterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrals for supporter %s: %w", supporterID, err)
	}

	rollup := &SupporterRollup{
		SupporterID: supporterID,
		Referrals:   int64(len(referrals)),
		Pitches:     make([]PitchRollup, 0, len(referrals)),
	}

	var total EventCounts
	for _, ref := range referrals {
		events, err := s.Store.EventsForReferral(ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load events for referral %s: %w", ref.ID, err)
		}
		var counts EventCounts
		for _, e := range events {
			counts.add(e)
			total.add(e)
		}
		rollup.Pitches = append(rollup.Pitches, PitchRollup{
			PitchID:    ref.PitchID,
			ReferralID: ref.ID,
			ShareLink:  ref.ShareLink,
			Counts:     counts,
		})
	}

	rollup.Reach = total.reach()
	rollup.Conversions = total.Conversions
	if rollup.Reach > 0 {
		rollup.ViralCoefficient = float64(total.Conversions) / float64(rollup.Reach)
	}
	rollup.AttributionValue = total.Views*s.Weights.ViewValue +
		total.Calls*s.Weights.CallValue +
		total.Emails*s.Weights.EmailValue +
		total.Shares*s.Weights.ShareValue +
		total.Conversions*s.Weights.SignupValue
	return rollup, nil
}
