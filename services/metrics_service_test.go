package services

import (
	"fmt"
	"math"
	"testing"
	"time"

	"veteran-pitch-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture wires a memStore and a MetricsService around one veteran's pitch
// and referral.
type fixture struct {
	store    *memStore
	cache    *MetricsCache
	metrics  *MetricsService
	veteran  string
	pitch    string
	referral string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	cache := NewMetricsCache()
	f := &fixture{
		store:    store,
		cache:    cache,
		metrics:  NewMetricsService(store, cache),
		veteran:  uuid.NewString(),
		pitch:    uuid.NewString(),
		referral: uuid.NewString(),
	}
	store.addVeteran(models.VeteranMirror{ID: uuid.NewString(), ExternalUserID: f.veteran, DisplayName: "Sam Reyes", AccountStatus: "active"})
	store.addPitch(models.Pitch{ID: f.pitch, VeteranID: f.veteran, Title: "Logistics NCO", Slug: "logistics-nco"})
	store.addReferral(models.Referral{
		ID:         f.referral,
		SupporterID: strPtr(uuid.NewString()),
		PitchID:    f.pitch,
		SourceType: models.SourceSupporter,
		Timestamps: models.Timestamps{CreatedAt: time.Now().UTC().Add(-time.Hour)},
	})
	return f
}

// newReferral adds another referral on the fixture pitch and returns its id.
func (f *fixture) newReferral() string {
	id := uuid.NewString()
	f.store.addReferral(models.Referral{
		ID:          id,
		SupporterID: strPtr(uuid.NewString()),
		PitchID:     f.pitch,
		SourceType:  models.SourceSupporter,
		Timestamps:  models.Timestamps{CreatedAt: time.Now().UTC().Add(-time.Hour)},
	})
	return id
}

func (f *fixture) seedEvent(referralID, eventType, platform string, occurredAt time.Time) {
	f.store.addEvent(models.ReferralEvent{
		ID:         uuid.NewString(),
		ReferralID: referralID,
		EventType:  eventType,
		Platform:   platform,
		OccurredAt: occurredAt,
	})
}

func TestTrendlineCompleteness(t *testing.T) {
	for _, window := range []int{30, 90} {
		t.Run(fmt.Sprintf("window_%d", window), func(t *testing.T) {
			f := newFixture(t)
			now := time.Now().UTC()

			// scattered events, including same-day repeats
			f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformWhatsApp, now.Add(-1*time.Hour))
			f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformWhatsApp, now.Add(-2*time.Hour))
			f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformWhatsApp, now.AddDate(0, 0, -3))
			f.seedEvent(f.referral, models.EventCallClicked, models.PlatformWhatsApp, now.AddDate(0, 0, -5))
			f.seedEvent(f.referral, models.EventEmailClicked, models.PlatformEmail, now.AddDate(0, 0, -7))
			// untracked type must not leak into any series
			f.seedEvent(f.referral, models.EventLinkOpened, models.PlatformWhatsApp, now.Add(-30*time.Minute))

			result, err := f.metrics.Trendline(window, f.veteran)
			require.NoError(t, err)
			require.Len(t, result.Series, 3)

			wantSums := map[string]int64{
				SeriesPitchViewed:     3,
				SeriesRecruiterCalled: 1,
				SeriesRecruiterEmails: 1,
			}
			for name, points := range result.Series {
				require.Len(t, points, window, "series %s must have exactly %d points", name, window)
				var sum int64
				prev := ""
				for _, p := range points {
					parsed, err := time.Parse("2006-01-02", p.Date)
					require.NoError(t, err, "date %q must be YYYY-MM-DD", p.Date)
					if prev != "" {
						prevDay, _ := time.Parse("2006-01-02", prev)
						assert.Equal(t, prevDay.AddDate(0, 0, 1), parsed, "dates must be contiguous ascending")
					}
					prev = p.Date
					sum += p.Value
				}
				assert.Equal(t, wantSums[name], sum, "series %s sum must equal raw event count", name)
			}
		})
	}
}

func TestTrendlineZeroFill(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -29)

	// one view on each of exactly 5 distinct days
	for _, day := range []int{0, 4, 11, 17, 29} {
		f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformCopy, start.AddDate(0, 0, day).Add(12*time.Hour))
	}

	result, err := f.metrics.Trendline(30, f.veteran)
	require.NoError(t, err)

	points := result.Series[SeriesPitchViewed]
	require.Len(t, points, 30)
	nonZero, zero := 0, 0
	for _, p := range points {
		if p.Value == 0 {
			zero++
		} else {
			assert.Equal(t, int64(1), p.Value)
			nonZero++
		}
	}
	assert.Equal(t, 5, nonZero)
	assert.Equal(t, 25, zero)
}

func TestCohortDivideByZeroGuard(t *testing.T) {
	f := newFixture(t)
	// opens but no views: both ratios must clamp to 0.0
	f.seedEvent(f.referral, models.EventLinkOpened, models.PlatformLinkedIn, time.Now().UTC().Add(-time.Hour))

	rows, err := f.metrics.Cohorts(30, f.veteran)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, models.PlatformLinkedIn, row.Source)
	assert.Equal(t, int64(1), row.Opens)
	assert.Equal(t, int64(0), row.Views)
	assert.Equal(t, 0.0, row.ConvViewToCall)
	assert.Equal(t, 0.0, row.ConvViewToEmail)
	assert.False(t, math.IsNaN(row.ConvViewToCall))
}

func TestCohortAggregation(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	refs := []string{f.referral, f.newReferral(), f.newReferral()}
	for _, id := range refs {
		f.seedEvent(id, models.EventPitchViewed, models.PlatformWhatsApp, now.Add(-2*time.Hour))
	}
	f.seedEvent(refs[0], models.EventCallClicked, models.PlatformWhatsApp, now.Add(-time.Hour))
	f.seedEvent(refs[1], models.EventCallClicked, models.PlatformWhatsApp, now.Add(-time.Hour))

	rows, err := f.metrics.Cohorts(30, f.veteran)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, models.PlatformWhatsApp, row.Source)
	assert.Equal(t, int64(3), row.Referrals)
	assert.Equal(t, int64(3), row.Views)
	assert.Equal(t, int64(2), row.Calls)
	assert.InDelta(t, 0.667, row.ConvViewToCall, 0.001)
}

func TestCohortSourceNormalization(t *testing.T) {
	f := newFixture(t)
	// telegram is a canonical platform but not a cohort source — collapses to other
	f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformTelegram, time.Now().UTC().Add(-time.Hour))

	rows, err := f.metrics.Cohorts(30, f.veteran)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PlatformOther, rows[0].Source)
}

func TestCohortOmitsSourcesWithoutReferrals(t *testing.T) {
	f := newFixture(t)
	rows, err := f.metrics.Cohorts(30, uuid.NewString()) // veteran with nothing
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAvgTimeToFirstContact(t *testing.T) {
	f := newFixture(t)
	base := time.Now().UTC().Add(-48 * time.Hour)

	delays := []time.Duration{6 * time.Hour, 0, 12 * time.Hour}
	refs := []string{f.referral, f.newReferral(), f.newReferral()}
	for i, id := range refs {
		f.seedEvent(id, models.EventPitchViewed, models.PlatformCopy, base)
		f.seedEvent(id, models.EventCallClicked, models.PlatformCopy, base.Add(delays[i]))
	}
	// view-only referral: excluded from numerator and denominator
	f.seedEvent(f.newReferral(), models.EventPitchViewed, models.PlatformCopy, base)

	result, err := f.metrics.AvgTimeToFirstContact(30, f.veteran)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Samples)
	assert.InDelta(t, 6.0, result.Hours, 0.001)
}

func TestAvgTimeViewOnlyYieldsZeroes(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformCopy, time.Now().UTC().Add(-time.Hour))

	result, err := f.metrics.AvgTimeToFirstContact(30, f.veteran)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Samples)
	assert.Equal(t, 0.0, result.Hours)
}

func TestAvgTimeEarliestContactTieBreak(t *testing.T) {
	f := newFixture(t)
	base := time.Now().UTC().Add(-24 * time.Hour)

	f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformCopy, base)
	f.seedEvent(f.referral, models.EventEmailClicked, models.PlatformCopy, base.Add(6*time.Hour))
	f.seedEvent(f.referral, models.EventCallClicked, models.PlatformCopy, base.Add(2*time.Hour))

	result, err := f.metrics.AvgTimeToFirstContact(30, f.veteran)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Samples)
	assert.InDelta(t, 2.0, result.Hours, 0.001, "earliest of either contact type wins")
}

func TestVeteranIsolation(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	// second veteran with their own pitch, referral, and events
	otherVet := uuid.NewString()
	otherPitch := uuid.NewString()
	otherRef := uuid.NewString()
	f.store.addPitch(models.Pitch{ID: otherPitch, VeteranID: otherVet, Title: "Pilot", Slug: "pilot"})
	f.store.addReferral(models.Referral{
		ID: otherRef, SupporterID: strPtr(uuid.NewString()), PitchID: otherPitch,
		SourceType: models.SourceSupporter,
		Timestamps: models.Timestamps{CreatedAt: now.Add(-time.Hour)},
	})
	f.seedEvent(otherRef, models.EventPitchViewed, models.PlatformLinkedIn, now.Add(-time.Hour))
	f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformWhatsApp, now.Add(-time.Hour))

	result, err := f.metrics.Trendline(30, f.veteran)
	require.NoError(t, err)
	var sum int64
	for _, p := range result.Series[SeriesPitchViewed] {
		sum += p.Value
	}
	assert.Equal(t, int64(1), sum, "veteran A's trendline must not count veteran B's events")

	rows, err := f.metrics.Cohorts(30, f.veteran)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PlatformWhatsApp, rows[0].Source)
}

func TestMetricsCachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformCopy, now.Add(-time.Hour))

	first, err := f.metrics.Trendline(30, f.veteran)
	require.NoError(t, err)

	// a write that bypasses the recorder does not bust the cache
	f.seedEvent(f.referral, models.EventPitchViewed, models.PlatformCopy, now.Add(-30*time.Minute))
	second, err := f.metrics.Trendline(30, f.veteran)
	require.NoError(t, err)
	assert.Same(t, first, second, "second read within TTL must be served from cache")

	f.cache.InvalidateVeteran(f.veteran)
	third, err := f.metrics.Trendline(30, f.veteran)
	require.NoError(t, err)
	var sum int64
	for _, p := range third.Series[SeriesPitchViewed] {
		sum += p.Value
	}
	assert.Equal(t, int64(2), sum, "read after invalidation must recompute")
}

func TestInvalidWindowRejected(t *testing.T) {
	f := newFixture(t)
	for _, window := range []int{0, 7, 45, 365} {
		_, err := f.metrics.Trendline(window, f.veteran)
		assert.ErrorIs(t, err, ErrInvalidWindow)
		_, err = f.metrics.Cohorts(window, f.veteran)
		assert.ErrorIs(t, err, ErrInvalidWindow)
		_, err = f.metrics.AvgTimeToFirstContact(window, f.veteran)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	}
}
