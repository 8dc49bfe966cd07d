// services/metrics_service.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"veteran-pitch-system/models"
)

// ErrInvalidWindow is returned for any window other than 30 or 90 days.
var ErrInvalidWindow = errors.New("window must be 30 or 90 days")

// Trendline series keys, one per tracked event category.
const (
	SeriesPitchViewed     = "pitch_viewed"
	SeriesRecruiterCalled = "recruiter_called"
	SeriesRecruiterEmails = "recruiter_emailed"
)

// TrendPoint is one day of a trendline series.
type TrendPoint struct {
	Date  string `json:"date"` // YYYY-MM-DD (UTC)
	Value int64  `json:"value"`
}

// TrendlineResult holds exactly `window` daily points per series, zero-filled,
// ascending by date.
type TrendlineResult struct {
	Window int                     `json:"window"`
	Series map[string][]TrendPoint `json:"series"`
}

// CohortRow is one traffic source's aggregate. Sources with zero referrals in
// the window are omitted entirely, never emitted as zero rows.
type CohortRow struct {
	Source          string  `json:"source"`
	Referrals       int64   `json:"referrals"`
	Opens           int64   `json:"opens"`
	Views           int64   `json:"views"`
	Calls           int64   `json:"calls"`
	Emails          int64   `json:"emails"`
	ConvViewToCall  float64 `json:"conv_view_to_call"`
	ConvViewToEmail float64 `json:"conv_view_to_email"`
}

// AvgTimeResult is the mean elapsed time from first pitch view to first
// recruiter contact, across referrals that have both. Zeroes when none do.
type AvgTimeResult struct {
	Hours   float64 `json:"hours"`
	Samples int64   `json:"samples"`
}

// MetricsService computes the three dashboard read models. Aggregation runs
// in-process over rows fetched through ReferralStore, so results are a pure
// function of stored events — stable and restartable. Outputs are memoized in
// the injected cache.
type MetricsService struct {
	Store ReferralStore
	Cache *MetricsCache
}

func NewMetricsService(store ReferralStore, cache *MetricsCache) *MetricsService {
	return &MetricsService{Store: store, Cache: cache}
}

func validWindow(window int) bool {
	return window == 30 || window == 90
}

// windowStart returns UTC midnight of the first day of the trailing window,
// so the series covers exactly `window` calendar days ending today.
func windowStart(now time.Time, window int) time.Time {
	today := now.UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -(window - 1))
}

// Trendline returns the per-day event counts for the three tracked categories.
func (s *MetricsService) Trendline(window int, veteranID string) (*TrendlineResult, error) {
	if !validWindow(window) {
		return nil, ErrInvalidWindow
	}
	if cached, ok := s.Cache.Get(MetricTrendline, window, veteranID); ok {
		return cached.(*TrendlineResult), nil
	}

	now := time.Now()
	events, err := s.Store.EventsSince(veteranID, windowStart(now, window))
	if err != nil {
		return nil, fmt.Errorf("failed to load events for trendline: %w", err)
	}

	result := &TrendlineResult{
		Window: window,
		Series: buildTrendline(events, window, now),
	}
	s.Cache.Set(MetricTrendline, window, veteranID, result)
	return result, nil
}

// buildTrendline buckets events by UTC calendar day over the trailing window.
// Every series has exactly `window` points in ascending date order; days with
// no events stay at zero, and per-series sums equal the raw event counts.
func buildTrendline(events []models.ReferralEvent, window int, now time.Time) map[string][]TrendPoint {
	start := windowStart(now, window)

	categories := map[string]string{
		models.EventPitchViewed:  SeriesPitchViewed,
		models.EventCallClicked:  SeriesRecruiterCalled,
		models.EventEmailClicked: SeriesRecruiterEmails,
	}

	counts := map[string]map[string]int64{
		SeriesPitchViewed:     {},
		SeriesRecruiterCalled: {},
		SeriesRecruiterEmails: {},
	}
	end := start.AddDate(0, 0, window) // exclusive
	for _, e := range events {
		series, tracked := categories[e.EventType]
		if !tracked {
			continue
		}
		occurred := e.OccurredAt.UTC()
		if occurred.Before(start) || !occurred.Before(end) {
			continue
		}
		counts[series][occurred.Format("2006-01-02")]++
	}

	result := make(map[string][]TrendPoint, len(counts))
	for series, byDay := range counts {
		points := make([]TrendPoint, 0, window)
		for day := 0; day < window; day++ {
			date := start.AddDate(0, 0, day).Format("2006-01-02")
			points = append(points, TrendPoint{Date: date, Value: byDay[date]})
		}
		result[series] = points
	}
	return result
}

// Cohorts groups the window's referrals by normalized traffic source and
// reports per-source counts and view→contact conversion rates.
func (s *MetricsService) Cohorts(window int, veteranID string) ([]CohortRow, error) {
	if !validWindow(window) {
		return nil, ErrInvalidWindow
	}
	if cached, ok := s.Cache.Get(MetricCohorts, window, veteranID); ok {
		return cached.([]CohortRow), nil
	}

	start := windowStart(time.Now(), window)
	referrals, err := s.Store.ReferralsSince(veteranID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrals for cohorts: %w", err)
	}
	events, err := s.Store.EventsSince(veteranID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for cohorts: %w", err)
	}

	rows := buildCohorts(referrals, events)
	s.Cache.Set(MetricCohorts, window, veteranID, rows)
	return rows, nil
}

// buildCohorts assigns each referral to the normalized platform of its
// earliest event ("other" when it has no events yet) and tallies that
// referral's events into the source row. Conversion ratios clamp to 0.0 when
// there are no views — never a division by zero, never a non-finite value.
func buildCohorts(referrals []models.Referral, events []models.ReferralEvent) []CohortRow {
	eventsByReferral := make(map[string][]models.ReferralEvent)
	for _, e := range events {
		eventsByReferral[e.ReferralID] = append(eventsByReferral[e.ReferralID], e)
	}

	rows := make(map[string]*CohortRow)
	for _, ref := range referrals {
		refEvents := eventsByReferral[ref.ID]
		source := models.PlatformOther
		if len(refEvents) > 0 {
			earliest := refEvents[0]
			for _, e := range refEvents[1:] {
				if e.OccurredAt.Before(earliest.OccurredAt) {
					earliest = e
				}
			}
			source = models.NormalizeSource(earliest.Platform)
		}

		row, ok := rows[source]
		if !ok {
			row = &CohortRow{Source: source}
			rows[source] = row
		}
		row.Referrals++
		for _, e := range refEvents {
			switch e.EventType {
			case models.EventLinkOpened:
				row.Opens++
			case models.EventPitchViewed:
				row.Views++
			case models.EventCallClicked:
				row.Calls++
			case models.EventEmailClicked:
				row.Emails++
			}
		}
	}

	result := make([]CohortRow, 0, len(rows))
	for _, row := range rows {
		if row.Views > 0 {
			row.ConvViewToCall = float64(row.Calls) / float64(row.Views)
			row.ConvViewToEmail = float64(row.Emails) / float64(row.Views)
		}
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Source < result[j].Source })
	return result
}

// AvgTimeToFirstContact returns the mean hours from a referral's first pitch
// view to its first recruiter contact (call or email, whichever is earliest).
func (s *MetricsService) AvgTimeToFirstContact(window int, veteranID string) (*AvgTimeResult, error) {
	if !validWindow(window) {
		return nil, ErrInvalidWindow
	}
	if cached, ok := s.Cache.Get(MetricAvgTime, window, veteranID); ok {
		return cached.(*AvgTimeResult), nil
	}

	events, err := s.Store.EventsSince(veteranID, windowStart(time.Now(), window))
	if err != nil {
		return nil, fmt.Errorf("failed to load events for avg-time: %w", err)
	}

	result := averageTimeToFirstContact(events)
	s.Cache.Set(MetricAvgTime, window, veteranID, result)
	return result, nil
}

// averageTimeToFirstContact: a referral qualifies when it has a PITCH_VIEWED
// event and at least one CALL_CLICKED or EMAIL_CLICKED at or after the
// earliest view. View-only referrals are excluded from both numerator and
// denominator.
func averageTimeToFirstContact(events []models.ReferralEvent) *AvgTimeResult {
	type timing struct {
		firstView    time.Time
		firstContact time.Time
		viewed       bool
		contacted    bool
	}

	byReferral := make(map[string]*timing)
	for _, e := range events {
		t, ok := byReferral[e.ReferralID]
		if !ok {
			t = &timing{}
			byReferral[e.ReferralID] = t
		}
		switch e.EventType {
		case models.EventPitchViewed:
			if !t.viewed || e.OccurredAt.Before(t.firstView) {
				t.firstView = e.OccurredAt
				t.viewed = true
			}
		}
	}
	// Second pass: contacts only count at or after the referral's first view,
	// and the earliest of either contact type wins.
	for _, e := range events {
		if e.EventType != models.EventCallClicked && e.EventType != models.EventEmailClicked {
			continue
		}
		t := byReferral[e.ReferralID]
		if t == nil || !t.viewed || e.OccurredAt.Before(t.firstView) {
			continue
		}
		if !t.contacted || e.OccurredAt.Before(t.firstContact) {
			t.firstContact = e.OccurredAt
			t.contacted = true
		}
	}

	var totalHours float64
	var samples int64
	for _, t := range byReferral {
		if t.viewed && t.contacted {
			totalHours += t.firstContact.Sub(t.firstView).Hours()
			samples++
		}
	}
	if samples == 0 {
		return &AvgTimeResult{}
	}
	return &AvgTimeResult{Hours: totalHours / float64(samples), Samples: samples}
}
