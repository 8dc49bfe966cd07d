package services

import (
	"sync"
	"time"

	"veteran-pitch-system/models"

	"gorm.io/gorm"
)

// memStore is an in-memory ReferralStore with the same read semantics as the
// GORM implementation, so aggregation and recorder logic are tested without a
// database. Not-found reads return gorm.ErrRecordNotFound like the real one.
type memStore struct {
	mu        sync.Mutex
	pitches   map[string]models.Pitch
	referrals map[string]models.Referral
	veterans  map[string]models.VeteranMirror // keyed by external_user_id
	events    []models.ReferralEvent
	activity  []models.ActivityEvent
	clicks    map[string]int64 // supporterID + "|" + pitchID

	failCreateReferral bool // force the next CreateReferral to fail
}

func newMemStore() *memStore {
	return &memStore{
		pitches:   make(map[string]models.Pitch),
		referrals: make(map[string]models.Referral),
		veterans:  make(map[string]models.VeteranMirror),
		clicks:    make(map[string]int64),
	}
}

func (m *memStore) addPitch(p models.Pitch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pitches[p.ID] = p
}

func (m *memStore) addVeteran(v models.VeteranMirror) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.veterans[v.ExternalUserID] = v
}

func (m *memStore) addReferral(r models.Referral) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals[r.ID] = r
}

func (m *memStore) addEvent(e models.ReferralEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// backdateEvents shifts every stored event on a referral back by d, to let
// dedupe tests step outside the debounce window without a clock.
func (m *memStore) backdateEvents(referralID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ReferralID == referralID {
			m.events[i].OccurredAt = m.events[i].OccurredAt.Add(-d)
		}
	}
}

func (m *memStore) eventCount(referralID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.ReferralID == referralID {
			n++
		}
	}
	return n
}

func (m *memStore) CreateReferral(r *models.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateReferral {
		// simulate losing an insert race: the winner's row lands first and
		// the unique index rejects ours
		m.failCreateReferral = false
		winner := *r
		winner.ID = "winner-" + r.ID
		m.referrals[winner.ID] = winner
		return gorm.ErrDuplicatedKey
	}
	for _, existing := range m.referrals {
		if existing.PitchID == r.PitchID && equalID(existing.SupporterID, r.SupporterID) {
			return gorm.ErrDuplicatedKey
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.referrals[r.ID] = *r
	return nil
}

func (m *memStore) CreateEvent(e *models.ReferralEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) CreateActivity(a *models.ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, *a)
	return nil
}

func (m *memStore) IncrementSharedPitchClick(supporterID, pitchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[supporterID+"|"+pitchID]++
	return nil
}

func (m *memStore) GetReferral(id string) (*models.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.referrals[id]; ok {
		return &r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) FindReferral(supporterID *string, pitchID string) (*models.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.referrals {
		if r.PitchID == pitchID && equalID(r.SupporterID, supporterID) {
			found := r
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) GetPitch(id string) (*models.Pitch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pitches[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) GetVeteranMirror(externalUserID string) (*models.VeteranMirror, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.veterans[externalUserID]; ok {
		return &v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) HasRecentEvent(referralID, eventType string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ReferralID == referralID && e.EventType == eventType && !e.OccurredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) EventsSince(veteranID string, since time.Time) ([]models.ReferralEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReferralEvent
	for _, e := range m.events {
		if e.OccurredAt.Before(since) {
			continue
		}
		if veteranID != "" && m.ownerOf(e.ReferralID) != veteranID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) ReferralsSince(veteranID string, since time.Time) ([]models.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Referral
	for _, r := range m.referrals {
		if r.CreatedAt.Before(since) {
			continue
		}
		if veteranID != "" {
			pitch, ok := m.pitches[r.PitchID]
			if !ok || pitch.VeteranID != veteranID {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) ReferralsBySupporter(supporterID string) ([]models.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Referral
	for _, r := range m.referrals {
		if r.SupporterID != nil && *r.SupporterID == supporterID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ChildReferrals(parentID string) ([]models.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Referral
	for _, r := range m.referrals {
		if r.ParentReferralID != nil && *r.ParentReferralID == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) EventsForReferral(referralID string) ([]models.ReferralEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReferralEvent
	for _, e := range m.events {
		if e.ReferralID == referralID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ownerOf resolves a referral to its pitch's veteran; callers hold the lock.
func (m *memStore) ownerOf(referralID string) string {
	r, ok := m.referrals[referralID]
	if !ok {
		return ""
	}
	p, ok := m.pitches[r.PitchID]
	if !ok {
		return ""
	}
	return p.VeteranID
}

func equalID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func strPtr(s string) *string { return &s }
