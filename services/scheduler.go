// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartMetricsJobs runs the periodic maintenance jobs: expired-cache eviction
// every minute, and a nightly reconciliation of the shared-pitch click
// counters against the raw event log (the dedupe race can let counters drift).
func StartMetricsJobs(cache *MetricsCache, db *gorm.DB) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: evict expired cache entries
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if removed := cache.SweepExpired(); removed > 0 {
				log.Printf("🧹 [Scheduler] Swept %d expired metric entries", removed)
			}
		}),
	)

	// Nightly at 03:00: repair click-counter drift from raw LINK_OPENED counts
	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			res := db.Exec(`
				UPDATE shared_pitch_clicks spc
				SET clicks = sub.cnt, updated_at = NOW()
				FROM (
					SELECT r.supporter_id, r.pitch_id, COUNT(*) AS cnt
					FROM referral_events e
					INNER JOIN referrals r ON r.id = e.referral_id
					WHERE e.event_type = 'LINK_OPENED' AND r.supporter_id IS NOT NULL
					GROUP BY r.supporter_id, r.pitch_id
				) sub
				WHERE spc.supporter_id = sub.supporter_id
				  AND spc.pitch_id = sub.pitch_id
				  AND spc.clicks <> sub.cnt
			`)
			if res.Error != nil {
				log.Printf("[Scheduler] Click reconciliation failed: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("✅ Reconciled %d click counter(s) against event log", res.RowsAffected)
			}
		}),
	)
}
