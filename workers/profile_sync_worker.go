// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"veteran-pitch-system/models"
	"veteran-pitch-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredVeteranProfile matches the JSON the auth service returns for one
// changed veteran profile.
type MirroredVeteranProfile struct {
	ID                string    `json:"id"`
	ExternalID        string    `json:"external_id"`
	DisplayName       string    `json:"display_name"`
	Branch            string    `json:"branch,omitempty"`
	Rank              string    `json:"rank,omitempty"`
	Location          *string   `json:"location,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetProfileChangesResponse is the top-level structure of the auth service response.
type GetProfileChangesResponse struct {
	Profiles []MirroredVeteranProfile `json:"profiles"`
}

// VeteranProfileSyncWorker polls the auth service for changed veteran
// profiles and mirrors them into veteran_mirrors, so dashboards can join
// display names and the metrics API can reject unknown veterans without a
// cross-service call.
type VeteranProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/veterans"
	serviceToken string
	httpClient   *http.Client
}

func NewVeteranProfileSyncWorker(db *gorm.DB, authServiceBaseURL, endpointPath, serviceToken string) *VeteranProfileSyncWorker {
	return &VeteranProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      authServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *VeteranProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Veteran Profile Sync Worker (auth-service → veteran_mirrors)…")
	go w.run(ctx)
}

func (w *VeteranProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Veteran Profile Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt in the local mirror table.
func (w *VeteranProfileSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM veteran_mirrors WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches profile changes since the given time and upserts them.
func (w *VeteranProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid auth service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to auth service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[SYNC] ❌ Auth service returned %d for %s: %s", resp.StatusCode, finalURL, string(body))
		return fmt.Errorf("auth service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode auth service response: %w", err)
	}

	if len(response.Profiles) == 0 {
		return nil
	}

	log.Printf("[SYNC] 📥 Processing %d veteran profile(s) from auth service…", len(response.Profiles))

	var upsertCount, errorCount int
	for _, remote := range response.Profiles {
		mirror := models.VeteranMirror{
			ID:                remote.ID,
			ExternalUserID:    remote.ExternalID,
			DisplayName:       remote.DisplayName,
			Branch:            remote.Branch,
			Rank:              remote.Rank,
			Location:          remote.Location,
			ProfilePictureURL: remote.ProfilePictureURL,
			AccountStatus:     remote.AccountStatus,
			CreatedAt:         remote.CreatedAt,
			UpdatedAt:         remote.UpdatedAt,
		}

		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "branch", "rank", "location",
				"profile_picture_url", "account_status", "created_at", "updated_at",
			}),
		}).Create(&mirror).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert veteran_mirror (external_id=%q): %v", remote.ExternalID, err)
		} else {
			upsertCount++
		}
	}

	log.Printf("[SYNC] ✅ Synced %d veteran profile(s) (%d upserted, %d errors)",
		len(response.Profiles), upsertCount, errorCount)
	return nil
}
