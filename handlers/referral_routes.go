// handlers/referral_routes.go
package handlers

import (
	"errors"

	"veteran-pitch-system/middleware"
	"veteran-pitch-system/models"
	"veteran-pitch-system/services"
	"veteran-pitch-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupReferralRoutes(app *fiber.App, referralService *services.ReferralService, recorder *services.EventRecorder, analyticsService *services.AnalyticsService) {
	// 🔓 Public routes — no user context, but still require Gateway auth

	// Event ingestion. 204 on success AND on a debounced duplicate — callers
	// cannot tell the difference, by contract.
	app.Post("/track", func(c *fiber.Ctx) error {
		var req services.TrackEventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.ReferralID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referral_id is required"})
		}
		if !models.EventType(req.EventType).IsValid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown event_type"})
		}
		if req.UserAgent == "" {
			req.UserAgent = c.Get("User-Agent")
		}
		if req.IPHash == "" {
			req.IPHash = utils.HashIP(c.IP())
		}

		if err := recorder.TrackReferralEvent(req); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown referral_id"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to record event",
				"cause": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/referrals/:id/attribution", func(c *fiber.Ctx) error {
		view, err := analyticsService.AttributionForReferral(c.Params("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "referral not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve attribution",
				"cause": err.Error(),
			})
		}
		return c.JSON(view)
	})

	// 🔐 Secured routes — require user context
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/s/referrals", func(c *fiber.Ctx) error {
		type Req struct {
			SupporterID      *string `json:"supporter_id,omitempty"`
			PitchID          string  `json:"pitch_id"`
			ParentReferralID *string `json:"parent_referral_id,omitempty"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.PitchID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "pitch_id is required"})
		}
		// Default the supporter to the authenticated user; only admins may
		// mint links on someone else's behalf.
		if req.SupporterID == nil {
			if userID, _ := c.Locals("user_id").(string); userID != "" {
				req.SupporterID = &userID
			}
		} else if userID, _ := c.Locals("user_id").(string); *req.SupporterID != userID && !middleware.HasRole(c, "admin") {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot create referrals for another supporter"})
		}

		referral, err := referralService.CreateOrGetReferral(req.SupporterID, req.PitchID, req.ParentReferralID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown pitch_id"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create referral",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"referral_id": referral.ID,
			"share_link":  referral.ShareLink,
			"source_type": referral.SourceType,
		})
	})

	secured.Get("/s/supporters/:id/rollup", func(c *fiber.Ctx) error {
		supporterID := c.Params("id")
		userID, _ := c.Locals("user_id").(string)
		if supporterID != userID && !middleware.HasRole(c, "recruiter") && !middleware.HasRole(c, "admin") {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot view another supporter's rollup"})
		}

		rollup, err := analyticsService.RollupForSupporter(supporterID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute supporter rollup",
				"cause": err.Error(),
			})
		}
		return c.JSON(rollup)
	})
}
