// handlers/engagement_routes.go
package handlers

import (
	"strconv"

	"veteran-pitch-system/middleware"
	"veteran-pitch-system/models"
	"veteran-pitch-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEngagementRoutes(app *fiber.App, engagementService *services.EngagementService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/s/endorsements", func(c *fiber.Ctx) error {
		var e models.Endorsement
		if err := c.BodyParser(&e); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if e.VeteranID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "veteran_id is required"})
		}
		if e.SupporterID == "" {
			e.SupporterID, _ = c.Locals("user_id").(string)
		}

		if err := engagementService.CreateEndorsement(&e); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create endorsement",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(e)
	})

	secured.Post("/s/resume-requests", func(c *fiber.Ctx) error {
		if !middleware.HasRole(c, "recruiter") && !middleware.HasRole(c, "admin") {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only recruiters can request resumes"})
		}
		var r models.ResumeRequest
		if err := c.BodyParser(&r); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if r.VeteranID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "veteran_id is required"})
		}
		if r.RecruiterID == "" {
			r.RecruiterID, _ = c.Locals("user_id").(string)
		}

		if err := engagementService.CreateResumeRequest(&r); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create resume request",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(r)
	})

	secured.Get("/s/activity", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		feed, err := engagementService.ActivityFeed(userID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load activity",
				"cause": err.Error(),
			})
		}
		return c.JSON(feed)
	})
}
