// handlers/metrics_routes.go
package handlers

import (
	"errors"
	"strconv"

	"veteran-pitch-system/middleware"
	"veteran-pitch-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// parseMetricsQuery validates the shared query parameters of the three
// metrics endpoints. Window must be 30 or 90; veteranId must be a UUID when
// present, and must exist in the synced veteran mirror. A veteran without
// recruiter/admin roles is always scoped to their own id, whatever they
// asked for.
func parseMetricsQuery(c *fiber.Ctx, store services.ReferralStore) (window int, veteranID string, ok bool) {
	window, err := strconv.Atoi(c.Query("window", "30"))
	if err != nil || (window != 30 && window != 90) {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "window must be 30 or 90"})
		return 0, "", false
	}

	veteranID = c.Query("veteranId")
	if veteranID != "" {
		if _, err := uuid.Parse(veteranID); err != nil {
			c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "veteranId must be a valid UUID"})
			return 0, "", false
		}
	}

	userID, _ := c.Locals("user_id").(string)
	if !middleware.HasRole(c, "recruiter") && !middleware.HasRole(c, "admin") {
		if veteranID != "" && veteranID != userID {
			c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot view another veteran's metrics"})
			return 0, "", false
		}
		veteranID = userID
	}

	// An explicitly requested veteran must exist in the mirror — a mistyped
	// id gets a 404, not an all-zero series. Self-scoped queries skip the
	// check: the mirror can lag a fresh signup.
	if requested := c.Query("veteranId"); requested != "" && requested != userID {
		if _, err := store.GetVeteranMirror(requested); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown veteran"})
			} else {
				c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to resolve veteran",
					"cause": err.Error(),
				})
			}
			return 0, "", false
		}
	}
	return window, veteranID, true
}

func SetupMetricsRoutes(app *fiber.App, metricsService *services.MetricsService) {
	// 🔐 All metrics reads require user context
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/s/metrics/trendline", func(c *fiber.Ctx) error {
		window, veteranID, ok := parseMetricsQuery(c, metricsService.Store)
		if !ok {
			return nil
		}
		result, err := metricsService.Trendline(window, veteranID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute trendline",
				"cause": err.Error(),
			})
		}
		return c.JSON(result)
	})

	secured.Get("/s/metrics/cohorts", func(c *fiber.Ctx) error {
		window, veteranID, ok := parseMetricsQuery(c, metricsService.Store)
		if !ok {
			return nil
		}
		rows, err := metricsService.Cohorts(window, veteranID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute cohorts",
				"cause": err.Error(),
			})
		}
		// Empty is a legitimate state, not an error — dashboards render it
		// as a zero state.
		return c.JSON(fiber.Map{"window": window, "cohorts": rows})
	})

	secured.Get("/s/metrics/avg-time", func(c *fiber.Ctx) error {
		window, veteranID, ok := parseMetricsQuery(c, metricsService.Store)
		if !ok {
			return nil
		}
		result, err := metricsService.AvgTimeToFirstContact(window, veteranID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute avg time to first contact",
				"cause": err.Error(),
			})
		}
		return c.JSON(result)
	})
}
