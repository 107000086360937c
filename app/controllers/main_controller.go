package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chouha-community/gatekeeper/internal/pkg/env"
	"github.com/chouha-community/gatekeeper/internal/pkg/statistics"
)

// HandleIndex renders the landing page with the verification entry point.
func HandleIndex(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	return c.Render("index", fiber.Map{
		"Title":         "Chouha Community Verification",
		"IsDev":         env.IsDev(),
		"TotalVerified": stats.TotalVerified,
		"TodayVerified": stats.TodayVerified,
	})
}
