package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

// farming.status reports the configured cycle/reward so the client can
// render a countdown; the claim itself is gated server-side by
// ClaimFarmingPoints's own cycle check.
func (s *Server) farmingStatusHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cycleSeconds": int64(s.cfg.Farming.Cycle.Seconds()),
		"reward":       s.cfg.Farming.Reward,
	})
}

// farming.claim
func (s *Server) farmingClaimHandler(c *fiber.Ctx) error {
	u, err := s.gw.ClaimFarmingPoints(c.Context(), claimsFrom(c).UserID, int64(s.cfg.Farming.Cycle.Seconds()), s.cfg.Farming.Reward)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(toUserView(u))
}
