package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"crashcore/internal/money"
	"crashcore/internal/store"
)

type settingsView struct {
	AutoCashoutEnabled   bool    `json:"autoCashoutEnabled"`
	AutoCashoutThreshold float64 `json:"autoCashoutThreshold"`
	SoundEnabled         bool    `json:"soundEnabled"`
	DailyLimitsEnabled   bool    `json:"dailyLimitsEnabled"`
	MaxDailyWager        float64 `json:"maxDailyWager"`
	MaxDailyLoss         float64 `json:"maxDailyLoss"`
	MaxGamesPerDay       int     `json:"maxGamesPerDay"`
}

func toSettingsView(p *store.PlayerSettings) settingsView {
	return settingsView{
		AutoCashoutEnabled:   p.AutoCashoutEnabled,
		AutoCashoutThreshold: p.AutoCashoutThreshold.Float64(),
		SoundEnabled:         p.SoundEnabled,
		DailyLimitsEnabled:   p.DailyLimitsEnabled,
		MaxDailyWager:        p.MaxDailyWager.Float64(),
		MaxDailyLoss:         p.MaxDailyLoss.Float64(),
		MaxGamesPerDay:       p.MaxGamesPerDay,
	}
}

// player.getSettings
func (s *Server) playerGetSettingsHandler(c *fiber.Ctx) error {
	settings, err := s.gw.GetPlayerSettings(c.Context(), claimsFrom(c).UserID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(toSettingsView(settings))
}

// player.updateSettings: a narrow allowlist partial update (spec §4.7).
func (s *Server) playerUpdateSettingsHandler(c *fiber.Ctx) error {
	var body struct {
		AutoCashoutEnabled   *bool    `json:"autoCashoutEnabled"`
		AutoCashoutThreshold *float64 `json:"autoCashoutThreshold"`
		SoundEnabled         *bool    `json:"soundEnabled"`
		DailyLimitsEnabled   *bool    `json:"dailyLimitsEnabled"`
		MaxDailyWager        *float64 `json:"maxDailyWager"`
		MaxDailyLoss         *float64 `json:"maxDailyLoss"`
		MaxGamesPerDay       *int     `json:"maxGamesPerDay"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	var fields store.SettingsFields
	fields.AutoCashoutEnabled = body.AutoCashoutEnabled
	fields.SoundEnabled = body.SoundEnabled
	fields.DailyLimitsEnabled = body.DailyLimitsEnabled
	fields.MaxGamesPerDay = body.MaxGamesPerDay
	if body.AutoCashoutThreshold != nil {
		m := money.MultiplierFromFloat(*body.AutoCashoutThreshold)
		fields.AutoCashoutThreshold = &m
	}
	if body.MaxDailyWager != nil {
		a := money.FromFloat(*body.MaxDailyWager)
		fields.MaxDailyWager = &a
	}
	if body.MaxDailyLoss != nil {
		a := money.FromFloat(*body.MaxDailyLoss)
		fields.MaxDailyLoss = &a
	}

	settings, err := s.gw.UpsertPlayerSettings(c.Context(), claimsFrom(c).UserID, fields)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(toSettingsView(settings))
}

// fairness.recentRounds: each round's server seed is withheld until the
// reveal grace period elapses (spec §4.2's GetRecentFairRounds contract).
func (s *Server) fairnessRecentRoundsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rounds, err := s.gw.GetRecentFairRounds(c.Context(), limit, int64(s.cfg.SeedReveal.Grace.Seconds()))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(rounds)
}

// leaderboard
func (s *Server) leaderboardHandler(c *fiber.Ctx) error {
	sortKey := store.LeaderboardSortKey(c.Query("sort", string(store.SortByBalance)))
	minGames := c.QueryInt("minGames", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.gw.Leaderboard(c.Context(), sortKey, minGames, limit)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(entries)
}
