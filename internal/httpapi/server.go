// Package httpapi is the Request Front-End (spec §4.7): the request-reply
// surface for authentication, profile/settings, leaderboards, fairness-audit
// queries and administrative operations. It does no game logic of its own,
// only validates and delegates to internal/auth, internal/store and
// internal/game. Grounded on internal/server/routes.go + handlers.go's
// Fiber route-registration idiom, generalized from the teacher's two
// REST+WS routes into the full route table.
package httpapi

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"crashcore/internal/auth"
	"crashcore/internal/cache"
	"crashcore/internal/config"
	"crashcore/internal/database"
	"crashcore/internal/fairness"
	"crashcore/internal/game"
	"crashcore/internal/logging"
	"crashcore/internal/store"
)

// Server wires the Fiber app to the rest of the module.
type Server struct {
	*fiber.App

	cfg    config.Config
	db     database.Service
	cache  cache.Service
	gw     store.Gateway
	oracle *fairness.Oracle
	authSvc *auth.Service
	engine *game.Engine
	arb    *game.Arbiter
	hub    *game.Hub
	log    *logging.Logger
}

// New builds a Server and registers every route of spec §4.7/§6.
func New(cfg config.Config, db database.Service, cache cache.Service, gw store.Gateway, oracle *fairness.Oracle, authSvc *auth.Service, engine *game.Engine, arb *game.Arbiter, hub *game.Hub, log *logging.Logger) *Server {
	s := &Server{
		App: fiber.New(fiber.Config{
			ServerHeader: "crashcore",
			AppName:      "crashcore",
		}),
		cfg:     cfg,
		db:      db,
		cache:   cache,
		gw:      gw,
		oracle:  oracle,
		authSvc: authSvc,
		engine:  engine,
		arb:     arb,
		hub:     hub,
		log:     log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowedOrigins,
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Get("/health", s.healthHandler)

	api := s.Group("/api/v1")

	tight := limiter.New(limiter.Config{Max: 5, Expiration: 60 * time.Second, KeyGenerator: rateLimitKey})
	loose := limiter.New(limiter.Config{Max: 60, Expiration: 60 * time.Second, KeyGenerator: rateLimitKey})
	settingsWrite := limiter.New(limiter.Config{Max: 12, Expiration: 60 * time.Second, KeyGenerator: rateLimitKey})

	authGroup := api.Group("/auth", tight)
	authGroup.Post("/external", s.authExternalHandler)
	authGroup.Post("/admin/login", s.authAdminLoginHandler)
	authGroup.Post("/admin/register", s.authAdminRegisterHandler)
	authGroup.Post("/refresh", s.authRefreshHandler)
	authGroup.Post("/logout", s.requireAuth, s.authLogoutHandler)
	authGroup.Get("/profile", s.requireAuth, s.authProfileHandler)
	authGroup.Post("/change-password", s.requireAuth, s.authChangePasswordHandler)

	player := api.Group("/player", s.requireAuth)
	player.Get("/settings", loose, s.playerGetSettingsHandler)
	player.Patch("/settings", settingsWrite, s.playerUpdateSettingsHandler)

	api.Get("/fairness/recent-rounds", loose, s.fairnessRecentRoundsHandler)
	api.Get("/leaderboard", loose, s.leaderboardHandler)

	farming := api.Group("/farming", s.requireAuth)
	farming.Get("/status", s.farmingStatusHandler)
	farming.Post("/claim", s.farmingClaimHandler)

	admin := api.Group("/admin", s.requireAuth, s.requireAdmin, tight)
	admin.Get("/stats", s.adminStatsHandler)
	admin.Get("/users", s.adminListUsersHandler)
	admin.Patch("/users/:id", s.adminUpdateUserHandler)
	admin.Get("/rounds", s.adminListRoundsHandler)

	api.Get("/game/state", s.gameStateHandler)
	s.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"status":    "running",
			"connected": s.hub.Count(),
		},
	})
}
