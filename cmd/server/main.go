// Command server is the crashcore process entry point: it wires the
// Persistence Gateway, Fairness Oracle, Credential Service, Round Engine,
// Wager Arbiter, Broadcast Fabric and Request Front-End together and starts
// listening. Grounded on the teacher's cmd/api/main.go (NewServer/Listen)
// shape, generalized to start the Engine's goroutine before the HTTP
// listener comes up.
package main

import (
	"log"

	"crashcore/internal/auth"
	"crashcore/internal/cache"
	"crashcore/internal/config"
	"crashcore/internal/database"
	"crashcore/internal/fairness"
	"crashcore/internal/game"
	"crashcore/internal/httpapi"
	"crashcore/internal/logging"
	"crashcore/internal/store"
)

func main() {
	cfg := config.Load()

	logLevel := "info"
	if cfg.Environment == "development" {
		logLevel = "debug"
	}
	logger := logging.New(logging.Config{Level: logLevel, Format: "text"})

	db := database.New()
	cacheSvc := cache.New()

	gw := store.NewPostgres(db.Pool())
	oracle := fairness.New(cfg.Game.HouseEdge)
	authSvc := auth.New(gw, cfg.Token, logger)

	hub := game.NewHub(10, 20, logger)
	engine := game.NewEngine(cfg.Game, oracle, gw, cacheSvc, hub, logger)
	arb := game.NewArbiter(engine, gw, cfg.Game, hub, logger)
	engine.SetArbiter(arb)
	hub.SetEngine(engine)

	go engine.Run()
	defer engine.Close()
	defer authSvc.Close()

	server := httpapi.New(cfg, db, cacheSvc, gw, oracle, authSvc, engine, arb, hub, logger)

	logger.WithField("addr", cfg.ListenAddr).Info("crashcore: listening")
	if err := server.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("crashcore: listen failed: %v", err)
	}
}
