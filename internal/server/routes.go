package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	gameAPI := api.Group("/game")
	gameAPI.Get("/state", s.getGameStateHandler)
	gameAPI.Post("/bet", s.placeBetHandler)
	gameAPI.Post("/cashout", s.cashoutHandler)
	gameAPI.Put("/auto-cashout", s.setAutoCashoutHandler)
	gameAPI.Get("/feed", s.getFeedHandler)
	gameAPI.Get("/history", s.getHistoryHandler)
	gameAPI.Get("/stats", s.getStatsHandler)
	gameAPI.Get("/stats/replay", s.replayStatsHandler)
	gameAPI.Get("/analytics", s.getAnalyticsHandler)
	gameAPI.Get("/rounds", s.getRoundsHandler)

	api.Post("/fairness/verify", s.verifyRoundHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}
