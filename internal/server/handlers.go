package server

import (
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"crashround/internal/database"
	"crashround/internal/game"
	"crashround/internal/recorder"
)

const MAX_ROUNDS_PAGE = 200

type betRequest struct {
	Amount float64 `json:"amount"`
}

type autoCashoutRequest struct {
	Target *float64 `json:"target"`
}

type verifyRequest struct {
	ServerSeed string  `json:"server_seed"`
	ClientSeed string  `json:"client_seed"`
	Nonce      int64   `json:"nonce"`
	Multiplier float64 `json:"multiplier"`
	Commitment string  `json:"commitment,omitempty"`
}

// clientMessage is anything a websocket client may send.
type clientMessage struct {
	Type   string   `json:"type"`
	Amount float64  `json:"amount"`
	Target *float64 `json:"target"`
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	disabled := map[string]string{"status": "disabled"}

	dbHealth, cacheHealth := disabled, disabled
	if s.db != nil {
		dbHealth = s.db.Health()
	}
	if s.cache != nil {
		cacheHealth = s.cache.Health()
	}

	snap := s.session.Snapshot()
	health := fiber.Map{
		"database": dbHealth,
		"cache":    cacheHealth,
		"game": fiber.Map{
			"status":            "running",
			"phase":             snap.Phase,
			"round_id":          snap.RoundID,
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.session.Snapshot())
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req betRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp := s.session.PlaceBet(req.Amount)
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}

	return c.JSON(resp)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	resp := s.session.CashOut()
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}

	return c.JSON(resp)
}

// setAutoCashoutHandler arms the auto cash-out target; a null target clears it.
func (s *FiberServer) setAutoCashoutHandler(c *fiber.Ctx) error {
	var req autoCashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp := s.session.SetAutoCashOutTarget(req.Target)
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}

	return c.JSON(resp)
}

func (s *FiberServer) getFeedHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"feed_events": s.session.Feed(),
	})
}

func (s *FiberServer) getHistoryHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"round_history": s.session.History(),
	})
}

func (s *FiberServer) getStatsHandler(c *fiber.Ctx) error {
	return c.JSON(s.session.Stats())
}

func (s *FiberServer) getAnalyticsHandler(c *fiber.Ctx) error {
	return c.JSON(s.session.Analytics())
}

// Archive handlers

func (s *FiberServer) getRoundsHandler(c *fiber.Ctx) error {
	if s.db == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "Round archive not available",
		})
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > MAX_ROUNDS_PAGE {
		return c.Status(400).JSON(fiber.Map{
			"error": "limit must be between 1 and 200",
		})
	}

	rounds, err := s.db.RecentRounds(c.UserContext(), limit)
	if err != nil {
		log.Printf("[SERVER] %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load rounds",
		})
	}
	if rounds == nil {
		rounds = []database.RoundRecord{}
	}

	return c.JSON(fiber.Map{
		"rounds": rounds,
	})
}

// replayStatsHandler recomputes the aggregates from the archived events of a
// run, this process's run by default, next to the live figures.
func (s *FiberServer) replayStatsHandler(c *fiber.Ctx) error {
	if s.db == nil || s.archiver == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "Round archive not available",
		})
	}

	runID := c.Query("run_id", s.archiver.RunID())
	events, err := s.db.Events(c.UserContext(), runID)
	if err != nil {
		log.Printf("[SERVER] %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load events",
		})
	}

	return c.JSON(fiber.Map{
		"run_id":   runID,
		"events":   len(events),
		"replayed": recorder.ReplayStats(events),
		"live":     s.session.Stats(),
	})
}

// Fairness handlers

func (s *FiberServer) verifyRoundHandler(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ServerSeed == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "server_seed is required",
		})
	}

	resp := fiber.Map{
		"valid":       game.VerifyRound(req.ServerSeed, req.ClientSeed, req.Nonce, req.Multiplier),
		"crash_point": game.HashAndMapToMultiplier(req.ServerSeed, req.ClientSeed, req.Nonce),
		"commitment":  game.HashCommitment(req.ServerSeed),
	}
	if req.Commitment != "" {
		resp["commitment_valid"] = game.VerifyCommitment(req.ServerSeed, req.Commitment)
	}

	return c.JSON(resp)
}

// WebSocket handler

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")

	log.Printf("[WS] New connection from user: %s", userID)

	client := s.gameHub.RegisterClient(conn, userID)

	client.Send(game.WSMessage{
		Type: "initial_state",
		Data: s.session.Snapshot(),
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for user %s: %v", userID, err)
			s.gameHub.UnregisterClient(client)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}
		if reply, ok := s.handleClientMessage(message); ok {
			client.Send(reply)
		}
	}
}

// handleClientMessage runs one client command and returns the reply for that
// client. Malformed messages are ignored.
func (s *FiberServer) handleClientMessage(message []byte) (game.WSMessage, bool) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return game.WSMessage{}, false
	}

	switch msg.Type {
	case "place_bet":
		return game.WSMessage{Type: "bet_response", Data: s.session.PlaceBet(msg.Amount)}, true

	case "cashout":
		return game.WSMessage{Type: "cashout_response", Data: s.session.CashOut()}, true

	case "set_auto_cashout":
		return game.WSMessage{Type: "auto_cashout_response", Data: s.session.SetAutoCashOutTarget(msg.Target)}, true

	case "ping":
		return game.WSMessage{Type: "pong"}, true

	default:
		return game.WSMessage{}, false
	}
}
