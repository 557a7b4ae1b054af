package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/S-Sergio-A/messsages-microservice/internal/apperrors"
	"github.com/S-Sergio-A/messsages-microservice/internal/config"
	"github.com/S-Sergio-A/messsages-microservice/internal/service"
	"github.com/S-Sergio-A/messsages-microservice/internal/ws"
)

type Server struct {
	svc *service.MessageService
	log *zap.SugaredLogger
}

func NewServer(cfg *config.Config, wsrv *ws.Server, svc *service.MessageService, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberlogger.New())

	rl := NewIPRateLimiter(cfg.App.RateLimitPerMin, log)
	s := &Server{svc: svc, log: log}

	v1 := app.Group("/v1")
	v1.Use(rl.Handler())

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsrv.HandleWS()))

	v1.Get("/rooms/:room_id/messages", s.roomMessages)
	v1.Get("/rooms/:room_id/messages/search", s.searchMessages)

	return app
}

func (s *Server) roomMessages(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	start, _ := strconv.ParseInt(c.Query("start", "0"), 10, 64)
	end, _ := strconv.ParseInt(c.Query("end", "0"), 10, 64)

	msgs, err := s.svc.GetRoomMessages(c.Context(), roomID, start, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msgs})
}

func (s *Server) searchMessages(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	keyword := c.Query("keyword")

	msgs, err := s.svc.SearchMessages(c.Context(), roomID, keyword)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msgs})
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		status = fiber.StatusNotFound
	default:
		s.log.Errorw("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"code": apperrors.Code(err), "message": apperrors.Message(err)},
	})
}
