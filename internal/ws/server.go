package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/S-Sergio-A/messsages-microservice/internal/apperrors"
	"github.com/S-Sergio-A/messsages-microservice/internal/auth"
	"github.com/S-Sergio-A/messsages-microservice/internal/models"
	"github.com/S-Sergio-A/messsages-microservice/internal/service"
)

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Options struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	MaxMsgSize    int64
}

// Server owns the websocket handshake and routes client events to the
// coordinator.
type Server struct {
	hub  *Hub
	svc  *service.MessageService
	jv   *auth.Validator // nil disables token checks
	opts Options
	log  *zap.SugaredLogger
}

func NewServer(hub *Hub, svc *service.MessageService, jv *auth.Validator, opts Options, log *zap.SugaredLogger) *Server {
	if opts.PingInterval == 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteDeadline == 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.MaxMsgSize == 0 {
		opts.MaxMsgSize = 65536
	}
	return &Server{hub: hub, svc: svc, jv: jv, opts: opts, log: log}
}

func (s *Server) Hub() *Hub { return s.hub }

// HandleWS runs one connection: handshake, join, event loop, leave.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		userID := conn.Query("userId")
		roomID := conn.Query("roomId")
		username := conn.Query("username")
		if userID == "" || roomID == "" {
			_ = conn.Close()
			return
		}
		if s.jv != nil {
			sub, err := s.jv.Validate(conn.Query("token"))
			if err != nil || sub != userID {
				s.log.Warnw("handshake rejected", "userId", userID, "roomId", roomID, "error", err)
				_ = conn.Close()
				return
			}
		}

		c := newClient(conn, uuid.NewString(), userID, username, roomID,
			s.opts.PingInterval, s.opts.WriteDeadline, s.opts.MaxMsgSize)

		members := s.hub.Join(c)
		go c.writePump()
		s.hub.Broadcast(roomID, "users", members)
		s.log.Infow("client joined", "socketId", c.ID, "userId", userID, "roomId", roomID)

		// push the latest page to the newcomer, as on an explicit
		// load-last-messages
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			msgs, err := s.svc.GetRoomMessages(ctx, roomID, 0, service.DefaultPageSize)
			if err != nil {
				s.log.Warnw("initial history load failed", "roomId", roomID, "error", err)
				return
			}
			c.sendEvent("last-messages", msgs)
		}()

		c.readPump(s.dispatch)

		// transport closed; drop presence unless an explicit leave already
		// did it
		if c.state.Load() != stateLeft {
			c.finishLeave()
			members := s.hub.Leave(c)
			s.hub.Broadcast(roomID, "users", members)
		}
		s.log.Infow("client disconnected", "socketId", c.ID, "userId", userID, "roomId", roomID)
	}
}

type newMessagePayload struct {
	RoomID      string              `json:"roomId"`
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachment"`
	Timestamp   time.Time           `json:"timestamp"`
	User        string              `json:"user"`
	Rights      []string            `json:"rights"`
}

type updateMessagePayload struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Attachments []string `json:"attachment"`
	User        string   `json:"user"`
}

type deleteMessagePayload struct {
	ID     string   `json:"id"`
	RoomID string   `json:"roomId"`
	Rights []string `json:"rights"`
}

type searchMessagesPayload struct {
	RoomID  string `json:"roomId"`
	Keyword string `json:"keyword"`
}

type loadMessagesPayload struct {
	RoomID string `json:"roomId"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
}

type leaveRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

func (s *Server) dispatch(c *Client, env inboundEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch env.Event {
	case "new-message":
		if !c.joined() {
			s.sendError(c, apperrors.ErrInvalidState)
			return
		}
		var p newMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(c, apperrors.ErrValidation)
			return
		}
		// the connection, not the payload, is authoritative for identity
		// and room
		_, err := s.svc.CreateMessage(ctx, service.NewMessage{
			RoomID:      c.RoomID,
			AuthorID:    c.UserID,
			Username:    c.Username,
			Text:        p.Text,
			Attachments: p.Attachments,
			Timestamp:   p.Timestamp,
			Rights:      p.Rights,
		})
		if err != nil {
			s.fail(c, "new-message", err)
		}

	case "update-message":
		if !c.joined() {
			s.sendError(c, apperrors.ErrInvalidState)
			return
		}
		var p updateMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(c, apperrors.ErrValidation)
			return
		}
		_, err := s.svc.UpdateMessage(ctx, service.MessageEdit{
			ID:          p.ID,
			AuthorID:    c.UserID,
			Text:        p.Text,
			Attachments: p.Attachments,
		})
		if err != nil {
			s.fail(c, "update-message", err)
		}

	case "delete-message":
		if !c.joined() {
			s.sendError(c, apperrors.ErrInvalidState)
			return
		}
		var p deleteMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(c, apperrors.ErrValidation)
			return
		}
		roomID := p.RoomID
		if roomID == "" {
			roomID = c.RoomID
		}
		if err := s.svc.DeleteMessage(ctx, p.Rights, p.ID, roomID, c.UserID); err != nil {
			s.fail(c, "delete-message", err)
		}

	case "search-messages":
		if !c.joined() {
			s.sendError(c, apperrors.ErrInvalidState)
			return
		}
		var p searchMessagesPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(c, apperrors.ErrValidation)
			return
		}
		msgs, err := s.svc.SearchMessages(ctx, c.RoomID, p.Keyword)
		if err != nil {
			s.fail(c, "search-messages", err)
			return
		}
		c.sendEvent("searched-messages", msgs)

	case "load-more-messages":
		if !c.joined() {
			s.sendError(c, apperrors.ErrInvalidState)
			return
		}
		var p loadMessagesPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.sendError(c, apperrors.ErrValidation)
			return
		}
		msgs, err := s.svc.GetRoomMessages(ctx, c.RoomID, p.Start, p.End)
		if err != nil {
			s.fail(c, "load-more-messages", err)
			return
		}
		c.sendEvent("more-messages", msgs)

	case "load-last-messages":
		if !c.joined() {
			s.sendError(c, apperrors.ErrInvalidState)
			return
		}
		msgs, err := s.svc.GetRoomMessages(ctx, c.RoomID, 0, service.DefaultPageSize)
		if err != nil {
			s.fail(c, "load-last-messages", err)
			return
		}
		c.sendEvent("last-messages", msgs)

	case "leave-room":
		if !c.beginLeave() {
			s.sendError(c, apperrors.ErrInvalidState)
			return
		}
		members := s.hub.Leave(c)
		s.hub.Broadcast(c.RoomID, "users", members)
		s.svc.LeaveRoom(ctx, c.UserID, c.RoomID)
		c.finishLeave()

	default:
		s.sendError(c, apperrors.ErrValidation)
	}
}

// fail logs the operation failure with context and sends only the
// client-safe translation.
func (s *Server) fail(c *Client, op string, err error) {
	s.log.Errorw("operation failed",
		"op", op, "socketId", c.ID, "userId", c.UserID, "roomId", c.RoomID, "error", err)
	s.sendError(c, err)
}

func (s *Server) sendError(c *Client, err error) {
	c.sendEvent("error", errorPayload{
		Code:    apperrors.Code(err),
		Message: apperrors.Message(err),
	})
}
