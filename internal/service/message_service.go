package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/S-Sergio-A/messsages-microservice/internal/apperrors"
	"github.com/S-Sergio-A/messsages-microservice/internal/events"
	"github.com/S-Sergio-A/messsages-microservice/internal/models"
)

// MessageRepository is the persistence gateway the coordinator consumes.
type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	UpdateContent(ctx context.Context, id, text string, attachments []string) error
	Delete(ctx context.Context, id, roomID, authorID string) (int64, error)
	FindRoomPage(ctx context.Context, roomID string, start, end int64) ([]*models.Message, error)
	Search(ctx context.Context, roomID, keyword string) ([]*models.Message, error)
}

type RightsOracle interface {
	HasRight(ctx context.Context, userID, roomID, right string) (bool, error)
}

type AttachmentUploader interface {
	Upload(ctx context.Context, roomID string, att models.Attachment) (string, error)
}

type ReferencePublisher interface {
	Publish(kind events.Kind, roomID string, payload any)
}

type Broadcaster interface {
	Broadcast(roomID, event string, data any)
}

// DefaultPageSize is the pagination window applied when the caller gives
// no explicit range.
const DefaultPageSize = 50

// MessageService coordinates authorization, persistence, attachment
// resolution, room broadcast and reference publication for every message
// mutation.
type MessageService struct {
	repo      MessageRepository
	oracle    RightsOracle
	uploader  AttachmentUploader
	publisher ReferencePublisher
	rooms     Broadcaster
	log       *zap.SugaredLogger
}

func NewMessageService(
	repo MessageRepository,
	oracle RightsOracle,
	uploader AttachmentUploader,
	publisher ReferencePublisher,
	rooms Broadcaster,
	log *zap.SugaredLogger,
) *MessageService {
	return &MessageService{
		repo:      repo,
		oracle:    oracle,
		uploader:  uploader,
		publisher: publisher,
		rooms:     rooms,
		log:       log,
	}
}

// NewMessage is a create draft as received from a connection.
type NewMessage struct {
	RoomID      string
	AuthorID    string
	Username    string
	Text        string
	Attachments []models.Attachment
	Timestamp   time.Time
	Rights      []string
}

// MessageEdit carries the fields an author may change. Any roomId, userId
// or timestamp present in the client payload is deliberately not here.
type MessageEdit struct {
	ID          string
	AuthorID    string
	Text        string
	Attachments []string
}

func (s *MessageService) CreateMessage(ctx context.Context, in NewMessage) (*models.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Attachments) == 0 {
		return nil, apperrors.ErrValidation
	}

	atts := in.Attachments
	if len(atts) > models.MaxAttachments {
		s.log.Warnw("truncating attachments", "roomId", in.RoomID, "got", len(atts), "kept", models.MaxAttachments)
		atts = atts[:models.MaxAttachments]
	}

	urls := make([]string, 0, len(atts))
	for _, att := range atts {
		u, err := s.uploader.Upload(ctx, in.RoomID, att)
		if err != nil {
			// individual failures are dropped, not fatal, as long as the
			// message still carries content
			s.log.Warnw("attachment upload failed, dropping item",
				"roomId", in.RoomID, "userId", in.AuthorID, "name", att.Name, "error", err)
			continue
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 && len(atts) > 0 && text == "" {
		return nil, apperrors.ErrAttachmentResolution
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	m := &models.Message{
		RoomID:      in.RoomID,
		UserID:      in.AuthorID,
		Text:        text,
		Attachments: urls,
		Timestamp:   ts,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.publisher.Publish(events.KindAddReference, in.RoomID, events.AddReference{
		Rights:    in.Rights,
		RoomID:    in.RoomID,
		MessageID: m.ID.Hex(),
	})
	s.publisher.Publish(events.KindRecentMessage, in.RoomID, events.RecentMessage{
		RoomID: in.RoomID,
		RecentMessage: models.RecentMessage{
			ID:          m.ID.Hex(),
			User:        models.RecentAuthor{ID: in.AuthorID, Username: in.Username},
			RoomID:      in.RoomID,
			Text:        m.Text,
			Attachments: m.Attachments,
			Timestamp:   m.Timestamp,
		},
	})

	out, err := s.repo.FindByID(ctx, m.ID.Hex())
	if err != nil {
		// the row is committed; fall back to the in-memory copy without the
		// author projection
		s.log.Warnw("re-read after insert failed", "messageId", m.ID.Hex(), "error", err)
		out = m
	}
	s.rooms.Broadcast(in.RoomID, "new-message", out)
	return out, nil
}

func (s *MessageService) UpdateMessage(ctx context.Context, edit MessageEdit) (*models.Message, error) {
	m, err := s.repo.FindByID(ctx, edit.ID)
	if err != nil {
		return nil, err
	}
	// only the original author may edit; there is no privileged override
	if m.UserID != edit.AuthorID {
		return nil, apperrors.ErrForbidden
	}

	text := m.Text
	if t := strings.TrimSpace(edit.Text); t != "" && t != m.Text {
		text = t
	}
	atts := m.Attachments
	if edit.Attachments != nil {
		atts = edit.Attachments
		if len(atts) > models.MaxAttachments {
			atts = atts[:models.MaxAttachments]
		}
	}
	if text == "" && len(atts) == 0 {
		return nil, apperrors.ErrValidation
	}

	if err := s.repo.UpdateContent(ctx, edit.ID, text, atts); err != nil {
		return nil, err
	}
	m.Text = text
	m.Attachments = atts

	s.rooms.Broadcast(m.RoomID, "updated-message", m)
	return m, nil
}

// DeleteMessage deletes scoped to (id, room, author) unless the acting user
// both claims DELETE_MESSAGES and the oracle confirms it for this exact
// (user, room) pair. A zero-row delete is reported as not-found whether the
// message is missing or merely not deletable, so existence never leaks.
func (s *MessageService) DeleteMessage(ctx context.Context, rights []string, messageID, roomID, actingUser string) error {
	canDeleteAny := false
	if contains(rights, models.RightDeleteMessages) {
		ok, err := s.oracle.HasRight(ctx, actingUser, roomID, models.RightDeleteMessages)
		if err != nil {
			return fmt.Errorf("verify rights: %w", err)
		}
		canDeleteAny = ok
	}

	author := actingUser
	if canDeleteAny {
		author = ""
	}
	n, err := s.repo.Delete(ctx, messageID, roomID, author)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}

	s.publisher.Publish(events.KindDeleteReference, roomID, events.DeleteReference{
		Rights:    rights,
		UserID:    actingUser,
		RoomID:    roomID,
		MessageID: messageID,
	})
	s.rooms.Broadcast(roomID, "deleted-message", map[string]string{"id": messageID})
	return nil
}

func (s *MessageService) SearchMessages(ctx context.Context, roomID, keyword string) ([]*models.Message, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, apperrors.ErrValidation
	}
	msgs, err := s.repo.Search(ctx, roomID, keyword)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return msgs, nil
}

// GetRoomMessages pages the room most-recent-first. An unspecified or
// inverted window collapses to [start, start+50).
func (s *MessageService) GetRoomMessages(ctx context.Context, roomID string, start, end int64) ([]*models.Message, error) {
	if start < 0 {
		start = 0
	}
	if end <= start {
		end = start + DefaultPageSize
	}
	msgs, err := s.repo.FindRoomPage(ctx, roomID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load room messages: %w", err)
	}
	return msgs, nil
}

// LeaveRoom notifies the rooms subsystem. Leaving never carries elevated
// rights, so the event always ships an empty rights set.
func (s *MessageService) LeaveRoom(ctx context.Context, userID, roomID string) {
	s.publisher.Publish(events.KindUserLeft, roomID, events.UserLeft{
		UserID: userID,
		RoomID: roomID,
		Type:   events.LeaveRoomType,
		Rights: []string{},
	})
}

func contains(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}
