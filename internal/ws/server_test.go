package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/S-Sergio-A/messsages-microservice/internal/apperrors"
	"github.com/S-Sergio-A/messsages-microservice/internal/events"
	"github.com/S-Sergio-A/messsages-microservice/internal/models"
	"github.com/S-Sergio-A/messsages-microservice/internal/service"
)

type memRepo struct {
	byID map[string]*models.Message
}

func (r *memRepo) Insert(_ context.Context, m *models.Message) error {
	m.ID = primitive.NewObjectID()
	r.byID[m.ID.Hex()] = m
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*models.Message, error) {
	m, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return m, nil
}

func (r *memRepo) UpdateContent(_ context.Context, id, text string, attachments []string) error {
	m, ok := r.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	m.Text = text
	m.Attachments = attachments
	return nil
}

func (r *memRepo) Delete(_ context.Context, id, roomID, authorID string) (int64, error) {
	m, ok := r.byID[id]
	if !ok || m.RoomID != roomID {
		return 0, nil
	}
	if authorID != "" && m.UserID != authorID {
		return 0, nil
	}
	delete(r.byID, id)
	return 1, nil
}

func (r *memRepo) FindRoomPage(_ context.Context, roomID string, start, end int64) ([]*models.Message, error) {
	return []*models.Message{}, nil
}

func (r *memRepo) Search(_ context.Context, roomID, keyword string) ([]*models.Message, error) {
	return []*models.Message{}, nil
}

type denyOracle struct{}

func (denyOracle) HasRight(context.Context, string, string, string) (bool, error) {
	return false, nil
}

type noopUploader struct{}

func (noopUploader) Upload(_ context.Context, _ string, att models.Attachment) (string, error) {
	return "https://cdn.test/" + att.Name, nil
}

type recordingPublisher struct {
	kinds []events.Kind
}

func (p *recordingPublisher) Publish(kind events.Kind, _ string, _ any) {
	p.kinds = append(p.kinds, kind)
}

type wsFixture struct {
	hub  *Hub
	srv  *Server
	repo *memRepo
	pub  *recordingPublisher
}

func newWSFixture() *wsFixture {
	f := &wsFixture{
		hub:  NewHub(),
		repo: &memRepo{byID: map[string]*models.Message{}},
		pub:  &recordingPublisher{},
	}
	svc := service.NewMessageService(f.repo, denyOracle{}, noopUploader{}, f.pub, f.hub, zap.NewNop().Sugar())
	f.srv = NewServer(f.hub, svc, nil, Options{}, zap.NewNop().Sugar())
	return f
}

func event(t *testing.T, name string, payload any) inboundEvent {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return inboundEvent{Event: name, Data: b}
}

func eventNames(t *testing.T, c *Client) []string {
	t.Helper()
	var names []string
	for _, env := range drain(t, c) {
		names = append(names, env.Event)
	}
	return names
}

func TestDispatchNewMessageReachesRoom(t *testing.T) {
	f := newWSFixture()
	a := testClient("s1", "u1", "r1")
	b := testClient("s2", "u2", "r1")
	f.hub.Join(a)
	f.hub.Join(b)

	f.srv.dispatch(a, event(t, "new-message", map[string]any{
		"text": "hello room", "rights": []string{models.RightSendMessages},
	}))

	assert.Equal(t, []string{"new-message"}, eventNames(t, a))
	assert.Equal(t, []string{"new-message"}, eventNames(t, b))
	assert.Equal(t, []events.Kind{events.KindAddReference, events.KindRecentMessage}, f.pub.kinds)
}

func TestDispatchIdentityFromConnection(t *testing.T) {
	f := newWSFixture()
	a := testClient("s1", "u1", "r1")
	f.hub.Join(a)

	// payload claims another room; the connection wins
	f.srv.dispatch(a, event(t, "new-message", map[string]any{
		"roomId": "r9", "text": "spoofed",
	}))

	require.Len(t, f.repo.byID, 1)
	for _, m := range f.repo.byID {
		assert.Equal(t, "r1", m.RoomID)
		assert.Equal(t, "u1", m.UserID)
	}
}

func TestDispatchDeleteForbiddenOnlyErrorsSender(t *testing.T) {
	f := newWSFixture()
	a := testClient("s1", "u1", "r1")
	b := testClient("s2", "u2", "r1")
	f.hub.Join(a)
	f.hub.Join(b)

	m := &models.Message{ID: primitive.NewObjectID(), RoomID: "r1", UserID: "u1", Text: "mine"}
	f.repo.byID[m.ID.Hex()] = m

	f.srv.dispatch(b, event(t, "delete-message", map[string]any{"id": m.ID.Hex()}))

	frames := drain(t, b)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Event)
	var p errorPayload
	raw, _ := json.Marshal(frames[0].Data)
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "NOT_FOUND", p.Code)

	assert.Empty(t, drain(t, a))
	assert.Contains(t, f.repo.byID, m.ID.Hex())
}

func TestDispatchUnknownEvent(t *testing.T) {
	f := newWSFixture()
	a := testClient("s1", "u1", "r1")
	f.hub.Join(a)

	f.srv.dispatch(a, event(t, "self-destruct", map[string]any{}))

	frames := drain(t, a)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Event)
}

func TestDispatchLeaveRoomThenMutationRejected(t *testing.T) {
	f := newWSFixture()
	a := testClient("s1", "u1", "r1")
	b := testClient("s2", "u2", "r1")
	f.hub.Join(a)
	f.hub.Join(b)

	f.srv.dispatch(a, event(t, "leave-room", map[string]any{}))

	// remaining member saw the updated roster
	names := eventNames(t, b)
	require.Equal(t, []string{"users"}, names)
	assert.Len(t, f.hub.MembersOf("r1"), 1)

	require.Equal(t, []events.Kind{events.KindUserLeft}, f.pub.kinds)

	// mutations on a left connection are rejected without side effects
	f.srv.dispatch(a, event(t, "new-message", map[string]any{"text": "too late"}))
	assert.Empty(t, f.repo.byID)

	// double leave is rejected the same way
	f.srv.dispatch(a, event(t, "leave-room", map[string]any{}))
	assert.Equal(t, []events.Kind{events.KindUserLeft}, f.pub.kinds)
}
