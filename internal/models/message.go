package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room-scoped rights. Owned by the external rights service; listed here
// because the coordinator checks DELETE_MESSAGES on privileged deletes.
const (
	RightSendMessages   = "SEND_MESSAGES"
	RightDeleteMessages = "DELETE_MESSAGES"
)

// MaxAttachments is the per-message attachment cap. Extra items are
// truncated, not rejected.
const MaxAttachments = 5

// User is the minimal author projection joined onto messages. The full
// profile lives in the users subsystem.
type User struct {
	ID        string `bson:"_id" json:"id"`
	Username  string `bson:"username" json:"username"`
	FirstName string `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Photo     string `bson:"photo,omitempty" json:"photo,omitempty"`
}

// Message is a persisted room message. RoomID, UserID and Timestamp are
// immutable after creation; updates may only touch Text and Attachments.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomID      string             `bson:"roomId" json:"roomId"`
	UserID      string             `bson:"userId" json:"userId"`
	Text        string             `bson:"text,omitempty" json:"text,omitempty"`
	Attachments []string           `bson:"attachment,omitempty" json:"attachment,omitempty"`
	Timestamp   time.Time          `bson:"timestamp" json:"timestamp"`

	// Author is populated from the users collection on reads, never stored.
	Author *User `bson:"-" json:"user,omitempty"`
}

// Attachment is a raw attachment payload pending upload. Data is
// base64-encoded on the wire.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

// RecentMessage is the preview snapshot pushed to the rooms subsystem.
type RecentMessage struct {
	ID          string       `json:"_id"`
	User        RecentAuthor `json:"user"`
	RoomID      string       `json:"roomId"`
	Text        string       `json:"text,omitempty"`
	Attachments []string     `json:"attachment,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

type RecentAuthor struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}
