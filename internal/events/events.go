package events

import (
	"github.com/S-Sergio-A/messsages-microservice/internal/models"
)

// Kind is the command name the rooms/users subsystem dispatches on.
type Kind string

const (
	KindAddReference    Kind = "add-message-reference"
	KindDeleteReference Kind = "delete-message-reference"
	KindRecentMessage   Kind = "add-recent-message"
	KindUserLeft        Kind = "delete-user"
)

// LeaveRoomType marks a delete-user event caused by an explicit room leave.
const LeaveRoomType = "LEAVE_ROOM"

type AddReference struct {
	Rights    []string `json:"rights"`
	RoomID    string   `json:"roomId"`
	MessageID string   `json:"messageId"`
}

type DeleteReference struct {
	Rights    []string `json:"rights"`
	UserID    string   `json:"userId"`
	RoomID    string   `json:"roomId"`
	MessageID string   `json:"messageId"`
}

type RecentMessage struct {
	RoomID        string               `json:"roomId"`
	RecentMessage models.RecentMessage `json:"recentMessage"`
}

type UserLeft struct {
	UserID string   `json:"userId"`
	RoomID string   `json:"roomId"`
	Type   string   `json:"type"`
	Rights []string `json:"rights"`
}

// envelope is the queue wire format: command plus payload, keyed by room.
type envelope struct {
	Cmd     Kind `json:"cmd"`
	Payload any  `json:"payload"`
}
