package server

import (
	"errors"

	"github.com/Tyrowin/trio/internal/room"
)

// Inbound event names. The short and long forms of create and join are
// both accepted.
const (
	EventCreate         = "create"
	EventCreateChat     = "createChat"
	EventJoin           = "join"
	EventJoinChat       = "joinChat"
	EventSetUsername    = "setUsername"
	EventSetRoomName    = "setRoomName"
	EventSetPassword    = "setPassword"
	EventRemovePassword = "removePassword"
	EventSubscribePush  = "subscribePush"
	EventSendMessage    = "sendMessage"
)

// Outbound event names that are not room broadcasts.
const (
	EventError            = "error"
	EventPasswordRequired = "passwordRequired"
)

// Reasons sent with error events.
const (
	ReasonUnknownRoom      = "Invalid or expired chat code."
	ReasonBadSecondaryCode = "Invalid user code."
	ReasonRoomFull         = "Chat room is full."
	ReasonNotCreator       = "Only the chat creator can change the password."
	ReasonWrongPassword    = "Incorrect password."
	ReasonNotMember        = "You are not a member of this chat."
	ReasonAlreadyJoined    = "This connection already joined the chat as another user."
	ReasonInvalidRequest   = "Invalid request: "
	ReasonUnknownEvent     = "Unknown event."
	ReasonInternal         = "Something went wrong. Please try again."
	ReasonPasswordRequired = "Password required or incorrect."
)

type createRequest struct {
	UserID   string `json:"userId" validate:"required,max=128"`
	Username string `json:"username" validate:"max=64"`
}

type joinRequest struct {
	JoinCode      string `json:"joinCode" validate:"max=64"`
	SecondaryCode string `json:"secondaryCode" validate:"max=64"`
	Password      string `json:"password" validate:"max=256"`
	UserID        string `json:"userId" validate:"required,max=128"`
	Username      string `json:"username" validate:"max=64"`
}

type setUsernameRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Username string `json:"username" validate:"max=64"`
}

type setRoomNameRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,max=256"`
}

type passwordRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Password string `json:"password" validate:"max=256"`
}

type subscribePushRequest struct {
	RoomID       string             `json:"roomId" validate:"required"`
	UserID       string             `json:"userId" validate:"required"`
	Subscription *room.Subscription `json:"subscription" validate:"required"`
}

type sendMessageRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
}

// errorReason maps a registry error to the reason sent to the client.
// Errors outside the registry taxonomy get a generic reason.
func errorReason(err error) string {
	switch {
	case errors.Is(err, room.ErrUnknownRoom):
		return ReasonUnknownRoom
	case errors.Is(err, room.ErrBadSecondaryCode):
		return ReasonBadSecondaryCode
	case errors.Is(err, room.ErrRoomFull):
		return ReasonRoomFull
	case errors.Is(err, room.ErrNotCreator):
		return ReasonNotCreator
	case errors.Is(err, room.ErrWrongPassword):
		return ReasonWrongPassword
	case errors.Is(err, room.ErrNotMember):
		return ReasonNotMember
	case errors.Is(err, room.ErrConnInUse):
		return ReasonAlreadyJoined
	}
	if room.KindOf(err) == room.KindValidation {
		return ReasonInvalidRequest + err.Error()
	}
	return ReasonInternal
}
