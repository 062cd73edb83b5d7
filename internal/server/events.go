package server

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Tyrowin/trio/internal/room"
	"github.com/Tyrowin/trio/internal/validation"
)

// handleFrame decodes one inbound envelope and routes it to the registry.
func (c *Client) handleFrame(frame []byte) {
	var in inbound
	if err := json.Unmarshal(frame, &in); err != nil || in.Event == "" {
		c.log.Debug().Err(err).Msg("malformed envelope")
		c.sendError(ReasonInvalidRequest + "malformed envelope")
		return
	}

	switch in.Event {
	case EventCreate, EventCreateChat:
		c.onCreate(in.Data)
	case EventJoin, EventJoinChat:
		c.onJoin(in.Data)
	case EventSetUsername:
		c.onSetUsername(in.Data)
	case EventSetRoomName:
		c.onSetRoomName(in.Data)
	case EventSetPassword:
		c.onSetPassword(in.Data)
	case EventRemovePassword:
		c.onRemovePassword(in.Data)
	case EventSubscribePush:
		c.onSubscribePush(in.Data)
	case EventSendMessage:
		c.onSendMessage(in.Data)
	default:
		c.log.Debug().Str("event", in.Event).Msg("unknown event")
		c.sendError(ReasonUnknownEvent)
	}
}

// decode unmarshals and validates an event payload. On failure the client
// has already been told why.
func (c *Client) decode(event string, data json.RawMessage, v interface{}) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.log.Debug().Err(err).Str("event", event).Msg("malformed payload")
		c.sendError(fmt.Sprintf("%smalformed %s payload", ReasonInvalidRequest, event))
		return false
	}
	if err := validation.Struct(v); err != nil {
		c.sendError(ReasonInvalidRequest + err.Error())
		return false
	}
	return true
}

// requireMember checks that this connection is in the room before a
// room-scoped change.
func (c *Client) requireMember(roomID string) bool {
	reg := c.hub.registry
	if reg.IsMember(roomID, c) {
		return true
	}
	if _, ok := reg.Snapshot(roomID); !ok {
		c.sendError(ReasonUnknownRoom)
	} else {
		c.sendError(ReasonNotMember)
	}
	return false
}

// reportError tells the client why a registry call failed.
func (c *Client) reportError(event string, err error) {
	if room.KindOf(err) == 0 {
		c.log.Error().Err(err).Str("event", event).Msg("event failed")
	}
	c.sendError(errorReason(err))
}

func (c *Client) onCreate(data json.RawMessage) {
	var req createRequest
	if !c.decode(EventCreateChat, data, &req) {
		return
	}
	c.hub.registry.CreateRoom(c, req.UserID, req.Username)
}

func (c *Client) onJoin(data json.RawMessage) {
	var req joinRequest
	if !c.decode(EventJoinChat, data, &req) {
		return
	}

	_, err := c.hub.registry.JoinRoom(room.JoinRequest{
		JoinCode:      req.JoinCode,
		SecondaryCode: req.SecondaryCode,
		Password:      req.Password,
		UserID:        req.UserID,
		Username:      req.Username,
	}, c)
	switch {
	case err == nil:
	case errors.Is(err, room.ErrWrongPassword):
		c.Send(EventPasswordRequired, ReasonPasswordRequired)
	default:
		c.reportError(EventJoinChat, err)
	}
}

func (c *Client) onSetUsername(data json.RawMessage) {
	var req setUsernameRequest
	if !c.decode(EventSetUsername, data, &req) || !c.requireMember(req.RoomID) {
		return
	}
	if err := c.hub.registry.SetUsername(req.RoomID, c, req.UserID, req.Username); err != nil {
		c.log.Debug().Err(err).Str("room_id", req.RoomID).Msg("username not changed")
	}
}

func (c *Client) onSetRoomName(data json.RawMessage) {
	var req setRoomNameRequest
	if !c.decode(EventSetRoomName, data, &req) || !c.requireMember(req.RoomID) {
		return
	}
	if err := c.hub.registry.SetRoomName(req.RoomID, req.DisplayName); err != nil {
		c.reportError(EventSetRoomName, err)
	}
}

func (c *Client) onSetPassword(data json.RawMessage) {
	var req passwordRequest
	if !c.decode(EventSetPassword, data, &req) || !c.requireMember(req.RoomID) {
		return
	}
	if err := c.hub.registry.SetPassword(req.RoomID, c, req.UserID, req.Password); err != nil {
		c.reportError(EventSetPassword, err)
	}
}

func (c *Client) onRemovePassword(data json.RawMessage) {
	var req passwordRequest
	if !c.decode(EventRemovePassword, data, &req) || !c.requireMember(req.RoomID) {
		return
	}
	if err := c.hub.registry.RemovePassword(req.RoomID, c, req.UserID, req.Password); err != nil {
		c.reportError(EventRemovePassword, err)
	}
}

func (c *Client) onSubscribePush(data json.RawMessage) {
	var req subscribePushRequest
	if !c.decode(EventSubscribePush, data, &req) || !c.requireMember(req.RoomID) {
		return
	}
	if err := c.hub.registry.RegisterPushSubscription(req.RoomID, c, req.UserID, req.Subscription); err != nil {
		c.reportError(EventSubscribePush, err)
	}
}

// onSendMessage relays the raw payload. The sender never gets an error for
// a send; failures are only logged.
func (c *Client) onSendMessage(data json.RawMessage) {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		c.log.Debug().Err(err).Msg("dropping malformed message")
		return
	}

	err := c.hub.registry.SendMessage(req.RoomID, c, room.Message{
		UserID:   req.UserID,
		Username: req.Username,
		Text:     req.Message,
		FileURL:  req.FileURL,
		FileType: req.FileType,
		Payload:  data,
	})
	if err != nil {
		c.log.Debug().Err(err).Str("room_id", req.RoomID).Msg("message dropped")
	}
}
