package room

import (
	"strings"

	"github.com/Tyrowin/trio/internal/metrics"
)

// SendMessage relays msg.Payload to every member of the room, including the
// sender, then hands a Dispatch for the other subscribed members to the
// notifier. conn must hold a slot in the room.
func (r *Registry) SendMessage(roomID string, conn Conn, msg Message) error {
	r.mu.Lock()

	rm := r.rooms[roomID]
	if rm == nil {
		r.mu.Unlock()
		return ErrUnknownRoom
	}
	sender := rm.memberByConn(conn)
	if sender == nil {
		r.mu.Unlock()
		return ErrNotMember
	}

	r.broadcast(rm, EventMessage, msg.Payload)
	metrics.Incr(metrics.MessagesRelayed, 1)

	senderName := strings.TrimSpace(msg.Username)
	if senderName == "" {
		senderName = sender.Username
	}
	d := Dispatch{
		RoomID:     rm.ID,
		RoomName:   rm.DisplayName,
		SenderID:   sender.UserID,
		SenderName: senderName,
		Message:    msg,
	}
	for _, m := range rm.Members {
		if m.UserID == sender.UserID || m.Subscription == nil {
			continue
		}
		d.Recipients = append(d.Recipients, Recipient{UserID: m.UserID, Subscription: m.Subscription})
	}
	notifier := r.notifier
	r.mu.Unlock()

	if notifier != nil && len(d.Recipients) > 0 {
		notifier.Notify(d)
	}
	return nil
}
