// Package push delivers Web Push notifications for relayed room messages.
package push

import (
	"fmt"
	"unicode/utf8"

	"github.com/Tyrowin/trio/internal/room"
)

// Subscription is a browser PushSubscription.
type Subscription = room.Subscription

const (
	maxBodyLength  = 100
	attachmentBody = "Sent a file"
)

// Notification is the JSON payload a service worker turns into a
// notification.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewNotification builds the notification for a dispatched message.
func NewNotification(d room.Dispatch) Notification {
	body := attachmentBody
	if !d.Message.IsAttachment() {
		body = truncate(d.Message.Text, maxBodyLength)
	}
	return Notification{
		Title: fmt.Sprintf("%s in %s", d.SenderName, d.RoomName),
		Body:  body,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
