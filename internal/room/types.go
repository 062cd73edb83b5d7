package room

const (
	// MaxMembers is the room capacity.
	MaxMembers = 3

	// MaxDisplayNameLength is counted in runes.
	MaxDisplayNameLength = 50

	DefaultDisplayName = "Private Chat"
	DefaultUsername    = "Anonymous"
)

// Conn is a live connection handle. Send enqueues an outbound event and must
// not block; it reports false when the event could not be queued.
type Conn interface {
	Send(event string, payload interface{}) bool
}

// Subscription is a browser PushSubscription as registered by a client.
// The registry treats it as opaque and only compares pointers.
type Subscription struct {
	Endpoint string           `json:"endpoint" validate:"required,url"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys holds the client public key and auth secret.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// Member is one participant. The connection handle lives on the member
// record itself, so a member can only be reached through its own connection.
type Member struct {
	UserID       string
	Username     string
	Subscription *Subscription

	conn Conn
}

// Room is a single chat room. Rooms are only touched under the registry lock.
type Room struct {
	ID            string
	JoinCode      string
	SecondaryCode string
	DisplayName   string
	PasswordHash  string
	CreatorID     string
	Members       []*Member
}

func (rm *Room) memberByUserID(userID string) (int, *Member) {
	for i, m := range rm.Members {
		if m.UserID == userID {
			return i, m
		}
	}
	return -1, nil
}

// memberOn returns userID's member only if it joined on conn.
func (rm *Room) memberOn(userID string, conn Conn) *Member {
	_, m := rm.memberByUserID(userID)
	if m == nil || m.conn != conn {
		return nil
	}
	return m
}

func (rm *Room) memberByConn(conn Conn) *Member {
	for _, m := range rm.Members {
		if m.conn == conn {
			return m
		}
	}
	return nil
}

func (rm *Room) memberInfo() []MemberInfo {
	out := make([]MemberInfo, len(rm.Members))
	for i, m := range rm.Members {
		out[i] = MemberInfo{UserID: m.UserID, Username: m.Username}
	}
	return out
}

// JoinRequest carries the credentials and identity presented on join.
type JoinRequest struct {
	JoinCode      string
	SecondaryCode string
	Password      string
	UserID        string
	Username      string
}

// Message is a chat message submitted for relay. Payload is broadcast
// verbatim; the remaining fields are what notifications are built from.
type Message struct {
	UserID   string
	Username string
	Text     string
	FileURL  string
	FileType string
	Payload  interface{}
}

// IsAttachment reports whether the message carries a file rather than text.
func (m Message) IsAttachment() bool {
	return m.FileURL != "" || m.FileType != ""
}

// Recipient is a push target captured at dispatch time.
type Recipient struct {
	UserID       string
	Subscription *Subscription
}

// Dispatch is the immutable input handed to a Notifier after a relay.
type Dispatch struct {
	RoomID     string
	RoomName   string
	SenderID   string
	SenderName string
	Message    Message
	Recipients []Recipient
}

// Notifier delivers push notifications for a relayed message. Notify must
// return without waiting for delivery.
type Notifier interface {
	Notify(d Dispatch)
}

// MemberState is a copy of a member as seen by Snapshot.
type MemberState struct {
	UserID       string
	Username     string
	Subscription *Subscription
}

// RoomSnapshot is a point-in-time copy of a room.
type RoomSnapshot struct {
	ID            string
	JoinCode      string
	SecondaryCode string
	DisplayName   string
	CreatorID     string
	HasPassword   bool
	Members       []MemberState
}

// Stats summarizes the registry.
type Stats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}
