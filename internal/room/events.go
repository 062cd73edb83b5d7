package room

// Outbound event names emitted by the registry.
const (
	EventChatCreated     = "chatCreated"
	EventChatJoined      = "chatJoined"
	EventUserOnline      = "userOnline"
	EventUserOffline     = "userOffline"
	EventChatNameUpdated = "chatNameUpdated"
	EventPasswordSet     = "passwordSet"
	EventPasswordRemoved = "passwordRemoved"
	EventMessage         = "message"
)

// Created is the chatCreated payload.
type Created struct {
	RoomID        string `json:"roomId"`
	JoinCode      string `json:"joinCode"`
	SecondaryCode string `json:"secondaryCode"`
	DisplayName   string `json:"displayName"`
}

// Joined is the chatJoined payload.
type Joined struct {
	RoomID      string       `json:"roomId"`
	Members     []MemberInfo `json:"members"`
	DisplayName string       `json:"displayName"`
}

// MemberInfo identifies a member on the wire. It is also the userOnline and
// userOffline payload.
type MemberInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// NameUpdate is the chatNameUpdated payload.
type NameUpdate struct {
	DisplayName string `json:"displayName"`
}
