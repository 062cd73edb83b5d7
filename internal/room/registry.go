package room

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/trio/internal/logging"
	"github.com/Tyrowin/trio/internal/metrics"
)

// Option configures a Registry.
type Option func(*Registry)

// WithHasher overrides the password hasher.
func WithHasher(h PasswordHasher) Option {
	return func(r *Registry) {
		r.hasher = h
	}
}

// WithCodeGenerator overrides how join and secondary codes are drawn.
// Collisions with live codes are redrawn, so gen must eventually return a
// fresh value.
func WithCodeGenerator(gen func() string) Option {
	return func(r *Registry) {
		r.newCode = gen
	}
}

// WithNotifier sets the push notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

// Registry owns every room and the indices that locate them.
type Registry struct {
	mu             sync.Mutex
	rooms          map[string]*Room
	joinCodes      map[string]string
	secondaryCodes map[string]string
	connRooms      map[Conn]map[string]struct{}

	hasher   PasswordHasher
	newCode  func() string
	notifier Notifier
	log      zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:          make(map[string]*Room),
		joinCodes:      make(map[string]string),
		secondaryCodes: make(map[string]string),
		connRooms:      make(map[Conn]map[string]struct{}),
		hasher:         BcryptHasher{},
		newCode:        newCode,
		log:            logging.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetNotifier replaces the push notifier. It exists for wiring, where the
// notifier itself needs the registry to invalidate subscriptions.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	r.notifier = n
	r.mu.Unlock()
}

// CreateRoom creates a room with conn's user as its only member and sends
// chatCreated to conn.
func (r *Registry) CreateRoom(conn Conn, userID, username string) Created {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newRoomID()
	for r.rooms[id] != nil {
		id = newRoomID()
	}

	rm := &Room{
		ID:          id,
		DisplayName: DefaultDisplayName,
		CreatorID:   userID,
	}
	rm.JoinCode = r.uniqueCode("")
	rm.SecondaryCode = r.uniqueCode(rm.JoinCode)
	rm.Members = []*Member{{
		UserID:   userID,
		Username: normalizeUsername(username),
		conn:     conn,
	}}

	r.rooms[rm.ID] = rm
	r.joinCodes[rm.JoinCode] = rm.ID
	r.secondaryCodes[rm.SecondaryCode] = rm.ID
	r.attach(conn, rm.ID)

	metrics.Incr(metrics.Rooms, 1)
	metrics.Incr(metrics.Members, 1)
	r.log.Info().Str("room_id", rm.ID).Str("user_id", userID).Msg("room created")

	created := Created{
		RoomID:        rm.ID,
		JoinCode:      rm.JoinCode,
		SecondaryCode: rm.SecondaryCode,
		DisplayName:   rm.DisplayName,
	}
	conn.Send(EventChatCreated, created)
	return created
}

// uniqueCode draws a code not used by any live room and different from not.
func (r *Registry) uniqueCode(not string) string {
	for {
		c := r.newCode()
		if c == not {
			continue
		}
		if _, ok := r.joinCodes[c]; ok {
			continue
		}
		if _, ok := r.secondaryCodes[c]; ok {
			continue
		}
		return c
	}
}

// JoinRoom admits req's user to the room located by req.JoinCode. A user
// that already holds a slot has its connection replaced. On success the
// joiner receives chatJoined and the room receives userOnline. On error
// nothing changes.
func (r *Registry) JoinRoom(req JoinRequest, conn Conn) (Joined, error) {
	// bcrypt is slow; verify outside the lock and let Validate reuse the
	// answer if the hash is unchanged by the time the lock is retaken.
	passwords := r.hasher
	if req.Password != "" {
		r.mu.Lock()
		var hash string
		if rm := r.roomByJoinCode(req.JoinCode); rm != nil {
			hash = rm.PasswordHash
		}
		r.mu.Unlock()

		if hash != "" {
			passwords = checkedPassword{
				PasswordHasher: r.hasher,
				hash:           hash,
				password:       req.Password,
				ok:             r.hasher.Verify(hash, req.Password),
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.roomByJoinCode(req.JoinCode)
	if err := Validate(rm, req, passwords); err != nil {
		return Joined{}, err
	}
	if held := rm.memberByConn(conn); held != nil && held.UserID != req.UserID {
		return Joined{}, ErrConnInUse
	}

	_, m := rm.memberByUserID(req.UserID)
	switch {
	case m == nil:
		m = &Member{
			UserID:   req.UserID,
			Username: normalizeUsername(req.Username),
			conn:     conn,
		}
		rm.Members = append(rm.Members, m)
		metrics.Incr(metrics.Members, 1)
		r.log.Debug().Str("room_id", rm.ID).Str("user_id", m.UserID).Int("members", len(rm.Members)).Msg("member joined")
	case m.conn != conn:
		old := m.conn
		m.conn = conn
		if rm.memberByConn(old) == nil {
			r.detach(old, rm.ID)
		}
		r.log.Debug().Str("room_id", rm.ID).Str("user_id", m.UserID).Msg("member reconnected")
	}
	r.attach(conn, rm.ID)

	joined := Joined{
		RoomID:      rm.ID,
		Members:     rm.memberInfo(),
		DisplayName: rm.DisplayName,
	}
	conn.Send(EventChatJoined, joined)
	r.broadcast(rm, EventUserOnline, MemberInfo{UserID: m.UserID, Username: m.Username})
	return joined, nil
}

// SetRoomName renames the room. The name is trimmed and cut to
// MaxDisplayNameLength runes.
func (r *Registry) SetRoomName(roomID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	name = truncateRunes(name, MaxDisplayNameLength)

	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return ErrUnknownRoom
	}
	rm.DisplayName = name
	r.broadcast(rm, EventChatNameUpdated, NameUpdate{DisplayName: name})
	return nil
}

// SetPassword protects the room with password. Only the creator may do
// this, from the connection it joined on.
func (r *Registry) SetPassword(roomID string, conn Conn, requesterID, password string) error {
	r.mu.Lock()
	_, err := r.creatorRoom(roomID, conn, requesterID)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if password == "" {
		return ErrInvalidPassword
	}

	hash, err := r.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("set password for room %s: %w", roomID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, err := r.creatorRoom(roomID, conn, requesterID)
	if err != nil {
		return err
	}
	rm.PasswordHash = hash
	r.log.Info().Str("room_id", roomID).Msg("room password set")
	r.broadcast(rm, EventPasswordSet, nil)
	return nil
}

// RemovePassword clears the room password. Only the creator may do this,
// and only by presenting the current password. Removing an absent password
// succeeds.
func (r *Registry) RemovePassword(roomID string, conn Conn, requesterID, password string) error {
	r.mu.Lock()
	rm, err := r.creatorRoom(roomID, conn, requesterID)
	var hash string
	if err == nil {
		hash = rm.PasswordHash
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if hash != "" && !r.hasher.Verify(hash, password) {
		return ErrWrongPassword
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, err = r.creatorRoom(roomID, conn, requesterID)
	if err != nil {
		return err
	}
	if rm.PasswordHash != hash {
		// Changed while verifying.
		return ErrWrongPassword
	}
	rm.PasswordHash = ""
	r.log.Info().Str("room_id", roomID).Msg("room password removed")
	r.broadcast(rm, EventPasswordRemoved, nil)
	return nil
}

// creatorRoom must be called with mu held.
func (r *Registry) creatorRoom(roomID string, conn Conn, requesterID string) (*Room, error) {
	rm := r.rooms[roomID]
	if rm == nil {
		return nil, ErrUnknownRoom
	}
	if rm.memberOn(requesterID, conn) == nil {
		return nil, ErrNotMember
	}
	if rm.CreatorID != requesterID {
		return nil, ErrNotCreator
	}
	return rm, nil
}

// RegisterPushSubscription replaces the push subscription of userID, which
// must be the member that joined on conn.
func (r *Registry) RegisterPushSubscription(roomID string, conn Conn, userID string, sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return ErrUnknownRoom
	}
	m := rm.memberOn(userID, conn)
	if m == nil {
		return ErrNotMember
	}
	m.Subscription = sub
	r.log.Debug().Str("room_id", roomID).Str("user_id", userID).Msg("push subscription registered")
	return nil
}

// ClearPushSubscription drops the member's subscription if it is still sub.
// It reports whether anything was cleared.
func (r *Registry) ClearPushSubscription(roomID, userID string, sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return false
	}
	_, m := rm.memberByUserID(userID)
	if m == nil || m.Subscription == nil || m.Subscription != sub {
		return false
	}
	m.Subscription = nil
	return true
}

// RoomExists reports whether the room is still live.
func (r *Registry) RoomExists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.rooms[roomID]
	return ok
}

// IsMember reports whether conn holds a slot in the room.
func (r *Registry) IsMember(roomID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.connRooms[conn][roomID]
	return ok
}

// LookupJoinCode resolves a join code to a room id.
func (r *Registry) LookupJoinCode(code string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.joinCodes[code]
	return id, ok
}

// Snapshot copies a room's current state.
func (r *Registry) Snapshot(roomID string) (RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return RoomSnapshot{}, false
	}
	s := RoomSnapshot{
		ID:            rm.ID,
		JoinCode:      rm.JoinCode,
		SecondaryCode: rm.SecondaryCode,
		DisplayName:   rm.DisplayName,
		CreatorID:     rm.CreatorID,
		HasPassword:   rm.PasswordHash != "",
		Members:       make([]MemberState, len(rm.Members)),
	}
	for i, m := range rm.Members {
		s.Members[i] = MemberState{UserID: m.UserID, Username: m.Username, Subscription: m.Subscription}
	}
	return s, true
}

// Stats counts live rooms and members.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Rooms: len(r.rooms)}
	for _, rm := range r.rooms {
		s.Members += len(rm.Members)
	}
	return s
}

// roomByJoinCode must be called with mu held.
func (r *Registry) roomByJoinCode(code string) *Room {
	id, ok := r.joinCodes[code]
	if !ok {
		return nil
	}
	return r.rooms[id]
}

func normalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultUsername
	}
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
