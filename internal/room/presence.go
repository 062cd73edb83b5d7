package room

import "github.com/Tyrowin/trio/internal/metrics"

// attach records that conn is in roomID. Must be called with mu held.
func (r *Registry) attach(conn Conn, roomID string) {
	set, ok := r.connRooms[conn]
	if !ok {
		set = make(map[string]struct{})
		r.connRooms[conn] = set
	}
	set[roomID] = struct{}{}
}

// detach must be called with mu held.
func (r *Registry) detach(conn Conn, roomID string) {
	set, ok := r.connRooms[conn]
	if !ok {
		return
	}
	delete(set, roomID)
	if len(set) == 0 {
		delete(r.connRooms, conn)
	}
}

// DetachConnection removes every member slot held by conn, tells the
// remaining members and deletes rooms that become empty. Calling it again
// for the same conn does nothing.
func (r *Registry) DetachConnection(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomIDs, ok := r.connRooms[conn]
	if !ok {
		return
	}
	delete(r.connRooms, conn)

	for id := range roomIDs {
		rm := r.rooms[id]
		if rm == nil {
			continue
		}

		var gone []*Member
		kept := make([]*Member, 0, len(rm.Members))
		for _, m := range rm.Members {
			if m.conn == conn {
				gone = append(gone, m)
				continue
			}
			kept = append(kept, m)
		}
		rm.Members = kept
		metrics.Decr(metrics.Members, int64(len(gone)))

		if len(kept) == 0 {
			r.deleteRoom(rm)
			continue
		}
		for _, m := range gone {
			r.log.Debug().Str("room_id", rm.ID).Str("user_id", m.UserID).Int("members", len(kept)).Msg("member left")
			r.broadcast(rm, EventUserOffline, MemberInfo{UserID: m.UserID, Username: m.Username})
		}
	}
}

// deleteRoom removes rm and both of its codes. Must be called with mu held.
func (r *Registry) deleteRoom(rm *Room) {
	delete(r.rooms, rm.ID)
	delete(r.joinCodes, rm.JoinCode)
	delete(r.secondaryCodes, rm.SecondaryCode)
	metrics.Decr(metrics.Rooms, 1)
	r.log.Info().Str("room_id", rm.ID).Msg("room deleted")
}

// SetUsername renames the member userID joined on conn and announces the
// new name with userOnline. A blank name becomes DefaultUsername.
func (r *Registry) SetUsername(roomID string, conn Conn, userID, username string) error {
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
	m.Username = normalizeUsername(username)
	r.broadcast(rm, EventUserOnline, MemberInfo{UserID: m.UserID, Username: m.Username})
	return nil
}

// broadcast sends an event to each distinct member connection of rm.
// Must be called with mu held.
func (r *Registry) broadcast(rm *Room, event string, payload interface{}) {
	seen := make(map[Conn]struct{}, len(rm.Members))
	for _, m := range rm.Members {
		if _, dup := seen[m.conn]; dup {
			continue
		}
		seen[m.conn] = struct{}{}
		if !m.conn.Send(event, payload) {
			r.log.Debug().Str("room_id", rm.ID).Str("user_id", m.UserID).Str("event", event).Msg("event not queued")
		}
	}
}
