package room

import "github.com/google/uuid"

// codeLength is the length of join and secondary codes.
const codeLength = 8

func newRoomID() string {
	return uuid.NewString()
}

// newCode returns the first eight hex characters of a fresh UUIDv4.
func newCode() string {
	return uuid.NewString()[:codeLength]
}
