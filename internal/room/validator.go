package room

import "crypto/subtle"

// Validate decides whether req may join rm. It has no side effects.
//
// Checks run in a fixed order: the room must exist, the secondary code must
// match, there must be a free slot unless req.UserID already holds one, and
// the password must verify when the room has one. The first failing check
// determines the error.
func Validate(rm *Room, req JoinRequest, passwords PasswordHasher) error {
	if rm == nil {
		return ErrUnknownRoom
	}

	if subtle.ConstantTimeCompare([]byte(rm.SecondaryCode), []byte(req.SecondaryCode)) != 1 {
		return ErrBadSecondaryCode
	}

	if _, m := rm.memberByUserID(req.UserID); m == nil && len(rm.Members) >= MaxMembers {
		return ErrRoomFull
	}

	if rm.PasswordHash != "" {
		if req.Password == "" || !passwords.Verify(rm.PasswordHash, req.Password) {
			return ErrWrongPassword
		}
	}

	return nil
}
