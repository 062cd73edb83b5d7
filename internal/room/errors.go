package room

import "errors"

// Kind classifies registry errors.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindCapacity
	KindNotFound
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindCapacity:
		return "capacity"
	case KindNotFound:
		return "not_found"
	case KindDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// Error is a classified registry error. The package exports its sentinel
// values; compare with errors.Is.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrUnknownRoom      = &Error{Kind: KindNotFound, msg: "unknown or expired chat code"}
	ErrBadSecondaryCode = &Error{Kind: KindAuthorization, msg: "invalid secondary code"}
	ErrRoomFull         = &Error{Kind: KindCapacity, msg: "chat room is full"}
	ErrWrongPassword    = &Error{Kind: KindAuthorization, msg: "wrong password"}
	ErrNotCreator       = &Error{Kind: KindAuthorization, msg: "only the creator may change the password"}
	ErrNotMember        = &Error{Kind: KindAuthorization, msg: "not a member of this room"}
	ErrConnInUse        = &Error{Kind: KindAuthorization, msg: "connection already joined this room as another user"}
	ErrInvalidName      = &Error{Kind: KindValidation, msg: "room name must not be blank"}
	ErrInvalidPassword  = &Error{Kind: KindValidation, msg: "password must not be empty"}
	ErrDeliveryFailed   = &Error{Kind: KindDelivery, msg: "push delivery failed"}
)

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
