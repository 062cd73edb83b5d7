package room

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// TestValidate tests join checks and their order.
// It verifies that the first failing check decides the error.
func TestValidate(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("pw")
	if err != nil {
		t.Fatal(err)
	}

	members := func(ids ...string) []*Member {
		out := make([]*Member, len(ids))
		for i, id := range ids {
			out[i] = &Member{UserID: id}
		}
		return out
	}

	open := &Room{JoinCode: "join", SecondaryCode: "second", Members: members("a")}
	full := &Room{JoinCode: "join", SecondaryCode: "second", Members: members("a", "b", "c")}
	locked := &Room{JoinCode: "join", SecondaryCode: "second", PasswordHash: hash, Members: members("a")}
	fullLocked := &Room{JoinCode: "join", SecondaryCode: "second", PasswordHash: hash, Members: members("a", "b", "c")}

	tests := []struct {
		name    string
		room    *Room
		req     JoinRequest
		wantErr error
	}{
		{"no room", nil, JoinRequest{SecondaryCode: "second", UserID: "x"}, ErrUnknownRoom},
		{"ok", open, JoinRequest{SecondaryCode: "second", UserID: "x"}, nil},
		{"bad secondary before capacity", full, JoinRequest{SecondaryCode: "nope", UserID: "x"}, ErrBadSecondaryCode},
		{"full", full, JoinRequest{SecondaryCode: "second", UserID: "x"}, ErrRoomFull},
		{"full but already member", full, JoinRequest{SecondaryCode: "second", UserID: "b"}, nil},
		{"capacity before password", fullLocked, JoinRequest{SecondaryCode: "second", UserID: "x", Password: "pw"}, ErrRoomFull},
		{"password missing", locked, JoinRequest{SecondaryCode: "second", UserID: "x"}, ErrWrongPassword},
		{"password wrong", locked, JoinRequest{SecondaryCode: "second", UserID: "x", Password: "nope"}, ErrWrongPassword},
		{"password right", locked, JoinRequest{SecondaryCode: "second", UserID: "x", Password: "pw"}, nil},
		{"member still needs password", locked, JoinRequest{SecondaryCode: "second", UserID: "a"}, ErrWrongPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.room, tt.req, hasher)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestCheckedPassword tests reuse of an earlier password verification.
func TestCheckedPassword(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("pw")
	if err != nil {
		t.Fatal(err)
	}

	c := checkedPassword{PasswordHasher: hasher, hash: hash, password: "pw", ok: false}
	if c.Verify(hash, "pw") {
		t.Error("cached answer ignored")
	}

	other, err := hasher.Hash("other")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Verify(other, "other") {
		t.Error("different hash must fall back to the real hasher")
	}
}

// TestBcryptHasher tests hashing and verification.
func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(99)
	if h.Cost != bcrypt.DefaultCost {
		t.Errorf("out of range cost = %d", h.Cost)
	}

	h = NewBcryptHasher(bcrypt.MinCost)
	if _, err := h.Hash(""); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Hash(\"\") = %v", err)
	}
	a, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("hashes of the same password must be salted")
	}
	if !h.Verify(a, "same") || h.Verify(a, "different") || h.Verify("", "same") {
		t.Error("Verify returned wrong results")
	}
}

// TestKindOf tests error classification.
func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrUnknownRoom, KindNotFound},
		{ErrBadSecondaryCode, KindAuthorization},
		{ErrRoomFull, KindCapacity},
		{ErrInvalidName, KindValidation},
		{ErrDeliveryFailed, KindDelivery},
		{fmt.Errorf("join: %w", ErrWrongPassword), KindAuthorization},
		{errors.New("plain"), 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
