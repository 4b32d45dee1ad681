package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxIdentityLen  = 64
	MaxNameLen      = 64
	MaxAvatarRefLen = 512
)

type Identity string

// Member is a participant of a room as the other members see it.
type Member struct {
	Identity  Identity `json:"identity"`
	Name      string   `json:"name"`
	AvatarRef string   `json:"avatarRef"`
}

func NewMember(identity, name, avatarRef string) (Member, error) {
	m := Member{
		Identity:  Identity(strings.TrimSpace(identity)),
		Name:      strings.TrimSpace(name),
		AvatarRef: strings.TrimSpace(avatarRef),
	}
	if err := m.Validate(); err != nil {
		return Member{}, err
	}
	return m, nil
}

func (m Member) Validate() error {
	if m.Identity == "" || len(m.Identity) > MaxIdentityLen {
		return Validation(fmt.Sprintf("identity must be 1-%d characters", MaxIdentityLen))
	}
	if n := utf8.RuneCountInString(m.Name); n == 0 || n > MaxNameLen {
		return Validation(fmt.Sprintf("name must be 1-%d characters", MaxNameLen))
	}
	if len(m.AvatarRef) > MaxAvatarRefLen {
		return Validation(fmt.Sprintf("avatarRef exceeds %d characters", MaxAvatarRefLen))
	}
	return nil
}

// MemberRecord is the durable membership row keyed by (RoomID, Identity).
type MemberRecord struct {
	RoomID RoomID
	Member
	JoinedAt time.Time
}
