// Package protocol defines the JSON frames exchanged over the room socket.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
)

const (
	TypeJoin           = "room:join"
	TypeState          = "room:state"
	TypeError          = "room:error"
	TypeHistory        = "chat:history"
	TypeUserList       = "user:list"
	TypeVideoAction    = "video:action"
	TypeChatMessage    = "chat:message"
	TypeChatReaction   = "chat:reaction"
	TypePlaylistUpdate = "playlist:update"
	TypeThemeUpdate    = "theme:update"
	TypeOffer          = "webrtc:offer"
	TypeAnswer         = "webrtc:answer"
	TypeICE            = "webrtc:ice"
	TypeNewPeer        = "webrtc:new-peer"
	TypeRemovePeer     = "webrtc:remove-peer"
	TypePing           = "ping"
	TypePong           = "pong"
)

// Message is an outbound frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ActionKind string

const (
	ActionPlay  ActionKind = "play"
	ActionPause ActionKind = "pause"
	ActionSeek  ActionKind = "seek"
	ActionLoad  ActionKind = "load"
)

type ErrorPayload struct {
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

type VideoActionRelay struct {
	Kind       ActionKind      `json:"kind"`
	Source     *domain.Source  `json:"source,omitempty"`
	TargetTime *float64        `json:"targetTime,omitempty"`
	Ts         int64           `json:"ts"`
	From       domain.Identity `json:"from"`
}

type ReactionDelta struct {
	EntryID   string   `json:"entryId"`
	Emoji     string   `json:"emoji"`
	Reactions []string `json:"reactions"`
}

type SignalDelivery struct {
	From    domain.Identity `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type PeerRemoved struct {
	Identity domain.Identity `json:"identity"`
}

func State(st domain.PlaybackState) Message {
	return Message{Type: TypeState, Payload: st}
}

func History(entries []domain.ChatEntry) Message {
	if entries == nil {
		entries = []domain.ChatEntry{}
	}
	return Message{Type: TypeHistory, Payload: entries}
}

func UserList(members []domain.Member) Message {
	if members == nil {
		members = []domain.Member{}
	}
	return Message{Type: TypeUserList, Payload: members}
}

func NewPeer(m domain.Member) Message {
	return Message{Type: TypeNewPeer, Payload: m}
}

func RemovePeer(id domain.Identity) Message {
	return Message{Type: TypeRemovePeer, Payload: PeerRemoved{Identity: id}}
}

func Pong() Message { return Message{Type: TypePong} }

var userMessages = map[string]string{
	domain.CodeValidation:  "invalid request",
	domain.CodeNotFound:    "not found",
	domain.CodePersistence: "room storage is unavailable, try again",
	domain.CodeNotJoined:   "join the room first",
	domain.CodeInternal:    "internal error",
}

// Error renders err as a room:error frame for the originating connection.
func Error(err error) Message {
	code, retryable := domain.Classify(err)
	msg := userMessages[code]
	if msg == "" {
		msg = code
	}
	return Message{Type: TypeError, Payload: ErrorPayload{
		Message:   msg,
		Detail:    err.Error(),
		Code:      code,
		Retryable: retryable,
	}}
}

// ErrorCode renders a room:error with an explicit code, e.g. rate_limited.
func ErrorCode(code, message string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Message: message, Code: code}}
}

var ErrUnknownType = errors.New("unknown message type")
