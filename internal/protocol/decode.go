package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwrk-planet/watch-buddy/internal/domain"

	"github.com/pion/webrtc/v4"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound is one decoded and validated client frame.
type Inbound interface {
	MessageType() string
}

type Join struct {
	Member domain.Member
}

type VideoAction struct {
	Kind       ActionKind     `json:"kind"`
	Source     *domain.Source `json:"source,omitempty"`
	TargetTime *float64       `json:"targetTime,omitempty"`
}

type ChatSend struct {
	Text string `json:"text"`
}

type ChatReaction struct {
	EntryID string `json:"entryId"`
	Emoji   string `json:"emoji"`
}

type PlaylistUpdate struct {
	Items []domain.PlaylistItem
}

type ThemeUpdate struct {
	Theme string
}

// Signal is a WebRTC negotiation payload addressed to one identity.
// Payload is forwarded as received.
type Signal struct {
	Type    string
	To      domain.Identity
	Payload json.RawMessage
}

type Ping struct{}

func (Join) MessageType() string           { return TypeJoin }
func (VideoAction) MessageType() string    { return TypeVideoAction }
func (ChatSend) MessageType() string       { return TypeChatMessage }
func (ChatReaction) MessageType() string   { return TypeChatReaction }
func (PlaylistUpdate) MessageType() string { return TypePlaylistUpdate }
func (ThemeUpdate) MessageType() string    { return TypeThemeUpdate }
func (s Signal) MessageType() string       { return s.Type }
func (Ping) MessageType() string           { return TypePing }

// Decode parses a frame into its typed payload. Every error wraps domain.ErrValidation.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domain.Validation("malformed frame: " + err.Error())
	}

	switch env.Type {
	case TypeJoin:
		var p struct {
			Identity  string `json:"identity"`
			Name      string `json:"name"`
			AvatarRef string `json:"avatarRef"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		m, err := domain.NewMember(p.Identity, p.Name, p.AvatarRef)
		if err != nil {
			return nil, err
		}
		return Join{Member: m}, nil

	case TypeVideoAction:
		var p VideoAction
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		return p, nil

	case TypeChatMessage:
		var p ChatSend
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		text, err := domain.NormalizeChatText(p.Text)
		if err != nil {
			return nil, err
		}
		return ChatSend{Text: text}, nil

	case TypeChatReaction:
		var p ChatReaction
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		if p.EntryID == "" {
			return nil, domain.Validation("entryId is required")
		}
		if err := domain.ValidateEmoji(p.Emoji); err != nil {
			return nil, err
		}
		return p, nil

	case TypePlaylistUpdate:
		var items []domain.PlaylistItem
		if err := unmarshalPayload(env, &items); err != nil {
			return nil, err
		}
		if items == nil {
			items = []domain.PlaylistItem{}
		}
		if err := domain.ValidatePlaylist(items); err != nil {
			return nil, err
		}
		return PlaylistUpdate{Items: items}, nil

	case TypeThemeUpdate:
		var theme string
		if err := unmarshalPayload(env, &theme); err != nil {
			return nil, err
		}
		if err := domain.ValidateTheme(theme); err != nil {
			return nil, err
		}
		return ThemeUpdate{Theme: theme}, nil

	case TypeOffer, TypeAnswer, TypeICE:
		return decodeSignal(env)

	case TypePing:
		return Ping{}, nil

	case "":
		return nil, domain.Validation("frame type is required")
	default:
		return nil, fmt.Errorf("%w: %w %q", domain.ErrValidation, ErrUnknownType, env.Type)
	}
}

func (a VideoAction) validate() error {
	switch a.Kind {
	case ActionPlay, ActionPause, ActionSeek, ActionLoad:
	default:
		return domain.Validation(fmt.Sprintf("unknown video action %q", a.Kind))
	}
	if a.Kind == ActionLoad && a.Source == nil {
		return domain.Validation("load requires a source")
	}
	if a.Source != nil && a.Source.URL == "" {
		return domain.Validation("source.url is required")
	}
	if a.TargetTime != nil && *a.TargetTime < 0 {
		return domain.Validation("targetTime must not be negative")
	}
	return nil
}

// Patch converts the action into the state fields it replaces.
// lastActionTs is the coordinator's receive time, not the client's.
func (a VideoAction) Patch(receivedMs int64) domain.StatePatch {
	patch := domain.StatePatch{
		Source:       a.Source,
		Time:         a.TargetTime,
		LastActionTs: &receivedMs,
	}
	switch a.Kind {
	case ActionPlay:
		playing := true
		patch.IsPlaying = &playing
	case ActionPause:
		playing := false
		patch.IsPlaying = &playing
	}
	return patch
}

func decodeSignal(env envelope) (Inbound, error) {
	var p struct {
		To      string          `json:"to"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := unmarshalPayload(env, &p); err != nil {
		return nil, err
	}
	to := strings.TrimSpace(p.To)
	if to == "" {
		return nil, domain.Validation("signaling target 'to' is required")
	}
	if len(p.Payload) == 0 || bytes.Equal(p.Payload, []byte("null")) {
		return nil, domain.Validation("signaling payload is required")
	}

	switch env.Type {
	case TypeOffer, TypeAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(p.Payload, &sd); err != nil {
			return nil, domain.Validation("invalid session description: " + err.Error())
		}
		want := webrtc.SDPTypeOffer
		if env.Type == TypeAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if sd.Type != want || sd.SDP == "" {
			return nil, domain.Validation(fmt.Sprintf("%s needs a %s session description", env.Type, want))
		}
	case TypeICE:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(p.Payload, &cand); err != nil {
			return nil, domain.Validation("invalid ice candidate: " + err.Error())
		}
	}

	return Signal{Type: env.Type, To: domain.Identity(to), Payload: p.Payload}, nil
}

func unmarshalPayload(env envelope, dst any) error {
	if len(env.Payload) == 0 || bytes.Equal(env.Payload, []byte("null")) {
		return domain.Validation(env.Type + ": payload is required")
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return domain.Validation(env.Type + ": " + err.Error())
	}
	return nil
}
