package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

const (
	DefaultTheme = "default"

	MaxRoomIDLen   = 64
	MaxThemeLen    = 32
	MaxPlaylistLen = 500
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type RoomID string

func (id RoomID) String() string { return string(id) }

// Validate checks the id is a short opaque token safe to embed in URLs and subjects.
func (id RoomID) Validate() error {
	if id == "" {
		return Validation("room id is required")
	}
	if len(id) > MaxRoomIDLen {
		return Validation(fmt.Sprintf("room id exceeds %d characters", MaxRoomIDLen))
	}
	if !roomIDPattern.MatchString(string(id)) {
		return Validation("room id may contain only letters, digits, '-' and '_'")
	}
	return nil
}

type Room struct {
	ID           RoomID        `json:"id"`
	State        PlaybackState `json:"state"`
	LastActiveAt time.Time     `json:"lastActiveAt"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type Source struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type PlaylistItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PlaybackState is the per-room document every member converges on.
type PlaybackState struct {
	Source       *Source        `json:"source"`
	IsPlaying    bool           `json:"isPlaying"`
	Time         float64        `json:"time"`
	LastActionTs int64          `json:"lastActionTs"`
	Playlist     []PlaylistItem `json:"playlist"`
	Theme        string         `json:"theme"`
}

func DefaultPlaybackState() PlaybackState {
	return PlaybackState{
		Playlist: []PlaylistItem{},
		Theme:    DefaultTheme,
	}
}

// DecodeState reads a stored state document over the default shape so that
// fields missing from older records come back with their defaults.
func DecodeState(raw []byte) (PlaybackState, error) {
	st := DefaultPlaybackState()
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return PlaybackState{}, fmt.Errorf("decode playback state: %w", err)
	}
	return st.normalize(), nil
}

func EncodeState(st PlaybackState) ([]byte, error) {
	return json.Marshal(st.normalize())
}

func (s PlaybackState) normalize() PlaybackState {
	if s.Playlist == nil {
		s.Playlist = []PlaylistItem{}
	}
	if s.Theme == "" {
		s.Theme = DefaultTheme
	}
	return s
}

// Clone returns a copy that shares no slices or pointers with s.
func (s PlaybackState) Clone() PlaybackState {
	out := s
	if s.Source != nil {
		src := *s.Source
		out.Source = &src
	}
	out.Playlist = make([]PlaylistItem, len(s.Playlist))
	copy(out.Playlist, s.Playlist)
	return out.normalize()
}

// StatePatch carries the fields a writer wants to replace. Nil means "keep".
type StatePatch struct {
	Source       *Source         `json:"source,omitempty"`
	IsPlaying    *bool           `json:"isPlaying,omitempty"`
	Time         *float64        `json:"time,omitempty"`
	LastActionTs *int64          `json:"lastActionTs,omitempty"`
	Playlist     *[]PlaylistItem `json:"playlist,omitempty"`
	Theme        *string         `json:"theme,omitempty"`
}

func (p StatePatch) Empty() bool {
	return p.Source == nil && p.IsPlaying == nil && p.Time == nil &&
		p.LastActionTs == nil && p.Playlist == nil && p.Theme == nil
}

// Apply overwrites the fields present in p and leaves the rest untouched.
func (p StatePatch) Apply(cur PlaybackState) PlaybackState {
	next := cur.Clone()
	if p.Source != nil {
		src := *p.Source
		next.Source = &src
	}
	if p.IsPlaying != nil {
		next.IsPlaying = *p.IsPlaying
	}
	if p.Time != nil {
		next.Time = *p.Time
	}
	if p.LastActionTs != nil {
		next.LastActionTs = *p.LastActionTs
	}
	if p.Playlist != nil {
		next.Playlist = make([]PlaylistItem, len(*p.Playlist))
		copy(next.Playlist, *p.Playlist)
	}
	if p.Theme != nil {
		next.Theme = *p.Theme
	}
	return next.normalize()
}

func (p StatePatch) Validate() error {
	if p.Source != nil && p.Source.URL == "" {
		return Validation("source.url is required")
	}
	if p.Time != nil && *p.Time < 0 {
		return Validation("time must not be negative")
	}
	if p.Playlist != nil {
		if err := ValidatePlaylist(*p.Playlist); err != nil {
			return err
		}
	}
	if p.Theme != nil {
		if err := ValidateTheme(*p.Theme); err != nil {
			return err
		}
	}
	return nil
}

func ValidatePlaylist(items []PlaylistItem) error {
	if len(items) > MaxPlaylistLen {
		return Validation(fmt.Sprintf("playlist exceeds %d items", MaxPlaylistLen))
	}
	for i, it := range items {
		if it.URL == "" {
			return Validation(fmt.Sprintf("playlist[%d].url is required", i))
		}
	}
	return nil
}

func ValidateTheme(theme string) error {
	if theme == "" || len(theme) > MaxThemeLen {
		return Validation(fmt.Sprintf("theme must be 1-%d characters", MaxThemeLen))
	}
	return nil
}
