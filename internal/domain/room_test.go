package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeState_FillsDefaults(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"empty object":  `{}`,
		"null playlist": `{"playlist":null,"theme":""}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			st, err := DecodeState([]byte(raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if st.Source != nil || st.IsPlaying || st.Time != 0 || st.LastActionTs != 0 {
				t.Fatalf("unexpected non-default scalar fields: %+v", st)
			}
			if st.Playlist == nil || len(st.Playlist) != 0 {
				t.Fatalf("playlist should be empty non-nil, got %#v", st.Playlist)
			}
			if st.Theme != DefaultTheme {
				t.Fatalf("theme = %q, want %q", st.Theme, DefaultTheme)
			}
		})
	}
}

func TestDecodeState_KeepsStoredFields(t *testing.T) {
	st, err := DecodeState([]byte(`{"isPlaying":true,"time":12.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.IsPlaying || st.Time != 12.5 || st.Theme != DefaultTheme {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestDefaultState_MarshalsEveryField(t *testing.T) {
	b, err := EncodeState(DefaultPlaybackState())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"source", "isPlaying", "time", "lastActionTs", "playlist", "theme"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("field %q missing from %s", k, b)
		}
	}
	if pl, ok := m["playlist"].([]any); !ok || len(pl) != 0 {
		t.Fatalf("playlist should encode as [], got %v", m["playlist"])
	}
}

func TestStatePatch_ApplyReplacesOnlyPresentFields(t *testing.T) {
	cur := DefaultPlaybackState()
	cur.Playlist = []PlaylistItem{{Title: "a", URL: "u1"}}
	cur.Theme = "dark"

	playing := true
	at := 30.0
	next := StatePatch{IsPlaying: &playing, Time: &at}.Apply(cur)

	if !next.IsPlaying || next.Time != 30 {
		t.Fatalf("patched fields not applied: %+v", next)
	}
	if next.Theme != "dark" || len(next.Playlist) != 1 {
		t.Fatalf("untouched fields changed: %+v", next)
	}

	empty := []PlaylistItem{}
	cleared := StatePatch{Playlist: &empty}.Apply(next)
	if len(cleared.Playlist) != 0 {
		t.Fatalf("playlist should be replaced wholesale, got %v", cleared.Playlist)
	}
	if len(next.Playlist) != 1 {
		t.Fatal("apply must not mutate its input")
	}
}

func TestStatePatch_Validate(t *testing.T) {
	neg := -1.0
	long := "a-theme-name-that-is-way-too-long-for-us"
	cases := []struct {
		name  string
		patch StatePatch
		ok    bool
	}{
		{"empty", StatePatch{}, true},
		{"negative time", StatePatch{Time: &neg}, false},
		{"source without url", StatePatch{Source: &Source{Type: "youtube"}}, false},
		{"long theme", StatePatch{Theme: &long}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRoomID_Validate(t *testing.T) {
	for _, id := range []RoomID{"ABC123", "movie_night-2"} {
		if err := id.Validate(); err != nil {
			t.Fatalf("%q: unexpected error %v", id, err)
		}
	}
	for _, id := range []RoomID{"", "has space", "slash/es"} {
		if err := id.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", id, err)
		}
	}
}

func TestClassify(t *testing.T) {
	code, retry := Classify(Persistence("merge", errors.New("conn reset")))
	if code != CodePersistence || !retry {
		t.Fatalf("persistence: got %s/%v", code, retry)
	}
	code, retry = Classify(Validation("bad"))
	if code != CodeValidation || retry {
		t.Fatalf("validation: got %s/%v", code, retry)
	}
}
