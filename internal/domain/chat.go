package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxChatTextLen = 4000
	MaxEmojiLen    = 32
)

type ChatEntry struct {
	ID        string   `json:"id"`
	RoomID    RoomID   `json:"-"`
	Sender    Member   `json:"sender"`
	Text      string   `json:"text"`
	Reactions []string `json:"reactions"`
	Ts        int64    `json:"ts"`
}

func NormalizeChatText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", Validation("empty message")
	}
	if utf8.RuneCountInString(text) > MaxChatTextLen {
		return "", Validation(fmt.Sprintf("message exceeds %d characters", MaxChatTextLen))
	}
	return text, nil
}

func ValidateEmoji(emoji string) error {
	if emoji == "" || len(emoji) > MaxEmojiLen || strings.TrimSpace(emoji) == "" {
		return Validation(fmt.Sprintf("emoji must be 1-%d bytes", MaxEmojiLen))
	}
	return nil
}
