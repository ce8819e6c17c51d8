package delivery

import (
	"context"
	"time"
)

// Button is one inline keyboard button. Data travels back in the callback
// query when the button is pressed.
type Button struct {
	Label string
	Data  string
}

// Keyboard is an inline keyboard layout, rows of buttons.
type Keyboard [][]Button

// Audio is a track upload: raw bytes plus the tags shown in the player.
type Audio struct {
	Data      []byte
	FileName  string
	Title     string
	Performer string
	Duration  int
	Caption   string
	ThumbURL  string
}

// Messenger is the outbound chat surface. The router talks to it instead of
// the Telegram client directly so routing logic stays testable.
type Messenger interface {
	// Notify sends a text message and returns its message id.
	Notify(ctx context.Context, chatID int64, text string) (int, error)
	// NotifyWithKeyboard sends a text message carrying an inline keyboard.
	NotifyWithKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	// Edit replaces the text (and keyboard) of an existing message.
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	// Delete removes a message.
	Delete(ctx context.Context, chatID int64, messageID int) error
	// DeleteAfter removes a message once delay passes. The timer dies with
	// ctx, so a cancelled request never fires a stray delete later.
	DeleteAfter(ctx context.Context, chatID int64, messageID int, delay time.Duration)
	// SendAudio uploads a track and returns its message id.
	SendAudio(ctx context.Context, chatID int64, audio Audio) (int, error)
	// SendVideoByURL has Telegram fetch the video from url and returns the
	// resulting file id for re-sending later.
	SendVideoByURL(ctx context.Context, chatID int64, url, caption string) (string, error)
	// SendVideoByFileID re-sends a video Telegram already stores.
	SendVideoByFileID(ctx context.Context, chatID int64, fileID, caption string) error
	// AnswerCallback acknowledges a callback query, optionally with a toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
