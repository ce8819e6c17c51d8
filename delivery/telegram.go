package delivery

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"music-bot-go/config"
	"music-bot-go/logcolors"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// Telegram implements Messenger on the Bot API via telego. Updates arrive
// through the webhook served by the HTTP surface, not long polling.
type Telegram struct {
	bot *telego.Bot
}

// NewTelegram builds the bot from the configured token.
func NewTelegram(opts ...telego.BotOption) (*Telegram, error) {
	cfg := config.Get()
	bot, err := telego.NewBot(cfg.Telegram.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

// InstallWebhook points Telegram at the configured webhook URL. A webhook
// already set to the same URL is left alone; a different one is replaced.
func (t *Telegram) InstallWebhook(ctx context.Context) error {
	cfg := config.Get()
	target := cfg.Telegram.WebhookHost + cfg.Telegram.WebhookPath

	info, err := t.bot.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.URL == target {
		log.Infof("%s Webhook already set to %s", logcolors.LogServer, target)
		return nil
	}
	if info.URL != "" {
		if err := t.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			return fmt.Errorf("delete stale webhook: %w", err)
		}
	}

	err = t.bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            target,
		SecretToken:    cfg.Telegram.WebhookSecret,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Infof("%s Webhook installed at %s", logcolors.LogServer, target)
	return nil
}

// RemoveWebhook detaches the webhook on shutdown.
func (t *Telegram) RemoveWebhook(ctx context.Context) error {
	return t.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{})
}

func (t *Telegram) Notify(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (t *Telegram) NotifyWithKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	params := tu.Message(tu.ID(chatID), text)
	params.ReplyMarkup = toMarkup(kb)
	msg, err := t.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	_, err := t.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      tu.ID(chatID),
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: toMarkup(kb),
	})
	return err
}

func (t *Telegram) Delete(ctx context.Context, chatID int64, messageID int) error {
	return t.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
}

func (t *Telegram) DeleteAfter(ctx context.Context, chatID int64, messageID int, delay time.Duration) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		// The wait ran on the caller's context; the delete itself gets a
		// short one of its own so it still lands after the request ends.
		deleteCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.Delete(deleteCtx, chatID, messageID); err != nil {
			log.Warnf("%s Delayed delete of message %d failed: %v", logcolors.LogDeliver, messageID, err)
		}
	}()
}

func (t *Telegram) SendAudio(ctx context.Context, chatID int64, audio Audio) (int, error) {
	params := &telego.SendAudioParams{
		ChatID:    tu.ID(chatID),
		Audio:     tu.File(tu.NameReader(bytes.NewReader(audio.Data), audio.FileName)),
		Title:     audio.Title,
		Performer: audio.Performer,
		Duration:  audio.Duration,
		Caption:   audio.Caption,
	}
	if audio.ThumbURL != "" {
		thumb := tu.FileFromURL(audio.ThumbURL)
		params.Thumbnail = &thumb
	}
	msg, err := t.bot.SendAudio(ctx, params)
	if err != nil {
		return 0, err
	}
	log.Infof("%s Sent audio %q to chat %d", logcolors.LogDeliver, audio.Title, chatID)
	return msg.MessageID, nil
}

func (t *Telegram) SendVideoByURL(ctx context.Context, chatID int64, url, caption string) (string, error) {
	msg, err := t.bot.SendVideo(ctx, &telego.SendVideoParams{
		ChatID:  tu.ID(chatID),
		Video:   tu.FileFromURL(url),
		Caption: caption,
	})
	if err != nil {
		return "", err
	}
	if msg.Video == nil {
		return "", nil
	}
	return msg.Video.FileID, nil
}

func (t *Telegram) SendVideoByFileID(ctx context.Context, chatID int64, fileID, caption string) error {
	_, err := t.bot.SendVideo(ctx, &telego.SendVideoParams{
		ChatID:  tu.ID(chatID),
		Video:   tu.FileFromID(fileID),
		Caption: caption,
	})
	return err
}

func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return t.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}

func toMarkup(kb Keyboard) *telego.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telego.InlineKeyboardButton{Text: b.Label, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}
