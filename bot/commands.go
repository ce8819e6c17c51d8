package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"music-bot-go/logcolors"
	"music-bot-go/reels"

	log "github.com/sirupsen/logrus"
)

// loginNoticeTTL is how long the login confirmation stays in the chat.
const loginNoticeTTL = time.Minute

const welcomeText = `Send me a song name, a track link from Yandex Music, Zvuk or MTS Music, or an Instagram post link.

Commands:
/igpass <username> <password> - log in to Instagram
/iglogout - forget the Instagram session`

func (r *Router) handleCommand(ctx context.Context, in Incoming) error {
	fields := strings.Fields(in.Text)
	command := strings.ToLower(fields[0])
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start", "/help":
		_, err := r.messenger.Notify(ctx, in.ChatID, welcomeText)
		return err
	case "/igpass":
		return r.commandLogin(ctx, in, fields[1:])
	case "/iglogout":
		return r.commandLogout(ctx, in)
	}

	_, err := r.messenger.Notify(ctx, in.ChatID, "Unknown command. Try /start.")
	return err
}

func (r *Router) commandLogin(ctx context.Context, in Incoming, args []string) error {
	// The message holds a plain-text password; scrub it from the chat
	// whether or not the login works.
	if err := r.messenger.Delete(ctx, in.ChatID, in.MessageID); err != nil {
		log.Warnf("%s Could not delete credentials message: %v", logcolors.LogReels, err)
	}

	if len(args) != 2 {
		_, err := r.messenger.Notify(ctx, in.ChatID, "Usage: /igpass <username> <password>")
		return err
	}

	err := r.reels.Authorize(ctx, in.UserID, args[0], args[1])
	switch {
	case errors.Is(err, reels.ErrChallengeRequired):
		_, nerr := r.messenger.Notify(ctx, in.ChatID, "Instagram asks for a checkpoint. Confirm the login in the app and try again.")
		return nerr
	case errors.Is(err, reels.ErrBadCredentials):
		_, nerr := r.messenger.Notify(ctx, in.ChatID, "Instagram rejected that username and password.")
		return nerr
	case err != nil:
		if _, nerr := r.messenger.Notify(ctx, in.ChatID, "The login failed. Try again later."); nerr != nil {
			return nerr
		}
		return err
	}

	noticeID, err := r.messenger.Notify(ctx, in.ChatID, "Logged in. Send me a post link.")
	if err != nil {
		return err
	}
	r.messenger.DeleteAfter(ctx, in.ChatID, noticeID, loginNoticeTTL)
	return nil
}

func (r *Router) commandLogout(ctx context.Context, in Incoming) error {
	text := "You were not logged in."
	if r.reels.Logout(in.UserID) {
		text = "Instagram session forgotten."
	}
	_, err := r.messenger.Notify(ctx, in.ChatID, text)
	return err
}
