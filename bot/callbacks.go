package bot

import (
	"context"
	"errors"
	"fmt"

	"music-bot-go/logcolors"
	"music-bot-go/search/providers"
	"music-bot-go/session"

	log "github.com/sirupsen/logrus"
)

// HandleCallback reacts to a pressed keyboard button. Navigation is
// immediate and never goes through the request queue.
func (r *Router) HandleCallback(ctx context.Context, cb Callback) error {
	action, sessionID, index, err := parseCallback(cb.Data)
	if err != nil {
		log.Warnf("%s %v", logcolors.LogSession, err)
		return r.messenger.AnswerCallback(ctx, cb.ID, "")
	}

	switch action {
	case actionSelect:
		return r.callbackSelect(ctx, cb, sessionID, index)
	case actionNext, actionPrev:
		return r.callbackNavigate(ctx, cb, action, sessionID)
	case actionCancel:
		return r.callbackCancel(ctx, cb, sessionID)
	}
	return r.messenger.AnswerCallback(ctx, cb.ID, "")
}

func (r *Router) callbackSelect(ctx context.Context, cb Callback, sessionID string, index int) error {
	track, err := r.sessions.Select(sessionID, index)
	if errors.Is(err, session.ErrExpired) {
		return r.expireKeyboard(ctx, cb)
	}
	if err != nil {
		return r.messenger.AnswerCallback(ctx, cb.ID, "That choice is not available.")
	}

	if err := r.messenger.AnswerCallback(ctx, cb.ID, fmt.Sprintf("Sending %s - %s", track.Artist, track.Title)); err != nil {
		log.Warnf("%s Answering callback: %v", logcolors.LogSession, err)
	}
	return r.sendSelected(ctx, cb, track)
}

// sendSelected delivers a chosen track. The keyboard stays in place so
// another result can be picked from the same search.
func (r *Router) sendSelected(ctx context.Context, cb Callback, track providers.Track) error {
	statusID, err := r.messenger.Notify(ctx, cb.ChatID, fmt.Sprintf("Downloading %s - %s...", track.Artist, track.Title))
	if err != nil {
		return err
	}
	in := Incoming{ChatID: cb.ChatID, UserID: cb.UserID}
	return r.deliverTrack(ctx, in, statusID, track, nil)
}

func (r *Router) callbackNavigate(ctx context.Context, cb Callback, action, sessionID string) error {
	navigate := r.sessions.NextPage
	if action == actionPrev {
		navigate = r.sessions.PrevPage
	}

	sess, err := navigate(sessionID)
	if errors.Is(err, session.ErrExpired) {
		return r.expireKeyboard(ctx, cb)
	}
	if err != nil {
		return err
	}

	if err := r.messenger.Edit(ctx, cb.ChatID, cb.MessageID, pageText(sess), pageKeyboard(sess)); err != nil {
		return err
	}
	return r.messenger.AnswerCallback(ctx, cb.ID, "")
}

func (r *Router) callbackCancel(ctx context.Context, cb Callback, sessionID string) error {
	if err := r.sessions.Cancel(sessionID); err != nil && !errors.Is(err, session.ErrExpired) {
		return err
	}
	if err := r.messenger.Edit(ctx, cb.ChatID, cb.MessageID, "Search cancelled.", nil); err != nil {
		return err
	}
	return r.messenger.AnswerCallback(ctx, cb.ID, "")
}

func (r *Router) expireKeyboard(ctx context.Context, cb Callback) error {
	if err := r.messenger.Edit(ctx, cb.ChatID, cb.MessageID, "This selection has expired. Search again.", nil); err != nil {
		log.Warnf("%s Editing expired keyboard: %v", logcolors.LogSession, err)
	}
	return r.messenger.AnswerCallback(ctx, cb.ID, "Session expired")
}
