package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"music-bot-go/bot"
	"music-bot-go/logcolors"
	"music-bot-go/scheduler"
	"music-bot-go/stats"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// webhookHandler receives Telegram updates. It admits the work and returns
// immediately; Telegram retries any non-2xx response, so even dropped updates
// are acknowledged with 200.
func (app *Application) webhookHandler(w http.ResponseWriter, r *http.Request) {
	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warnf("%s Undecodable update: %v", logcolors.LogServer, err)
		Respond(w).Error(http.StatusBadRequest, map[string]string{"error": "invalid update"})
		return
	}

	switch {
	case update.CallbackQuery != nil:
		app.admitCallback(update.CallbackQuery)
	case update.Message != nil:
		app.admitMessage(update.Message)
	default:
		log.Debugf("%s Ignoring update without message or callback", logcolors.LogServer)
	}

	w.WriteHeader(http.StatusOK)
}

// admitCallback dispatches a button press straight to the router. Callbacks
// bypass the queue: they act on an existing selection session and answering
// them late makes the keyboard feel broken.
func (app *Application) admitCallback(cq *telego.CallbackQuery) {
	userID := strconv.FormatInt(cq.From.ID, 10)
	if !app.limiter.Allow(userID) {
		stats.Get().RecordRateLimitDropped()
		log.Warnf("%s Dropping callback from user %s, rate limited", logcolors.LogServer, userID)
		return
	}
	if cq.Message == nil {
		return
	}

	cb := bot.Callback{
		ID:        cq.ID,
		ChatID:    cq.Message.GetChat().ID,
		MessageID: cq.Message.GetMessageID(),
		UserID:    userID,
		Data:      cq.Data,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := app.router.HandleCallback(ctx, cb); err != nil {
			log.Errorf("%s Callback handling failed for user %s: %v", logcolors.LogBot, userID, err)
		}
	}()
}

// admitMessage pushes a text message into the sender's admission queue.
func (app *Application) admitMessage(msg *telego.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	if !app.limiter.Allow(userID) {
		stats.Get().RecordRateLimitDropped()
		log.Warnf("%s Dropping message from user %s, rate limited", logcolors.LogServer, userID)
		return
	}

	req := scheduler.Request{
		Key:  app.queueKey(userID),
		Text: msg.Text,
		Payload: bot.Incoming{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			UserID:    userID,
			Text:      msg.Text,
		},
	}

	busy, err := app.dispatcher.Enqueue(req)
	if errors.Is(err, scheduler.ErrQueueFull) {
		stats.Get().RecordQueueRejected()
		app.notifyAsync(msg.Chat.ID, "Too many pending requests. Try again in a minute.")
		return
	}
	if busy {
		app.notifyAsync(msg.Chat.ID, "Added to the queue, I will get to it shortly.")
	}
}

// notifyAsync sends a best-effort notice without blocking the webhook reply.
func (app *Application) notifyAsync(chatID int64, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msgID, err := app.messenger.Notify(ctx, chatID, text)
		if err != nil {
			log.Warnf("%s Could not notify chat %d: %v", logcolors.LogBot, chatID, err)
			return
		}
		app.messenger.DeleteAfter(context.Background(), chatID, msgID, 30*time.Second)
	}()
}

// healthHandler reports liveness plus a few cheap gauges.
func (app *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w).JSON(map[string]interface{}{
		"status":        "ok",
		"uptime":        stats.Get().Uptime().String(),
		"store_entries": app.store.Len(),
		"active_queues": len(app.dispatcher.ActiveKeys()),
		"limiter_keys":  app.limiter.Len(),
	})
}

// statsHandler exposes the full counters snapshot.
func (app *Application) statsHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w).JSON(stats.Get().Snapshot())
}

// circuitBreakerHandler reports the state of every search source breaker.
func (app *Application) circuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w).JSON(map[string]interface{}{
		"breakers": app.aggregator.Breakers().Snapshots(),
	})
}

// circuitBreakerResetHandler closes every breaker. Useful after an upstream
// outage ends before the cooldown does.
func (app *Application) circuitBreakerResetHandler(w http.ResponseWriter, r *http.Request) {
	app.aggregator.Breakers().ResetAll()
	log.Infof("%s All circuit breakers reset via API", logcolors.LogServer)
	Respond(w).JSON(map[string]string{"status": "reset"})
}

func parseChatID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}
