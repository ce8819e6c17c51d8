package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"music-bot-go/bot"
	"music-bot-go/cache"
	"music-bot-go/circuitbreaker"
	"music-bot-go/config"
	"music-bot-go/delivery"
	"music-bot-go/gemini"
	"music-bot-go/logcolors"
	"music-bot-go/middleware"
	"music-bot-go/proxy"
	"music-bot-go/reels"
	"music-bot-go/scheduler"
	"music-bot-go/search"
	"music-bot-go/search/providers"
	"music-bot-go/session"
	"music-bot-go/stats"
	"music-bot-go/tracks"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Application holds every wired component of the bot.
type Application struct {
	store      *cache.Store
	statsStore *stats.Store
	messenger  *delivery.Telegram
	router     *bot.Router
	dispatcher *scheduler.Dispatcher
	aggregator *search.Aggregator
	limiter    *middleware.KeyRateLimiter
	admins     map[string]bool
	sweepStop  chan struct{}
}

// newApplication wires all components from the loaded configuration.
func newApplication(ctx context.Context) (*Application, error) {
	cfg := config.Get()

	store, err := cache.NewStore(cfg.Store.DBPath, cfg.FeatureFlags.StoreCompression)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	statsStore, err := stats.NewStore(filepath.Join(filepath.Dir(cfg.Store.DBPath), "stats.db"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening stats store: %w", err)
	}
	if err := statsStore.Load(); err != nil {
		log.Warnf("%s Could not load persisted stats: %v", logcolors.LogStats, err)
	}
	statsStore.StartAutoSave(5 * time.Minute)

	resolver := proxy.NewResolver()
	providers.RegisterDefaults()
	aggregator := search.NewAggregator(resolver)

	brain, err := gemini.NewClient(ctx)
	if err != nil {
		statsStore.Close()
		store.Close()
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	registry := tracks.NewRegistry()
	registry.Register(tracks.NewYandex(resolver))
	registry.Register(tracks.NewZvuk())
	registry.Register(tracks.NewMTS())

	reelsSvc := reels.NewService(resolver, store)
	sessions := session.NewManager(store)

	messenger, err := delivery.NewTelegram()
	if err != nil {
		statsStore.Close()
		store.Close()
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	router := bot.NewRouter(messenger, brain, aggregator, sessions, registry, reelsSvc)

	admins := make(map[string]bool)
	for _, id := range cfg.AdminIDList() {
		admins[id] = true
	}

	app := &Application{
		store:      store,
		statsStore: statsStore,
		messenger:  messenger,
		router:     router,
		aggregator: aggregator,
		limiter:    middleware.NewKeyRateLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.BurstLimit),
		admins:     admins,
		sweepStop:  make(chan struct{}),
	}

	app.dispatcher = scheduler.New(router, scheduler.Options{
		Capacity:        cfg.Scheduler.QueueCapacity,
		MinSpacing:      time.Duration(cfg.Scheduler.MinSpacingSecs) * time.Second,
		CriticalBackoff: time.Duration(cfg.Scheduler.CriticalBackoffSecs) * time.Second,
		IdleTimeout:     time.Duration(cfg.Scheduler.QueueIdleTimeoutMins) * time.Minute,
		OnHandlerError:  app.reportHandlerError,
	})

	circuitbreaker.SetEvents(circuitbreaker.Events{
		OnOpen:      app.alertBreakerOpen,
		OnRecovered: app.alertBreakerRecovered,
	})

	store.StartSweeper(time.Duration(cfg.Store.SweepIntervalSecs)*time.Second, app.sweepStop)
	return app, nil
}

// queueKey maps a sender to their admission queue. Admins get a dedicated
// queue; everyone else shares one.
func (app *Application) queueKey(userID string) string {
	if app.admins[userID] {
		return userID
	}
	return scheduler.GuestKey
}

// reportHandlerError tells the originator their request died. The handler
// already reported specific failures itself; this is the catch-all for
// panics and wiring errors.
func (app *Application) reportHandlerError(req scheduler.Request, err error) {
	log.Errorf("%s Handler failed for key %s: %v", logcolors.LogBot, req.Key, err)

	in, ok := req.Payload.(bot.Incoming)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, nerr := app.messenger.Notify(ctx, in.ChatID, "Something went wrong with your request. Try again."); nerr != nil {
		log.Warnf("%s Could not report the failure to chat %d: %v", logcolors.LogBot, in.ChatID, nerr)
	}
}

func (app *Application) alertBreakerOpen(name string, failures int, cooldown time.Duration) {
	app.alertAdmins(fmt.Sprintf("Source %s disabled after %d failures, retrying in %s.", name, failures, cooldown))
}

func (app *Application) alertBreakerRecovered(name string) {
	app.alertAdmins(fmt.Sprintf("Source %s recovered.", name))
}

func (app *Application) alertAdmins(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for id := range app.admins {
		chatID, err := parseChatID(id)
		if err != nil {
			continue
		}
		if _, err := app.messenger.Notify(ctx, chatID, text); err != nil {
			log.Warnf("%s Could not alert admin %s: %v", logcolors.LogBot, id, err)
		}
	}
}

// shutdown releases everything in reverse dependency order.
func (app *Application) shutdown(ctx context.Context) {
	if err := app.messenger.RemoveWebhook(ctx); err != nil {
		log.Warnf("%s Could not remove the webhook: %v", logcolors.LogServer, err)
	}
	app.dispatcher.Close()
	close(app.sweepStop)
	if err := app.statsStore.Close(); err != nil {
		log.Warnf("%s Closing stats store: %v", logcolors.LogStats, err)
	}
	if err := app.store.Close(); err != nil {
		log.Warnf("%s Closing store: %v", logcolors.LogStore, err)
	}
}
