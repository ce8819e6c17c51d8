package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Telegram struct {
		BotToken      string `envconfig:"BOT_TOKEN" default:""`
		WebhookHost   string `envconfig:"WEBHOOK_HOST" default:""`
		WebhookPath   string `envconfig:"WEBHOOK_PATH" default:"/webhook"`
		WebhookSecret string `envconfig:"WEBHOOK_SECRET" default:""`
		ListenPort    string `envconfig:"LISTEN_PORT" default:"8080"`
		// Comma-separated Telegram user ids that get a dedicated queue.
		AdminIDs string `envconfig:"TG_IDS" default:""`
	}

	Gemini struct {
		APIKey        string `envconfig:"GOOGLE_API_KEY" default:""`
		ClassifyModel string `envconfig:"GEMINI_CLASSIFY_MODEL" default:"gemini-flash-latest"`
		ChatModel     string `envconfig:"GEMINI_CHAT_MODEL" default:"gemini-2.5-flash"`
	}

	Proxy struct {
		InstagramProxy string `envconfig:"INSTAGRAM_PROXY" default:""`
		// Comma-separated list of proxy URLs reachable from inside Russia.
		RussianProxies      string `envconfig:"RUSSIAN_PROXIES" default:""`
		RussianProbeURL     string `envconfig:"RUSSIAN_PROXY_PROBE_URL" default:"https://vk.com"`
		RussianCacheTTLSecs int    `envconfig:"RUSSIAN_PROXY_CACHE_TTL_SECS" default:"600"`
		TorHost             string `envconfig:"TOR_HOST" default:"127.0.0.1"`
		TorSocksPort        int    `envconfig:"TOR_SOCKS_PORT" default:"9050"`
		TorControlPort      int    `envconfig:"TOR_CONTROL_PORT" default:"9051"`
	}

	Scheduler struct {
		QueueCapacity        int `envconfig:"QUEUE_CAPACITY" default:"10"`
		MinSpacingSecs       int `envconfig:"QUEUE_MIN_SPACING_SECS" default:"5"`
		CriticalBackoffSecs  int `envconfig:"QUEUE_CRITICAL_BACKOFF_SECS" default:"5"`
		QueueIdleTimeoutMins int `envconfig:"QUEUE_IDLE_TIMEOUT_MINS" default:"30"`
	}

	Search struct {
		ProviderTimeoutSecs int `envconfig:"SEARCH_PROVIDER_TIMEOUT_SECS" default:"15"`
		DownloadTimeoutSecs int `envconfig:"AUDIO_DOWNLOAD_TIMEOUT_SECS" default:"10"`
		SessionTTLSecs      int `envconfig:"SELECTION_SESSION_TTL_SECS" default:"600"`
		SessionPageSize     int `envconfig:"SELECTION_PAGE_SIZE" default:"5"`
		CircuitThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
		CircuitCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"`
	}

	Store struct {
		DBPath            string `envconfig:"STORE_DB_PATH" default:"./data/bot.db"`
		SweepIntervalSecs int    `envconfig:"STORE_SWEEP_INTERVAL_SECS" default:"3600"`
	}

	RateLimit struct {
		PerSecond  int `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		BurstLimit int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
	}

	Reels struct {
		MaxVideoSizeBytes  int64  `envconfig:"MAX_VIDEO_SIZE_BYTES" default:"52428800"`
		FallbackDownloader string `envconfig:"FALLBACK_DOWNLOADER_URL" default:"https://en.savefrom.net/#url="`
	}

	FeatureFlags struct {
		StoreCompression bool `envconfig:"FF_STORE_COMPRESSION" default:"true"`
	}
}

// AdminIDList splits the configured admin ids.
func (c Config) AdminIDList() []string {
	return splitTrimmed(c.Telegram.AdminIDs)
}

// RussianProxyList splits the configured russian proxy URLs.
func (c Config) RussianProxyList() []string {
	return splitTrimmed(c.Proxy.RussianProxies)
}

func splitTrimmed(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}
