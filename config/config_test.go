package config

import (
	"os"
	"testing"
)

func TestConfigDefaultValues(t *testing.T) {
	// Clear any existing env vars that might interfere
	envVars := []string{
		"RATE_LIMIT_PER_SECOND",
		"RATE_LIMIT_BURST_LIMIT",
		"QUEUE_CAPACITY",
		"QUEUE_MIN_SPACING_SECS",
		"QUEUE_IDLE_TIMEOUT_MINS",
		"SELECTION_SESSION_TTL_SECS",
		"SELECTION_PAGE_SIZE",
		"RUSSIAN_PROXY_CACHE_TTL_SECS",
		"FF_STORE_COMPRESSION",
		"TOR_HOST",
	}

	// Store original values
	originalValues := make(map[string]string)
	for _, key := range envVars {
		originalValues[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	defer func() {
		// Restore original values
		for key, value := range originalValues {
			if value != "" {
				os.Setenv(key, value)
			}
		}
	}()

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{
			name:     "RateLimitPerSecond default",
			got:      cfg.RateLimit.PerSecond,
			expected: 2,
		},
		{
			name:     "RateLimitBurstLimit default",
			got:      cfg.RateLimit.BurstLimit,
			expected: 5,
		},
		{
			name:     "QueueCapacity default",
			got:      cfg.Scheduler.QueueCapacity,
			expected: 10,
		},
		{
			name:     "MinSpacingSecs default",
			got:      cfg.Scheduler.MinSpacingSecs,
			expected: 5,
		},
		{
			name:     "QueueIdleTimeoutMins default",
			got:      cfg.Scheduler.QueueIdleTimeoutMins,
			expected: 30,
		},
		{
			name:     "SessionTTLSecs default",
			got:      cfg.Search.SessionTTLSecs,
			expected: 600,
		},
		{
			name:     "SessionPageSize default",
			got:      cfg.Search.SessionPageSize,
			expected: 5,
		},
		{
			name:     "RussianCacheTTLSecs default",
			got:      cfg.Proxy.RussianCacheTTLSecs,
			expected: 600,
		},
		{
			name:     "TorHost default",
			got:      cfg.Proxy.TorHost,
			expected: "127.0.0.1",
		},
		{
			name:     "StoreCompression default",
			got:      cfg.FeatureFlags.StoreCompression,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	os.Setenv("RATE_LIMIT_PER_SECOND", "5")
	os.Setenv("QUEUE_CAPACITY", "20")
	os.Setenv("QUEUE_MIN_SPACING_SECS", "10")
	os.Setenv("SELECTION_SESSION_TTL_SECS", "1200")
	os.Setenv("TOR_HOST", "tor.internal")
	os.Setenv("FF_STORE_COMPRESSION", "false")

	defer func() {
		os.Unsetenv("RATE_LIMIT_PER_SECOND")
		os.Unsetenv("QUEUE_CAPACITY")
		os.Unsetenv("QUEUE_MIN_SPACING_SECS")
		os.Unsetenv("SELECTION_SESSION_TTL_SECS")
		os.Unsetenv("TOR_HOST")
		os.Unsetenv("FF_STORE_COMPRESSION")
	}()

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{
			name:     "RateLimitPerSecond override",
			got:      cfg.RateLimit.PerSecond,
			expected: 5,
		},
		{
			name:     "QueueCapacity override",
			got:      cfg.Scheduler.QueueCapacity,
			expected: 20,
		},
		{
			name:     "MinSpacingSecs override",
			got:      cfg.Scheduler.MinSpacingSecs,
			expected: 10,
		},
		{
			name:     "SessionTTLSecs override",
			got:      cfg.Search.SessionTTLSecs,
			expected: 1200,
		},
		{
			name:     "TorHost override",
			got:      cfg.Proxy.TorHost,
			expected: "tor.internal",
		},
		{
			name:     "StoreCompression override",
			got:      cfg.FeatureFlags.StoreCompression,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestAdminIDList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected []string
	}{
		{
			name:     "empty",
			envValue: "",
			expected: nil,
		},
		{
			name:     "single id",
			envValue: "12345",
			expected: []string{"12345"},
		},
		{
			name:     "multiple ids with spaces",
			envValue: "12345, 67890 ,424242",
			expected: []string{"12345", "67890", "424242"},
		},
		{
			name:     "trailing comma",
			envValue: "12345,",
			expected: []string{"12345"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue == "" {
				os.Unsetenv("TG_IDS")
			} else {
				os.Setenv("TG_IDS", tt.envValue)
			}
			defer os.Unsetenv("TG_IDS")

			cfg, err := load()
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}

			got := cfg.AdminIDList()
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d ids, got %d (%v)", len(tt.expected), len(got), got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Expected id %q at index %d, got %q", tt.expected[i], i, got[i])
				}
			}
		})
	}
}

func TestRussianProxyList(t *testing.T) {
	os.Setenv("RUSSIAN_PROXIES", "socks5://a:1080, http://b:8080,")
	defer os.Unsetenv("RUSSIAN_PROXIES")

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	proxies := cfg.RussianProxyList()
	if len(proxies) != 2 {
		t.Fatalf("Expected 2 proxies, got %d (%v)", len(proxies), proxies)
	}
	if proxies[0] != "socks5://a:1080" {
		t.Errorf("Expected first proxy 'socks5://a:1080', got %q", proxies[0])
	}
	if proxies[1] != "http://b:8080" {
		t.Errorf("Expected second proxy 'http://b:8080', got %q", proxies[1])
	}
}

func TestGet(t *testing.T) {
	cfg := Get()

	if cfg.Scheduler.QueueCapacity == 0 && cfg.RateLimit.PerSecond == 0 {
		t.Error("Expected Get() to return initialized config, got zero values")
	}
}

func TestMustLoad(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("mustLoad() panicked: %v", r)
		}
	}()

	cfg := mustLoad()

	if cfg.Scheduler.QueueCapacity <= 0 {
		t.Error("Expected mustLoad to return valid config with positive QueueCapacity")
	}
}
