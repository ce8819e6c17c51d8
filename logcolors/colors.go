package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"

	// Bright variants for more color variety
	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"

	Red       = "\033[31m"
	Yellow    = "\033[33m"
	BrightRed = "\033[91m"
)

// Store-related log prefixes
const (
	LogStoreInit  = Blue + "[Store:Init]" + Reset
	LogStore      = Blue + "[Store]" + Reset
	LogStoreSweep = Blue + "[Store:Sweep]" + Reset
	LogHistory    = Green + "[History]" + Reset
)

// Scheduler log prefixes
const (
	LogQueue     = Purple + "[Queue]" + Reset
	LogWorker    = Purple + "[Worker]" + Reset
	LogRateLimit = Purple + "[RateLimit]" + Reset
)

// Search/provider log prefixes
const (
	LogSearch   = Blue + "[Search]" + Reset
	LogHTTP     = Cyan + "[HTTP]" + Reset
	LogMatch    = Green + "[Match]" + Reset
	LogSuccess  = Green + "[Success]" + Reset
	LogWarning  = Red + "[Warning]" + Reset
	LogDownload = Green + "[Download]" + Reset
	LogExtract  = Cyan + "[Extract]" + Reset
)

// Proxy log prefixes
const (
	LogProxy = Cyan + "[Proxy]" + Reset
	LogTor   = BrightMagenta + "[Tor]" + Reset
)

// Bot surface log prefixes
const (
	LogBot      = Green + "[Bot]" + Reset
	LogClassify = Cyan + "[Classify]" + Reset
	LogChat     = Cyan + "[Chat]" + Reset
	LogSession  = BrightBlue + "[Session]" + Reset
	LogReels    = BrightMagenta + "[Reels]" + Reset
	LogTracks   = BrightCyan + "[Tracks]" + Reset
	LogDeliver  = Green + "[Deliver]" + Reset
)

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// providerColors are the colors used for provider names (rotating based on hash)
var providerColors = []string{
	Green, Blue, Purple, Cyan, Red,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan, BrightRed,
}

// Provider returns a colored provider name for log messages.
// Same provider name always gets the same color.
func Provider(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	color := providerColors[hash%len(providerColors)]
	return color + name + Reset
}
