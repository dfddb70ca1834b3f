package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser    BrowserConfig
	Navigation NavigationConfig
	Crawl      CrawlConfig
	Images     ImagesConfig
	Output     OutputConfig
	Log        LogConfig
	Status     StatusConfig
	Webhook    WebhookConfig
}

// BrowserConfig controls the page session backend.
type BrowserConfig struct {
	// Backend selects the page client: "browser" (go-rod) or "http" (static fetch).
	Backend string // default: "browser"

	// Headless controls whether the browser runs headless. Debug mode forces it off.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser and HTTP traffic.
	Proxy string

	// UserAgent is sent by both backends.
	UserAgent string // default: Chrome 120 on Windows

	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// BlockedResourceTypes lists resource types the browser does not load.
	// Images are fetched separately, so they are blocked by default.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// BackoffPolicy is one retry budget for page loads.
type BackoffPolicy struct {
	// MaxAttempts bounds the attempt loop.
	MaxAttempts int

	// BaseDelay and Step define the soft-block wait: BaseDelay + index*Step.
	BaseDelay time.Duration
	Step      time.Duration

	// FailureDelay is the fixed wait after a transport or timeout failure.
	FailureDelay time.Duration

	// Settle is the wait after a successful navigation before the page is inspected.
	Settle time.Duration

	// Timeout bounds a single navigation.
	Timeout time.Duration

	// SoftBlockCheck treats a denial title (403, forbidden, access denied)
	// as a soft block. Detail titles are question titles, so it is off there.
	SoftBlockCheck bool
}

// Delay returns the soft-block wait after the attempt with the given
// 0-based index: the first retry waits BaseDelay.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay + time.Duration(attempt)*p.Step
}

// NavigationConfig controls retries and pacing.
type NavigationConfig struct {
	// Listing pages face harsher anti-bot treatment and get the longer budget.
	// default: 3 attempts, 10s + 5s*attempt, 5s failure delay, 3s settle, 60s timeout, title check on
	Listing BackoffPolicy

	// default: 2 attempts, 5s + 2s*attempt, 1s failure delay, 500ms settle, 60s timeout, title check off
	Detail BackoffPolicy

	// PolitenessBase and PolitenessStep define the unconditional wait before
	// every listing page: base + page*step.
	PolitenessBase time.Duration // default: 2s
	PolitenessStep time.Duration // default: 1s

	// RatePerSecond caps navigation attempts; 0 disables the cap.
	RatePerSecond float64 // default: 1
}

// CrawlConfig controls what a run covers.
type CrawlConfig struct {
	// TopicURLs are the listing pages (board sections) to harvest, in order.
	TopicURLs []string

	// MaxPages is the number of listing pages per section.
	MaxPages int // default: 1

	// MaxQuestions caps committed records per section; 0 means unlimited.
	MaxQuestions int // default: 0

	// StopWhenEmpty ends pagination at the first listing page without links.
	StopWhenEmpty bool // default: true
}

// ImagesConfig controls image harvesting.
type ImagesConfig struct {
	Enabled bool // default: true

	// Timeout bounds each image download.
	Timeout time.Duration // default: 30s
}

// OutputConfig controls where results go.
type OutputConfig struct {
	// Dir receives JSON, XLSX and the images/ tree.
	Dir string // default: "scrapped_data"

	// Prefix starts every output base name.
	Prefix string // default: "sap_community"

	// Debug shows the browser window and saves diagnostic snapshots.
	Debug bool // default: false

	// DiagnosticsDir receives HTML snapshots in debug mode.
	DiagnosticsDir string // default: "diagnostics"

	// XLSX toggles the spreadsheet sink.
	XLSX bool // default: true
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// StatusConfig controls the optional status server.
type StatusConfig struct {
	// Addr enables the server when non-empty, e.g. "127.0.0.1:8080".
	Addr string
	Mode string // "debug", "release", "test"; default: "release"

	// APIKeys guard the stop endpoint. Empty means open access.
	APIKeys []string

	// Per-client token bucket on the control endpoints.
	RatePerSecond float64 // default: 5
	Burst         int     // default: 10
}

// WebhookConfig controls run notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Backend:        envOr("QAHARVEST_BACKEND", "browser"),
			Headless:       envBoolOr("QAHARVEST_HEADLESS", true),
			NoSandbox:      envBoolOr("QAHARVEST_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("QAHARVEST_BROWSER_BIN"),
			Proxy:          os.Getenv("QAHARVEST_PROXY"),
			UserAgent:      envOr("QAHARVEST_USER_AGENT", DefaultUserAgent),
			ViewportWidth:  envIntOr("QAHARVEST_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("QAHARVEST_VIEWPORT_HEIGHT", 1080),
			BlockedResourceTypes: envSliceOr("QAHARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Navigation: NavigationConfig{
			Listing: BackoffPolicy{
				MaxAttempts:    envIntOr("QAHARVEST_LISTING_ATTEMPTS", 3),
				BaseDelay:      envDurationOr("QAHARVEST_LISTING_BACKOFF_BASE", 10*time.Second),
				Step:           envDurationOr("QAHARVEST_LISTING_BACKOFF_STEP", 5*time.Second),
				FailureDelay:   envDurationOr("QAHARVEST_LISTING_FAILURE_DELAY", 5*time.Second),
				Settle:         envDurationOr("QAHARVEST_LISTING_SETTLE", 3*time.Second),
				Timeout:        envDurationOr("QAHARVEST_LISTING_TIMEOUT", 60*time.Second),
				SoftBlockCheck: envBoolOr("QAHARVEST_LISTING_SOFT_BLOCK_CHECK", true),
			},
			Detail: BackoffPolicy{
				MaxAttempts:    envIntOr("QAHARVEST_DETAIL_ATTEMPTS", 2),
				BaseDelay:      envDurationOr("QAHARVEST_DETAIL_BACKOFF_BASE", 5*time.Second),
				Step:           envDurationOr("QAHARVEST_DETAIL_BACKOFF_STEP", 2*time.Second),
				FailureDelay:   envDurationOr("QAHARVEST_DETAIL_FAILURE_DELAY", time.Second),
				Settle:         envDurationOr("QAHARVEST_DETAIL_SETTLE", 500*time.Millisecond),
				Timeout:        envDurationOr("QAHARVEST_DETAIL_TIMEOUT", 60*time.Second),
				SoftBlockCheck: envBoolOr("QAHARVEST_DETAIL_SOFT_BLOCK_CHECK", false),
			},
			PolitenessBase: envDurationOr("QAHARVEST_POLITENESS_BASE", 2*time.Second),
			PolitenessStep: envDurationOr("QAHARVEST_POLITENESS_STEP", time.Second),
			RatePerSecond:  envFloatOr("QAHARVEST_NAV_RATE", 1.0),
		},
		Crawl: CrawlConfig{
			TopicURLs:     envSliceOr("QAHARVEST_TOPIC_URLS", nil),
			MaxPages:      envIntOr("QAHARVEST_MAX_PAGES", 1),
			MaxQuestions:  envIntOr("QAHARVEST_MAX_QUESTIONS", 0),
			StopWhenEmpty: envBoolOr("QAHARVEST_STOP_WHEN_EMPTY", true),
		},
		Images: ImagesConfig{
			Enabled: envBoolOr("QAHARVEST_IMAGES", true),
			Timeout: envDurationOr("QAHARVEST_IMAGE_TIMEOUT", 30*time.Second),
		},
		Output: OutputConfig{
			Dir:            envOr("QAHARVEST_OUTPUT_DIR", "scrapped_data"),
			Prefix:         envOr("QAHARVEST_OUTPUT_PREFIX", "sap_community"),
			Debug:          envBoolOr("QAHARVEST_DEBUG", false),
			DiagnosticsDir: envOr("QAHARVEST_DIAGNOSTICS_DIR", "diagnostics"),
			XLSX:           envBoolOr("QAHARVEST_XLSX", true),
		},
		Log: LogConfig{
			Level:  envOr("QAHARVEST_LOG_LEVEL", "info"),
			Format: envOr("QAHARVEST_LOG_FORMAT", "json"),
		},
		Status: StatusConfig{
			Addr: os.Getenv("QAHARVEST_STATUS_ADDR"),
			Mode: envOr("QAHARVEST_STATUS_MODE", "release"),

			APIKeys:       envSliceOr("QAHARVEST_STATUS_API_KEYS", nil),
			RatePerSecond: envFloatOr("QAHARVEST_STATUS_RATE", 5),
			Burst:         envIntOr("QAHARVEST_STATUS_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("QAHARVEST_WEBHOOK_URL"),
			Secret: os.Getenv("QAHARVEST_WEBHOOK_SECRET"),
		},
	}
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Validate checks the fields a run cannot start without.
func (c *Config) Validate() error {
	if len(c.Crawl.TopicURLs) == 0 {
		return fmt.Errorf("config: at least one topic URL is required")
	}
	for _, raw := range c.Crawl.TopicURLs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("config: topic URL %q must be absolute", raw)
		}
	}
	if c.Crawl.MaxPages < 1 {
		return fmt.Errorf("config: max pages must be >= 1, got %d", c.Crawl.MaxPages)
	}
	if c.Crawl.MaxQuestions < 0 {
		return fmt.Errorf("config: max questions must be >= 0, got %d", c.Crawl.MaxQuestions)
	}
	if c.Navigation.Listing.MaxAttempts < 1 || c.Navigation.Detail.MaxAttempts < 1 {
		return fmt.Errorf("config: retry budgets need at least one attempt")
	}
	switch c.Browser.Backend {
	case "browser", "http":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Browser.Backend)
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
