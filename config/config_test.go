package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "browser", cfg.Browser.Backend)
	assert.Equal(t, 3, cfg.Navigation.Listing.MaxAttempts)
	assert.Equal(t, 2, cfg.Navigation.Detail.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Navigation.Detail.FailureDelay)
	assert.True(t, cfg.Navigation.Listing.SoftBlockCheck)
	assert.False(t, cfg.Navigation.Detail.SoftBlockCheck)
	assert.Equal(t, 1, cfg.Crawl.MaxPages)
	assert.Equal(t, 0, cfg.Crawl.MaxQuestions)
	assert.Equal(t, "scrapped_data", cfg.Output.Dir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QAHARVEST_MAX_PAGES", "4")
	t.Setenv("QAHARVEST_LISTING_BACKOFF_STEP", "250ms")
	t.Setenv("QAHARVEST_TOPIC_URLS", "https://a.example/t5/x/qa-p/y, https://b.example/t5/z/qa-p/w")
	t.Setenv("QAHARVEST_DEBUG", "true")

	cfg := Load()

	assert.Equal(t, 4, cfg.Crawl.MaxPages)
	assert.Equal(t, 250*time.Millisecond, cfg.Navigation.Listing.Step)
	assert.Equal(t, []string{"https://a.example/t5/x/qa-p/y", "https://b.example/t5/z/qa-p/w"}, cfg.Crawl.TopicURLs)
	assert.True(t, cfg.Output.Debug)
}

func TestBackoffPolicyDelay(t *testing.T) {
	p := BackoffPolicy{BaseDelay: 10 * time.Second, Step: 5 * time.Second}

	assert.Equal(t, 10*time.Second, p.Delay(0))
	assert.Equal(t, 15*time.Second, p.Delay(1))
	assert.Equal(t, 20*time.Second, p.Delay(2))
	assert.Less(t, p.Delay(1), p.Delay(2))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no topic", func(c *Config) { c.Crawl.TopicURLs = nil }, true},
		{"relative topic", func(c *Config) { c.Crawl.TopicURLs = []string{"/t5/x/qa-p/y"} }, true},
		{"zero pages", func(c *Config) { c.Crawl.MaxPages = 0 }, true},
		{"negative questions", func(c *Config) { c.Crawl.MaxQuestions = -1 }, true},
		{"unknown backend", func(c *Config) { c.Browser.Backend = "curl" }, true},
		{"zero attempts", func(c *Config) { c.Navigation.Detail.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Crawl.TopicURLs = []string{"https://community.example.com/t5/x/qa-p/y"}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
