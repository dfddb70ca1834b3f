package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
)

// scriptedClient plays back one title or error per navigation and records
// every non-zero wait instead of sleeping.
type scriptedClient struct {
	titles []string
	errs   []error

	navigations int
	title       string
	waits       []time.Duration
}

func (c *scriptedClient) Navigate(ctx context.Context, url string, _ time.Duration) error {
	i := c.navigations
	c.navigations++
	if i < len(c.errs) && c.errs[i] != nil {
		return c.errs[i]
	}
	c.title = ""
	if i < len(c.titles) {
		c.title = c.titles[i]
	}
	return nil
}

func (c *scriptedClient) Title(context.Context) (string, error) { return c.title, nil }
func (c *scriptedClient) URL() string                           { return "https://forum.example.com/" }

func (c *scriptedClient) QuerySelector(context.Context, string) (page.Element, error) {
	return nil, nil
}

func (c *scriptedClient) QuerySelectorAll(context.Context, string) ([]page.Element, error) {
	return nil, nil
}

func (c *scriptedClient) InnerText(context.Context, string) (string, error) { return "", nil }
func (c *scriptedClient) HTML(context.Context) (string, error)             { return "<html></html>", nil }

func (c *scriptedClient) Wait(ctx context.Context, d time.Duration) error {
	if d > 0 {
		c.waits = append(c.waits, d)
	}
	return ctx.Err()
}

func (c *scriptedClient) Close() error { return nil }

var listingPolicy = config.BackoffPolicy{
	MaxAttempts:    3,
	BaseDelay:      10 * time.Second,
	Step:           5 * time.Second,
	FailureDelay:   5 * time.Second,
	SoftBlockCheck: true,
}

func TestLoadRecoversFromSoftBlocks(t *testing.T) {
	client := &scriptedClient{titles: []string{"403 Forbidden", "Access Denied", "SCM Questions"}}
	nav := NewNavigator(client, config.NavigationConfig{})

	got, err := nav.Load(context.Background(), "https://forum.example.com/list", KindListing, listingPolicy)

	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, 3, client.navigations)
	assert.Equal(t, []time.Duration{10 * time.Second, 15 * time.Second}, client.waits)
}

func TestLoadAlwaysSoftBlocked(t *testing.T) {
	client := &scriptedClient{titles: []string{"403", "403", "403"}}
	nav := NewNavigator(client, config.NavigationConfig{})

	got, err := nav.Load(context.Background(), "https://forum.example.com/list", KindListing, listingPolicy)

	assert.Nil(t, got)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeSoftBlocked, models.CodeOf(err))
	assert.Equal(t, 3, client.navigations)
	// No wait after the final attempt.
	assert.Equal(t, []time.Duration{10 * time.Second, 15 * time.Second}, client.waits)
}

func TestLoadDetailIgnoresDenialWordsInTitle(t *testing.T) {
	client := &scriptedClient{titles: []string{"HTTP 403 error when calling OData service | SAP Community"}}
	nav := NewNavigator(client, config.NavigationConfig{})
	policy := config.BackoffPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Second, Step: 2 * time.Second}

	got, err := nav.Load(context.Background(), "https://forum.example.com/t5/b/http-403-error/qaq-p/1", KindDetail, policy)

	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, 1, client.navigations)
	assert.Empty(t, client.waits)
}

func TestLoadHardFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"network", errors.New("connection reset"), models.ErrCodeNavigation},
		{"timeout", fmt.Errorf("goto: %w", context.DeadlineExceeded), models.ErrCodeTimeout},
		{"typed", models.NewScrapeError(models.ErrCodeTimeout, "slow", nil), models.ErrCodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{errs: []error{tt.err, tt.err}}
			nav := NewNavigator(client, config.NavigationConfig{})
			policy := config.BackoffPolicy{MaxAttempts: 2, FailureDelay: time.Second}

			_, err := nav.Load(context.Background(), "https://forum.example.com/q/1", KindDetail, policy)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, models.CodeOf(err))
			assert.Equal(t, 2, client.navigations)
			assert.Equal(t, []time.Duration{time.Second}, client.waits)
		})
	}
}

func TestLoadFailureThenSuccess(t *testing.T) {
	client := &scriptedClient{
		errs:   []error{errors.New("reset"), nil},
		titles: []string{"", "Question"},
	}
	nav := NewNavigator(client, config.NavigationConfig{})
	policy := config.BackoffPolicy{MaxAttempts: 2, FailureDelay: time.Second, Settle: 500 * time.Millisecond}

	_, err := nav.Load(context.Background(), "https://forum.example.com/q/1", KindDetail, policy)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, client.waits)
}

func TestLoadBrowserCrashIsImmediate(t *testing.T) {
	crash := models.NewScrapeError(models.ErrCodeBrowserCrash, "gone", nil)
	client := &scriptedClient{errs: []error{crash, crash, crash}}
	nav := NewNavigator(client, config.NavigationConfig{})

	_, err := nav.Load(context.Background(), "https://forum.example.com/list", KindListing, listingPolicy)

	assert.True(t, models.IsFatal(err))
	assert.Equal(t, 1, client.navigations)
	assert.Empty(t, client.waits)
}

func TestLoadCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &scriptedClient{titles: []string{"403"}}
	nav := NewNavigator(client, config.NavigationConfig{RatePerSecond: 1})

	_, err := nav.Load(ctx, "https://forum.example.com/list", KindListing, listingPolicy)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolite(t *testing.T) {
	client := &scriptedClient{}
	nav := NewNavigator(client, config.NavigationConfig{
		PolitenessBase: 2 * time.Second,
		PolitenessStep: time.Second,
	})

	require.NoError(t, nav.Polite(context.Background(), 1))
	require.NoError(t, nav.Polite(context.Background(), 3))
	assert.Equal(t, []time.Duration{3 * time.Second, 5 * time.Second}, client.waits)
}

func TestSoftBlocked(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"403 Forbidden", true},
		{"ACCESS DENIED", true},
		{"forbidden", true},
		{"SCM Questions - SAP Community", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, softBlocked(tt.title), tt.title)
	}
}
