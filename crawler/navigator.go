package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/metrics"
	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
)

// Page kinds, used as log and metric labels.
const (
	KindListing = "listing"
	KindDetail  = "detail"
)

// blockMarkers in a page title mean the server rendered a denial page.
var blockMarkers = []string{"403", "forbidden", "access denied"}

// Navigator loads pages on a single session with retries and pacing.
type Navigator struct {
	client  page.Client
	limiter *rate.Limiter
	cfg     config.NavigationConfig
}

// NewNavigator returns a Navigator for client. A non-positive
// cfg.RatePerSecond disables the rate cap.
func NewNavigator(client page.Client, cfg config.NavigationConfig) *Navigator {
	n := &Navigator{client: client, cfg: cfg}
	if cfg.RatePerSecond > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return n
}

// Polite waits the courtesy delay before listing page pageNumber.
func (n *Navigator) Polite(ctx context.Context, pageNumber int) error {
	d := n.cfg.PolitenessBase + time.Duration(pageNumber)*n.cfg.PolitenessStep
	return n.client.Wait(ctx, d)
}

// Load navigates to url under policy. On success it returns the session,
// positioned on the page. When policy.SoftBlockCheck is set, a denial title
// counts as a soft block. Soft blocks are retried after BaseDelay +
// index*Step, transport failures after FailureDelay; no wait follows the
// last attempt. Terminal outcomes are *models.ScrapeError values with code
// SOFT_BLOCKED, SCRAPE_TIMEOUT or NAVIGATION_FAILED. A BROWSER_CRASH or a
// done ctx is returned at once.
func (n *Navigator) Load(ctx context.Context, url, kind string, policy config.BackoffPolicy) (page.Client, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		last := i == attempts-1
		if n.limiter != nil {
			if err := n.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		err := n.client.Navigate(ctx, url, policy.Timeout)
		metrics.NavigationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if models.IsFatal(err) {
				return nil, err
			}
			lastErr = classify(url, err)
			metrics.NavigationAttempts.WithLabelValues(kind, "failed").Inc()
			slog.Warn("navigation failed",
				"kind", kind, "url", url, "attempt", i+1, "max_attempts", attempts,
				"code", models.CodeOf(lastErr), "error", err)
			if !last {
				if err := n.client.Wait(ctx, policy.FailureDelay); err != nil {
					return nil, err
				}
			}
			continue
		}

		if err := n.client.Wait(ctx, policy.Settle); err != nil {
			return nil, err
		}

		if !policy.SoftBlockCheck {
			metrics.NavigationAttempts.WithLabelValues(kind, "success").Inc()
			return n.client, nil
		}

		title, _ := n.client.Title(ctx)
		if softBlocked(title) {
			lastErr = models.NewScrapeError(models.ErrCodeSoftBlocked,
				fmt.Sprintf("%s served a denial page %q", url, title), nil)
			metrics.NavigationAttempts.WithLabelValues(kind, "soft_blocked").Inc()
			if !last {
				delay := policy.Delay(i)
				slog.Warn("soft blocked, backing off",
					"kind", kind, "url", url, "attempt", i+1, "max_attempts", attempts,
					"title", title, "wait", delay)
				if err := n.client.Wait(ctx, delay); err != nil {
					return nil, err
				}
			} else {
				slog.Warn("soft blocked on final attempt",
					"kind", kind, "url", url, "attempt", i+1, "title", title)
			}
			continue
		}

		metrics.NavigationAttempts.WithLabelValues(kind, "success").Inc()
		return n.client, nil
	}
	return nil, lastErr
}

func softBlocked(title string) bool {
	t := strings.ToLower(title)
	for _, m := range blockMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}

// classify keeps a backend's ScrapeError and types anything else by cause.
func classify(url string, err error) error {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, "navigation to "+url+" timed out", err)
	}
	return models.NewScrapeError(models.ErrCodeNavigation, "navigation to "+url+" failed", err)
}
