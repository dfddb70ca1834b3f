// Package scraper drives a real Chromium through go-rod and exposes it as a
// page.Client: one stealth tab per run, navigated sequentially.
package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/models"
)

// NewSession launches a browser and prepares the single tab the run uses.
// Debug mode shows the window regardless of cfg.Headless.
func NewSession(cfg config.BrowserConfig, debug bool) (*Session, error) {
	l := launcher.New().
		Headless(cfg.Headless && !debug).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless && !debug)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	p, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	// Stealth JS must be registered before the first navigation.
	if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		Platform:       "Win32",
	}); err != nil {
		slog.Warn("user agent override failed", "error", err)
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("viewport override failed", "error", err)
	}

	s := &Session{
		browser: browser,
		page:    p,
		cfg:     cfg,
	}
	s.router = setupHijack(p, cfg.BlockedResourceTypes)
	return s, nil
}

// Close stops request interception and kills the browser process.
// Call this on shutdown to prevent zombie Chrome processes.
func (s *Session) Close() error {
	slog.Info("session shutting down: closing browser")
	if s.router != nil {
		_ = s.router.Stop()
	}
	_ = s.page.Close()
	return s.browser.Close()
}

// alive reports whether the browser still answers protocol calls.
func (s *Session) alive() bool {
	_, err := proto.BrowserGetVersion{}.Call(s.browser)
	return err == nil
}
