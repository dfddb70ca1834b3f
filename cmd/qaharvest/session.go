package main

import (
	"fmt"
	"time"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/crawler"
	"github.com/use-agent/qaharvest/engine"
	"github.com/use-agent/qaharvest/images"
	"github.com/use-agent/qaharvest/page"
	"github.com/use-agent/qaharvest/scraper"
)

// httpClientTimeout caps any single static fetch or image download at the
// transport level; per-request contexts are usually tighter.
const httpClientTimeout = 2 * time.Minute

// newCrawler opens the page session for cfg's backend and wires it to a
// crawler. The returned client must be closed by the caller.
func newCrawler(cfg *config.Config) (*crawler.Crawler, page.Client, error) {
	httpEngine := engine.NewHTTPEngine(
		engine.NewHTTPClient(cfg.Browser.Proxy, httpClientTimeout),
		cfg.Browser.UserAgent,
	)

	var client page.Client
	switch cfg.Browser.Backend {
	case "http":
		client = page.NewStatic(httpEngine.PageFetcher())
	case "browser":
		s, err := scraper.NewSession(cfg.Browser, cfg.Output.Debug)
		if err != nil {
			return nil, nil, err
		}
		client = s
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Browser.Backend)
	}

	harvester := images.NewHarvester(httpEngine, cfg.Images.Timeout)
	return crawler.New(cfg, client, harvester), client, nil
}
