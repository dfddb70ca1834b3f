// Package crawler drives a section run: it walks the listing pages of a
// board, loads every new question page, extracts a record from it and hands
// the record to the recorder. Navigation and extraction share one page
// session and never overlap.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/extract"
	"github.com/use-agent/qaharvest/metrics"
	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
	"github.com/use-agent/qaharvest/store"
)

// Crawler runs sections one after another on a single page session.
type Crawler struct {
	cfg       *config.Config
	nav       *Navigator
	extractor *extract.Extractor

	current atomic.Pointer[section]
	stopped atomic.Bool
}

type section struct {
	topicURL string
	name     string
	state    *models.RunState
}

// New returns a Crawler over client. A nil images harvester disables image
// downloads.
func New(cfg *config.Config, client page.Client, images extract.ImageHarvester) *Crawler {
	if !cfg.Images.Enabled {
		images = nil
	}
	return &Crawler{
		cfg:       cfg,
		nav:       NewNavigator(client, cfg.Navigation),
		extractor: extract.NewExtractor(images),
	}
}

// Stop asks the running section to finish after the record in progress and
// keeps later sections from starting.
func (c *Crawler) Stop() {
	c.stopped.Store(true)
	if s := c.current.Load(); s != nil {
		s.state.RequestStop()
	}
}

// Status reports the section in progress, if any.
func (c *Crawler) Status() (topicURL, name string, stats models.RunStats, ok bool) {
	s := c.current.Load()
	if s == nil {
		return "", "", models.RunStats{}, false
	}
	return s.topicURL, s.name, s.state.Stats(), true
}

// Run harvests one board section. Results are flushed after every record
// and once more before Run returns, so the output files are complete even
// when the run ends early. The summary is always returned; the error is
// non-nil only for a cancelled ctx or a dead page session.
func (c *Crawler) Run(ctx context.Context, topicURL string) (*models.RunSummary, error) {
	start := time.Now()
	sec := &section{
		topicURL: topicURL,
		name:     store.SectionName(topicURL),
		state:    models.NewRunState(),
	}
	if c.stopped.Load() {
		sec.state.RequestStop()
	}
	c.current.Store(sec)

	base := store.BaseName(c.cfg.Output.Prefix, topicURL)
	sinks := []store.Sink{store.NewJSONSink(c.cfg.Output.Dir, base)}
	if c.cfg.Output.XLSX {
		sinks = append(sinks, store.NewXLSXSink(c.cfg.Output.Dir, base))
	}
	recorder := store.NewRecorder(sec.state, sinks...)
	imageDir := filepath.Join(c.cfg.Output.Dir, "images", sec.name)

	log := slog.With("section", sec.name)
	log.Info("section started", "topic_url", topicURL, "max_pages", c.cfg.Crawl.MaxPages,
		"max_questions", c.cfg.Crawl.MaxQuestions)

	pagesVisited, runErr := c.walk(ctx, sec, recorder, imageDir, log)

	recorder.Close()
	accepted, nonAccepted := sec.state.Results()
	stats := sec.state.Stats()
	summary := &models.RunSummary{
		TopicURL:        topicURL,
		Section:         sec.name,
		PagesVisited:    pagesVisited,
		Accepted:        len(accepted),
		NonAccepted:     len(nonAccepted),
		SkippedListings: stats.SkippedListings,
		SkippedDetails:  stats.SkippedDetails,
		Stopped:         stats.StopRequested,
		OutputFiles:     recorder.Paths(),
		Duration:        time.Since(start).Round(time.Millisecond).String(),
	}
	log.Info("section finished",
		"accepted", summary.Accepted,
		"non_accepted", summary.NonAccepted,
		"total", summary.Accepted+summary.NonAccepted,
		"pages", summary.PagesVisited,
		"skipped_listings", summary.SkippedListings,
		"skipped_details", summary.SkippedDetails,
		"stopped", summary.Stopped,
		"duration", summary.Duration)
	return summary, runErr
}

// walk is the page loop. It returns the number of listing pages processed.
func (c *Crawler) walk(ctx context.Context, sec *section, recorder *store.Recorder, imageDir string, log *slog.Logger) (int, error) {
	state := sec.state
	maxQuestions := c.cfg.Crawl.MaxQuestions
	committed := 0
	visited := 0

	for p := 1; p <= c.cfg.Crawl.MaxPages; p++ {
		if state.StopRequested() {
			log.Info("stop requested, ending pagination", "page", p)
			return visited, nil
		}
		state.SetCurrentPage(p)

		if err := c.nav.Polite(ctx, p); err != nil {
			return visited, err
		}

		listURL, err := ListingURL(sec.topicURL, p)
		if err != nil {
			return visited, models.NewScrapeError(models.ErrCodeInvalidInput, "bad topic url", err)
		}
		visited++

		client, err := c.nav.Load(ctx, listURL, KindListing, c.cfg.Navigation.Listing)
		if err != nil {
			if abort(ctx, err) {
				return visited, err
			}
			state.SkipListing()
			metrics.PagesSkipped.WithLabelValues(KindListing, models.CodeOf(err)).Inc()
			log.Warn("listing page skipped", "page", p, "url", listURL, "code", models.CodeOf(err), "error", err)
			continue
		}

		links, err := extract.Links(ctx, client)
		if err != nil {
			if abort(ctx, err) {
				return visited, err
			}
			log.Warn("link discovery failed", "page", p, "error", err)
			links = nil
		}
		if len(links) == 0 {
			c.snapshot(ctx, client, fmt.Sprintf("no_links_page_%d.html", p))
			if c.cfg.Crawl.StopWhenEmpty {
				log.Info("no question links found, ending pagination", "page", p)
				return visited, nil
			}
			log.Info("no question links found", "page", p)
			continue
		}

		queued := extract.Queue(state, links)
		log.Info("listing page loaded", "page", p, "links", len(links), "new", len(queued))

		for _, qURL := range queued {
			if state.StopRequested() {
				log.Info("stop requested, ending run", "page", p)
				return visited, nil
			}
			if maxQuestions > 0 && committed >= maxQuestions {
				return visited, nil
			}

			client, err := c.nav.Load(ctx, qURL, KindDetail, c.cfg.Navigation.Detail)
			if err != nil {
				if abort(ctx, err) {
					return visited, err
				}
				state.SkipDetail()
				metrics.PagesSkipped.WithLabelValues(KindDetail, models.CodeOf(err)).Inc()
				log.Warn("question skipped", "url", qURL, "code", models.CodeOf(err), "error", err)
				c.snapshot(ctx, client, "nav_error_"+store.SafeFileName(qURL)+".html")
				continue
			}

			rec, err := c.extractor.Extract(ctx, client, p, qURL, imageDir)
			if err != nil {
				if abort(ctx, err) {
					return visited, err
				}
				state.SkipDetail()
				log.Warn("question extraction failed", "url", qURL, "error", err)
				c.snapshot(ctx, client, "error_"+store.SafeFileName(qURL)+".html")
				continue
			}

			recorder.Commit(rec)
			committed++
			log.Info("question recorded",
				"url", qURL,
				"accepted", rec.HasAcceptedAnswer,
				"accepted_responses", rec.AcceptedResponses,
				"other_responses", rec.NonAcceptedResponses)
			if !rec.HasAcceptedAnswer {
				c.snapshot(ctx, client, "no_accepted_"+store.SafeFileName(qURL)+".html")
			}
		}

		if maxQuestions > 0 && committed >= maxQuestions {
			log.Info("question limit reached", "limit", maxQuestions)
			return visited, nil
		}
	}
	return visited, nil
}

// abort reports whether err must end the run instead of skipping a page.
func abort(ctx context.Context, err error) bool {
	return ctx.Err() != nil || models.IsFatal(err)
}

// snapshot saves the current page HTML into the diagnostics directory in
// debug mode. Failures are logged only.
func (c *Crawler) snapshot(ctx context.Context, client page.Client, name string) {
	if !c.cfg.Output.Debug {
		return
	}
	if client == nil {
		client = c.nav.client
	}
	html, err := client.HTML(ctx)
	if err != nil {
		slog.Debug("snapshot skipped", "name", name, "error", err)
		return
	}
	path := filepath.Join(c.cfg.Output.DiagnosticsDir, name)
	err = store.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, html)
		return err
	})
	if err != nil {
		slog.Warn("snapshot failed", "path", path, "error", err)
		return
	}
	slog.Debug("snapshot saved", "path", path)
}

// ListingURL returns the address of listing page n of a topic. An existing
// page parameter is replaced; other query parameters are kept.
func ListingURL(topicURL string, n int) (string, error) {
	u, err := url.Parse(topicURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
