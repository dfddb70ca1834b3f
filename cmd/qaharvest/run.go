package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/use-agent/qaharvest/api"
	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/crawler"
	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/webhook"
)

var runFlags struct {
	maxPages       int
	maxQuestions   int
	debug          bool
	diagnosticsDir string
	outputDir      string
	backend        string
	noImages       bool
	statusAddr     string
}

var runCmd = &cobra.Command{
	Use:   "run <topic-url> [topic-url...]",
	Short: "Harvest one or more board sections.",
	Long: `Harvest walks the listing pages of each board section, visits every new
question and writes accepted and unanswered questions to separate JSON files
(and a spreadsheet) after every question.

Topic URLs may also come from QAHARVEST_TOPIC_URLS. Flags override the
environment.`,
	RunE: runHarvest,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.maxPages, "max-pages", 1, "listing pages to walk per section")
	f.IntVar(&runFlags.maxQuestions, "max-questions", 0, "questions to record per section (0 = unlimited)")
	f.BoolVar(&runFlags.debug, "debug", false, "show the browser and save HTML snapshots of problem pages")
	f.StringVar(&runFlags.diagnosticsDir, "diagnostics-dir", "diagnostics", "where debug snapshots go")
	f.StringVar(&runFlags.outputDir, "output-dir", "scrapped_data", "where results and images go")
	f.StringVar(&runFlags.backend, "backend", "browser", `page backend: "browser" or "http"`)
	f.BoolVar(&runFlags.noImages, "no-images", false, "skip image downloads")
	f.StringVar(&runFlags.statusAddr, "status-addr", "", "serve run status and metrics on this address")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies explicitly set flags over the environment config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	f := cmd.Flags()
	if len(args) > 0 {
		cfg.Crawl.TopicURLs = args
	}
	if f.Changed("max-pages") {
		cfg.Crawl.MaxPages = runFlags.maxPages
	}
	if f.Changed("max-questions") {
		cfg.Crawl.MaxQuestions = runFlags.maxQuestions
	}
	if f.Changed("debug") {
		cfg.Output.Debug = runFlags.debug
	}
	if f.Changed("diagnostics-dir") {
		cfg.Output.DiagnosticsDir = runFlags.diagnosticsDir
	}
	if f.Changed("output-dir") {
		cfg.Output.Dir = runFlags.outputDir
	}
	if f.Changed("backend") {
		cfg.Browser.Backend = runFlags.backend
	}
	if f.Changed("no-images") {
		cfg.Images.Enabled = !runFlags.noImages
	}
	if f.Changed("status-addr") {
		cfg.Status.Addr = runFlags.statusAddr
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	applyRunFlags(cmd, cfg, args)

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.Info("qaharvest starting",
		"sections", len(cfg.Crawl.TopicURLs),
		"backend", cfg.Browser.Backend,
		"max_pages", cfg.Crawl.MaxPages,
		"max_questions", cfg.Crawl.MaxQuestions,
		"debug", cfg.Output.Debug,
	)

	// ── 3. Open the page session ────────────────────────────────────
	c, client, err := newCrawler(cfg)
	if err != nil {
		return fmt.Errorf("open page session: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// ── 4. Signals: first one stops after the current question ─────
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			slog.Warn("stop requested, finishing current question", "signal", sig.String())
			c.Stop()
		case <-ctx.Done():
			return
		}
		select {
		case sig := <-sigs:
			slog.Warn("second signal, aborting", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	// ── 5. Status server ────────────────────────────────────────────
	if cfg.Status.Addr != "" {
		srv := startStatusServer(c, cfg)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("status server forced shutdown", "error", err)
			}
		}()
	}

	// ── 6. Harvest ──────────────────────────────────────────────────
	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	summaries, err := harvestAll(ctx, c, cfg.Crawl.TopicURLs, notifier)

	out, _ := json.MarshalIndent(summaries, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// harvestAll runs each section in order. It stops early on a stop request,
// a cancelled context or a dead page session.
func harvestAll(ctx context.Context, c *crawler.Crawler, topics []string, notifier *webhook.Notifier) ([]*models.RunSummary, error) {
	summaries := make([]*models.RunSummary, 0, len(topics))
	for _, topic := range topics {
		summary, err := c.Run(ctx, topic)
		if summary != nil {
			summaries = append(summaries, summary)
			notify(notifier, summary)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Warn("run aborted", "topic_url", topic)
			} else {
				slog.Error("run failed", "topic_url", topic, "code", models.CodeOf(err), "error", err)
			}
			return summaries, err
		}
		if summary.Stopped {
			break
		}
	}
	return summaries, nil
}

// notify reports a finished section. Delivery gets its own deadline so an
// aborted run is still reported.
func notify(n *webhook.Notifier, summary *models.RunSummary) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = n.Notify(ctx, webhook.NewEvent(webhook.EventRunCompleted, summary.Section, summary))
}

func startStatusServer(c *crawler.Crawler, cfg *config.Config) *http.Server {
	gin.DefaultWriter = os.Stderr
	srv := &http.Server{
		Addr:              cfg.Status.Addr,
		Handler:           api.NewRouter(c, cfg, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("status server listening", "addr", cfg.Status.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server error", "error", err)
		}
	}()
	return srv
}
