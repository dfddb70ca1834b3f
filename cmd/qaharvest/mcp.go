package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/use-agent/qaharvest/api/handler"
	"github.com/use-agent/qaharvest/config"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the scrape_topic tool over MCP stdio.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		initLogger(cfg.Log)

		s := server.NewMCPServer(
			"qaharvest",
			handler.Version,
			server.WithToolCapabilities(false),
		)

		scrapeTopicTool := mcp.NewTool("scrape_topic",
			mcp.WithDescription("Harvest questions and answers from a forum board section. Walks the listing pages, records every question with its responses, and returns a run summary with the paths of the JSON and spreadsheet outputs."),
			mcp.WithString("url",
				mcp.Required(),
				mcp.Description("The board section (topic) URL, e.g. https://community.sap.com/t5/<board>/qa-p/<id>"),
			),
			mcp.WithNumber("max_pages",
				mcp.Description("Listing pages to walk (default: from QAHARVEST_MAX_PAGES, else 1)"),
			),
			mcp.WithNumber("max_questions",
				mcp.Description("Questions to record, 0 for unlimited (default: from QAHARVEST_MAX_QUESTIONS, else 0)"),
			),
		)
		s.AddTool(scrapeTopicTool, handleScrapeTopic(cfg))

		slog.Info("mcp server starting", "tool", "scrape_topic")
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func handleScrapeTopic(base *config.Config) server.ToolHandlerFunc {
	// One page session at a time; concurrent calls queue here.
	var mu sync.Mutex

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		cfg := *base
		cfg.Crawl.TopicURLs = []string{url}
		cfg.Crawl.MaxPages = request.GetInt("max_pages", base.Crawl.MaxPages)
		cfg.Crawl.MaxQuestions = request.GetInt("max_questions", base.Crawl.MaxQuestions)
		if err := cfg.Validate(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		mu.Lock()
		defer mu.Unlock()

		c, client, err := newCrawler(&cfg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("open page session: %v", err)), nil
		}
		defer client.Close()

		summary, err := c.Run(ctx, url)
		if err != nil && summary == nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, jerr := json.MarshalIndent(summary, "", "  ")
		if jerr != nil {
			return mcp.NewToolResultError(jerr.Error()), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run ended early: %v\n%s", err, out)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
