package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/qaharvest/config"
)

func TestApplyRunFlags(t *testing.T) {
	cfg := config.Load()
	cfg.Crawl.MaxPages = 7
	cfg.Output.Dir = "from-env"

	require.NoError(t, runCmd.Flags().Parse([]string{"--max-questions", "5", "--backend", "http", "--no-images"}))

	applyRunFlags(runCmd, cfg, []string{"https://forum.example.com/t5/a/qa-p/b"})

	assert.Equal(t, []string{"https://forum.example.com/t5/a/qa-p/b"}, cfg.Crawl.TopicURLs)
	assert.Equal(t, 7, cfg.Crawl.MaxPages, "unset flags keep the environment value")
	assert.Equal(t, "from-env", cfg.Output.Dir)
	assert.Equal(t, 5, cfg.Crawl.MaxQuestions)
	assert.Equal(t, "http", cfg.Browser.Backend)
	assert.False(t, cfg.Images.Enabled)
	require.NoError(t, cfg.Validate())
}
