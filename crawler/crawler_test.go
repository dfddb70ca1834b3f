package crawler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
)

const topicURL = "https://forum.example.com/t5/scm-q-a/qa-p/scm-questions"

func questionURL(id string) string {
	return "https://forum.example.com/t5/scm-q-a/qaq-p/" + id
}

// site serves canned pages to a page.Static client and counts fetches.
type site struct {
	mu      sync.Mutex
	pages   map[string]*page.Fetched
	fetched map[string]int
}

func newSite() *site {
	return &site{pages: map[string]*page.Fetched{}, fetched: map[string]int{}}
}

func (s *site) add(url string, status int, html string) {
	s.pages[url] = &page.Fetched{HTML: html, StatusCode: status, FinalURL: url}
}

func (s *site) fetch(_ context.Context, url string) (*page.Fetched, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched[url]++
	if p, ok := s.pages[url]; ok {
		return p, nil
	}
	return &page.Fetched{HTML: "<html><title>Not Found</title></html>", StatusCode: 404, FinalURL: url}, nil
}

func (s *site) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched[url]
}

func listing(t *testing.T, n int) string {
	t.Helper()
	u, err := ListingURL(topicURL, n)
	require.NoError(t, err)
	return u
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Navigation: config.NavigationConfig{
			Listing: config.BackoffPolicy{MaxAttempts: 3, SoftBlockCheck: true},
			Detail:  config.BackoffPolicy{MaxAttempts: 2},
		},
		Crawl: config.CrawlConfig{
			MaxPages:      3,
			StopWhenEmpty: true,
		},
		Output: config.OutputConfig{
			Dir:            dir,
			Prefix:         "test",
			DiagnosticsDir: filepath.Join(dir, "diagnostics"),
		},
	}
}

const acceptedQuestion = `<html><head><title>Posting fails | SAP Community</title></head><body>
<div class="lia-message-subject"><h1>Posting fails</h1></div>
<div id="bodyDisplay">Goods issue posting fails.</div>
<div class="MessageView lia-message-view-qanda-answer lia-accepted-solution">
  <div class="lia-message-body">Check the movement type.</div>
</div>
<div class="MessageView lia-message-view-qanda-answer"><div class="lia-message-body">Same here.</div></div>
</body></html>`

const openQuestion = `<html><head><title>Open question | SAP Community</title></head><body>
<div class="lia-message-subject"><h1>Open question</h1></div>
<div id="bodyDisplay">Nobody knows.</div>
</body></html>`

func linksPage(hrefs ...string) string {
	html := "<html><head><title>SCM Questions</title></head><body>"
	for _, h := range hrefs {
		html += `<a href="` + h + `">q</a>`
	}
	return html + "</body></html>"
}

func readURLs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var recs []models.Record
	require.NoError(t, json.Unmarshal(data, &recs))
	urls := make([]string, 0, len(recs))
	for _, r := range recs {
		urls = append(urls, r.URL)
	}
	return urls
}

func TestRunFullSection(t *testing.T) {
	dir := t.TempDir()
	s := newSite()
	s.add(listing(t, 1), 200, linksPage(
		"/t5/scm-q-a/qaq-p/1?utm_source=a",
		"/t5/scm-q-a/qaq-p/1?utm_source=b",
		"/t5/scm-q-a/qaq-p/2",
	))
	s.add(listing(t, 2), 403, "<html><title>Access Denied</title></html>")
	s.add(listing(t, 3), 200, linksPage("/t5/scm-q-a/qaq-p/2", "/t5/scm-q-a/qaq-p/3"))
	s.add(questionURL("1"), 200, acceptedQuestion)
	s.add(questionURL("2"), 200, openQuestion)
	s.add(questionURL("3"), 500, "")

	c := New(testConfig(dir), page.NewStatic(s.fetch), nil)
	summary, err := c.Run(context.Background(), topicURL)

	require.NoError(t, err)
	assert.Equal(t, "scm_q_a", summary.Section)
	assert.Equal(t, 3, summary.PagesVisited)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.NonAccepted)
	assert.Equal(t, 1, summary.SkippedListings)
	assert.Equal(t, 1, summary.SkippedDetails)
	assert.False(t, summary.Stopped)

	// Each question page is loaded once; the soft-blocked listing is retried.
	assert.Equal(t, 1, s.count(questionURL("1")))
	assert.Equal(t, 1, s.count(questionURL("2")))
	assert.Equal(t, 2, s.count(questionURL("3")))
	assert.Equal(t, 3, s.count(listing(t, 2)))

	assert.Equal(t, []string{questionURL("1")}, readURLs(t, filepath.Join(dir, "test_scm_q_a_accepted.json")))
	assert.Equal(t, []string{questionURL("2")}, readURLs(t, filepath.Join(dir, "test_scm_q_a_no_accepted.json")))
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "test_scm_q_a_accepted.json"),
		filepath.Join(dir, "test_scm_q_a_no_accepted.json"),
	}, summary.OutputFiles)

	_, _, stats, ok := c.Status()
	require.True(t, ok)
	assert.Equal(t, 3, stats.Visited)
}

const forbiddenQuestion = `<html><head><title>HTTP 403 error when calling OData service | SAP Community</title></head><body>
<div class="lia-message-subject"><h1>HTTP 403 error when calling OData service</h1></div>
<div id="bodyDisplay">The gateway answers 403 Forbidden for every call.</div>
<div class="MessageView lia-message-view-qanda-answer lia-accepted-solution">
  <div class="lia-message-body">Assign the service to a role.</div>
</div>
</body></html>`

func TestRunSluggedQuestionWithDenialWordsInTitle(t *testing.T) {
	dir := t.TempDir()
	s := newSite()
	slugged := "https://forum.example.com/t5/scm-q-a/http-403-error-when-calling-odata-service/qaq-p/13012345"
	s.add(listing(t, 1), 200, linksPage("/t5/scm-q-a/http-403-error-when-calling-odata-service/qaq-p/13012345"))
	s.add(slugged, 200, forbiddenQuestion)

	cfg := testConfig(dir)
	cfg.Crawl.MaxPages = 1
	summary, err := New(cfg, page.NewStatic(s.fetch), nil).Run(context.Background(), topicURL)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 0, summary.SkippedDetails)
	assert.Equal(t, 1, s.count(slugged))
	assert.Equal(t, []string{slugged}, readURLs(t, filepath.Join(dir, "test_scm_q_a_accepted.json")))
}

func TestRunQuestionLimit(t *testing.T) {
	dir := t.TempDir()
	s := newSite()
	s.add(listing(t, 1), 200, linksPage("/t5/scm-q-a/qaq-p/1", "/t5/scm-q-a/qaq-p/2"))
	s.add(listing(t, 2), 200, linksPage("/t5/scm-q-a/qaq-p/3"))
	s.add(questionURL("1"), 200, acceptedQuestion)
	s.add(questionURL("2"), 200, openQuestion)

	cfg := testConfig(dir)
	cfg.Crawl.MaxQuestions = 1
	summary, err := New(cfg, page.NewStatic(s.fetch), nil).Run(context.Background(), topicURL)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accepted+summary.NonAccepted)
	assert.Equal(t, 0, s.count(questionURL("2")))
	assert.Equal(t, 0, s.count(listing(t, 2)))
}

func TestRunEmptyListing(t *testing.T) {
	tests := []struct {
		name          string
		stopWhenEmpty bool
		wantPages     int
	}{
		{"stops", true, 1},
		{"moves on", false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := newSite()
			for p := 1; p <= 3; p++ {
				s.add(listing(t, p), 200, linksPage("/t5/blog/ba-p/1"))
			}
			cfg := testConfig(dir)
			cfg.Crawl.StopWhenEmpty = tt.stopWhenEmpty

			summary, err := New(cfg, page.NewStatic(s.fetch), nil).Run(context.Background(), topicURL)

			require.NoError(t, err)
			assert.Equal(t, tt.wantPages, summary.PagesVisited)
			assert.Equal(t, 0, summary.Accepted+summary.NonAccepted)
			assert.FileExists(t, filepath.Join(dir, "test_scm_q_a_accepted.json"))
		})
	}
}

func TestRunStoppedBeforeStart(t *testing.T) {
	dir := t.TempDir()
	s := newSite()
	c := New(testConfig(dir), page.NewStatic(s.fetch), nil)
	c.Stop()

	summary, err := c.Run(context.Background(), topicURL)

	require.NoError(t, err)
	assert.True(t, summary.Stopped)
	assert.Equal(t, 0, summary.PagesVisited)
	assert.Equal(t, []string{}, readURLs(t, filepath.Join(dir, "test_scm_q_a_accepted.json")))
}

func TestRunCanceled(t *testing.T) {
	s := newSite()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(testConfig(t.TempDir()), page.NewStatic(s.fetch), nil).Run(ctx, topicURL)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Accepted)
}

func TestRunDebugSnapshots(t *testing.T) {
	dir := t.TempDir()
	s := newSite()
	s.add(listing(t, 1), 200, linksPage("/t5/scm-q-a/qaq-p/2", "/t5/scm-q-a/qaq-p/3"))
	s.add(listing(t, 2), 200, linksPage())
	s.add(questionURL("2"), 200, openQuestion)
	s.add(questionURL("3"), 500, "")

	cfg := testConfig(dir)
	cfg.Output.Debug = true
	_, err := New(cfg, page.NewStatic(s.fetch), nil).Run(context.Background(), topicURL)
	require.NoError(t, err)

	diag := cfg.Output.DiagnosticsDir
	assert.FileExists(t, filepath.Join(diag, "no_accepted_forum.example.com_t5_scm-q-a_qaq-p_2.html"))
	assert.FileExists(t, filepath.Join(diag, "nav_error_forum.example.com_t5_scm-q-a_qaq-p_3.html"))
	assert.FileExists(t, filepath.Join(diag, "no_links_page_2.html"))
}

func TestListingURL(t *testing.T) {
	tests := []struct {
		topic string
		n     int
		want  string
	}{
		{topicURL, 1, topicURL + "?page=1"},
		{topicURL + "?page=9", 2, topicURL + "?page=2"},
		{topicURL + "?filter=solved", 4, topicURL + "?filter=solved&page=4"},
	}
	for _, tt := range tests {
		got, err := ListingURL(tt.topic, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
