package models

import "time"

// Record is one question detail page with everything extracted from it.
type Record struct {
	// PageNumber is the listing page the question was discovered on.
	PageNumber int `json:"page_number"`

	// System is the product area or board section label.
	System string `json:"system"`

	Title string `json:"title"`

	// Body is the question text; BodyMarkdown is the same region rendered as Markdown.
	Body         string `json:"question"`
	BodyMarkdown string `json:"question_markdown,omitempty"`

	BodyImages []ImageRef `json:"question_images"`

	// Tags are deduplicated case-insensitively, first-seen spelling kept.
	Tags []string `json:"tags"`

	// URL is the canonical detail page URL and the run-wide dedup key.
	URL string `json:"url"`

	Responses []Response `json:"responses"`

	HasAcceptedAnswer    bool `json:"has_accepted_answer"`
	TotalResponses       int  `json:"total_responses"`
	AcceptedResponses    int  `json:"accepted_responses"`
	NonAcceptedResponses int  `json:"non_accepted_responses"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// Response is one answer attached to a question.
type Response struct {
	// Index is 1-based in page order and only stable within one Record.
	Index      int        `json:"index"`
	Text       string     `json:"text"`
	IsAccepted bool       `json:"is_accepted"`
	Author     string     `json:"author,omitempty"`
	PostedAt   string     `json:"posted_at,omitempty"`
	Images     []ImageRef `json:"images"`
}

// ImageRef points at a downloaded image.
type ImageRef struct {
	// OriginalURL is always absolute.
	OriginalURL string `json:"original_url"`
	LocalPath   string `json:"local_path"`
	AltText     string `json:"alt_text,omitempty"`
	Filename    string `json:"filename"`
}

// NewRecord assembles a Record and derives the accepted-answer flag and the
// response counters from responses.
func NewRecord(pageNumber int, url string, responses []Response) Record {
	r := Record{
		PageNumber: pageNumber,
		URL:        url,
		Responses:  responses,
		BodyImages: []ImageRef{},
		Tags:       []string{},
		ScrapedAt:  time.Now().UTC(),
	}
	if r.Responses == nil {
		r.Responses = []Response{}
	}
	for _, resp := range r.Responses {
		if resp.IsAccepted {
			r.AcceptedResponses++
		}
	}
	r.TotalResponses = len(r.Responses)
	r.NonAcceptedResponses = r.TotalResponses - r.AcceptedResponses
	r.HasAcceptedAnswer = r.AcceptedResponses > 0
	return r
}

// AcceptedOnly returns the responses marked accepted, in page order.
func (r *Record) AcceptedOnly() []Response {
	return r.filter(true)
}

// NonAccepted returns the responses not marked accepted, in page order.
func (r *Record) NonAccepted() []Response {
	return r.filter(false)
}

func (r *Record) filter(accepted bool) []Response {
	out := make([]Response, 0, len(r.Responses))
	for _, resp := range r.Responses {
		if resp.IsAccepted == accepted {
			out = append(out, resp)
		}
	}
	return out
}

// RunSummary is reported at the end of a section run, even an early one.
type RunSummary struct {
	TopicURL        string   `json:"topic_url"`
	Section         string   `json:"section"`
	PagesVisited    int      `json:"pages_visited"`
	Accepted        int      `json:"accepted"`
	NonAccepted     int      `json:"non_accepted"`
	SkippedListings int      `json:"skipped_listings"`
	SkippedDetails  int      `json:"skipped_details"`
	Stopped         bool     `json:"stopped"`
	OutputFiles     []string `json:"output_files"`
	Duration        string   `json:"duration"`
}
