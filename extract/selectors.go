package extract

// Selector tables, in priority order. Forum markup differs between board
// themes and content types, so every field carries a fallback list.
var (
	linkTiers = []string{
		"a[href*='/qaq-p/'], a[href*='/qaa-p/'], a[href*='/qa-p/']",
		"a.question-title",
		"a[href*='/t5/']",
	}

	titleSelectors = []string{
		".lia-message-subject h1",
		".lia-message-subject .lia-message-subject-content",
		".lia-message-subject",
		"h1.PageTitle",
		"h1",
	}

	bodySelectors = []string{
		"#bodyDisplay",
		"div.lia-message-body",
		"div.question-body",
		"div.thread-body",
		"div.msgBody",
		"div.pure-u-1-1",
	}

	metaTagSelector     = `meta[property="article:tag"]`
	tagElementSelector  = "a.topic-tag, .lia-tag, .lia-tags a"
	metaSectionSelector = `meta[property="article:section"]`

	breadcrumbSelectors = []string{
		".lia-breadcrumb-navigation a",
		".breadcrumb a",
		"nav a",
		".lia-component-common-widget-breadcrumb a",
	}

	responseContainerSelector = ".MessageView.lia-message-view-qanda-answer"

	responseTextSelectors   = []string{".lia-message-body", "[id^='bodyDisplay']"}
	responseAuthorSelectors = []string{".lia-user-name-link", ".lia-user-name"}
	responseDateSelectors   = []string{".lia-message-posted-on", ".DateTime"}

	// acceptedClasses mark a response as the accepted solution.
	acceptedClasses = []string{"lia-accepted-solution", "lia-list-row-thread-solved"}
)

// titleSuffix is appended to every document title by the forum.
const titleSuffix = " | SAP Community"
