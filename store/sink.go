package store

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/use-agent/qaharvest/models"
)

// Sink persists the complete contents of both result sets. Every Write
// replaces what the previous one produced.
type Sink interface {
	Name() string
	Write(accepted, nonAccepted []models.Record) error
	Paths() []string
}

// JSONSink writes one pretty-printed array per partition.
type JSONSink struct {
	acceptedPath    string
	nonAcceptedPath string
}

// NewJSONSink writes <dir>/<base>_accepted.json and <dir>/<base>_no_accepted.json.
func NewJSONSink(dir, base string) *JSONSink {
	return &JSONSink{
		acceptedPath:    filepath.Join(dir, base+"_accepted.json"),
		nonAcceptedPath: filepath.Join(dir, base+"_no_accepted.json"),
	}
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Paths() []string { return []string{s.acceptedPath, s.nonAcceptedPath} }

func (s *JSONSink) Write(accepted, nonAccepted []models.Record) error {
	if err := writeJSON(s.acceptedPath, accepted); err != nil {
		return err
	}
	return writeJSON(s.nonAcceptedPath, nonAccepted)
}

func writeJSON(path string, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	})
}

// XLSXSink writes one spreadsheet row per record, accepted records first.
type XLSXSink struct {
	path string
}

// NewXLSXSink writes <dir>/<base>.xlsx.
func NewXLSXSink(dir, base string) *XLSXSink {
	return &XLSXSink{path: filepath.Join(dir, base+".xlsx")}
}

const sheetName = "questions"

var tabularHeader = []interface{}{
	"page_number", "system", "title", "question", "question_images",
	"total_responses", "accepted_responses", "other_responses",
	"all_responses_summary", "tags", "url", "has_accepted_answer",
}

func (s *XLSXSink) Name() string { return "xlsx" }

func (s *XLSXSink) Paths() []string { return []string{s.path} }

func (s *XLSXSink) Write(accepted, nonAccepted []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("store: xlsx sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &tabularHeader); err != nil {
		return fmt.Errorf("store: xlsx header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheetName, "A1", "L1", style)
	}
	_ = f.SetColWidth(sheetName, "C", "D", 60)

	row := 2
	for _, group := range [][]models.Record{accepted, nonAccepted} {
		for i := range group {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := tabularRow(&group[i])
			if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
				return fmt.Errorf("store: xlsx row %d: %w", row, err)
			}
			row++
		}
	}

	return WriteFileAtomic(s.path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

const excerptRunes = 200

// tabularRow flattens a record into the spreadsheet columns.
func tabularRow(r *models.Record) []interface{} {
	images := make([]string, 0, len(r.BodyImages))
	for _, img := range r.BodyImages {
		images = append(images, img.Filename)
	}

	summary := make([]string, 0, len(r.Responses))
	for _, resp := range r.Responses {
		entry := fmt.Sprintf("[%s] %s", authorOrUnknown(resp.Author), excerpt(resp.Text))
		if n := len(resp.Images); n > 0 {
			entry += fmt.Sprintf(" [%d image(s)]", n)
		}
		summary = append(summary, entry)
	}

	hasAccepted := "No"
	if r.HasAcceptedAnswer {
		hasAccepted = "Yes"
	}

	return []interface{}{
		r.PageNumber,
		r.System,
		r.Title,
		r.Body,
		strings.Join(images, "; "),
		r.TotalResponses,
		joinResponses(r.AcceptedOnly()),
		joinResponses(r.NonAccepted()),
		strings.Join(summary, " | "),
		strings.Join(r.Tags, "; "),
		r.URL,
		hasAccepted,
	}
}

func joinResponses(responses []models.Response) string {
	parts := make([]string, 0, len(responses))
	for _, resp := range responses {
		parts = append(parts, authorOrUnknown(resp.Author)+": "+excerpt(resp.Text))
	}
	return strings.Join(parts, "; ")
}

func authorOrUnknown(author string) string {
	if author == "" {
		return "Unknown"
	}
	return author
}

// excerpt shortens text to excerptRunes runes, marking the cut with "...".
func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	return string([]rune(text)[:excerptRunes]) + "..."
}
