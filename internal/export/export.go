// Package export serializes pipeline results to flat output files: the
// knowledge-base JSON, the diagnostic report JSON, and a spreadsheet-shaped
// CSV of the extracted pairs.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hurttlocker/chatmine/internal/qa"
	"github.com/hurttlocker/chatmine/internal/report"
)

// Output file names inside the output directory.
const (
	KnowledgeBaseFile = "knowledge_base.json"
	ReportFile        = "diagnostic_report.json"
	PairsFile         = "qa_pairs.csv"
)

// DefaultSource labels knowledge-base entries extracted by this pipeline.
const DefaultSource = "客服聊天记录"

// KBEntry is one knowledge-base record.
type KBEntry struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Tags          []string `json:"tags"`
	Source        string   `json:"source"`
	EffectiveDate string   `json:"effective_date"`
}

// WriteAll writes every output artifact into dir, creating it if needed.
func WriteAll(dir string, pairs []qa.Pair, rep *report.Report, source string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := WriteKnowledgeBase(filepath.Join(dir, KnowledgeBaseFile), pairs, source); err != nil {
		return err
	}
	if err := WriteReport(filepath.Join(dir, ReportFile), rep); err != nil {
		return err
	}
	return WritePairsCSV(filepath.Join(dir, PairsFile), pairs)
}

// WriteKnowledgeBase writes the knowledge-base JSON. The effective date
// spans two years from the pair's timestamp.
func WriteKnowledgeBase(path string, pairs []qa.Pair, source string) error {
	if source == "" {
		source = DefaultSource
	}

	entries := make([]KBEntry, 0, len(pairs))
	for _, p := range pairs {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		entries = append(entries, KBEntry{
			Question:      p.Question,
			Answer:        p.Answer,
			Tags:          tags,
			Source:        source,
			EffectiveDate: EffectiveDate(p.Timestamp),
		})
	}
	return writeJSON(path, entries)
}

// WriteReport writes the diagnostic report JSON.
func WriteReport(path string, rep *report.Report) error {
	return writeJSON(path, rep)
}

// WritePairsCSV writes the extracted pairs as a spreadsheet-shaped CSV.
func WritePairsCSV(path string, pairs []qa.Pair) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"客户ID", "客服", "问题", "回答", "时间", "标签"}); err != nil {
		return err
	}
	for _, p := range pairs {
		ts := ""
		if !p.Timestamp.IsZero() {
			ts = p.Timestamp.Format("2006-01-02 15:04:05")
		}
		row := []string{
			p.CustomerID,
			p.AgentID,
			p.Question,
			p.Answer,
			ts,
			strings.Join(p.Tags, ";"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// EffectiveDate derives the "YYYY-YYYY" validity span from a pair
// timestamp: extraction year through two years later. Empty when the
// timestamp is missing.
func EffectiveDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d-%d", t.Year(), t.Year()+2)
}

// writeJSON writes indented UTF-8 JSON without HTML escaping, so Chinese
// text stays readable in the output files.
func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
