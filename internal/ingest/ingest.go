// Package ingest reads raw transcript batches from spreadsheet-shaped
// files (CSV/TSV) into ordered records.
//
// The first row is a header; the transcript columns are located by name,
// with the Chinese export headers as defaults and English fallbacks.
// Timestamp parsing is best-effort: a missing or unparseable value is kept
// as invalid rather than rejected, and becomes a session boundary later.
package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Record is one raw transcript row, whitespace-trimmed but otherwise
// untouched; cleaning happens downstream.
type Record struct {
	// Line is the 1-indexed source line (header is line 1).
	Line int

	Sender     string
	Content    string
	RawTime    string
	SessionKey string

	// Time is the parsed timestamp; meaningful only when TimeValid is set.
	Time      time.Time
	TimeValid bool
}

// Columns names the transcript columns in the source header.
type Columns struct {
	Time       string `yaml:"time"`
	Sender     string `yaml:"sender"`
	Content    string `yaml:"content"`
	SessionKey string `yaml:"session_key"`
}

// DefaultColumns matches the customer-service export this pipeline was
// built for.
func DefaultColumns() Columns {
	return Columns{
		Time:       "消息时间",
		Sender:     "消息来源",
		Content:    "聊天内容",
		SessionKey: "会话ID",
	}
}

// englishFallbacks maps column roles to accepted English headers.
var englishFallbacks = map[string][]string{
	"time":        {"timestamp", "time", "message_time"},
	"sender":      {"sender", "source", "from"},
	"content":     {"content", "message", "text"},
	"session_key": {"session_id", "session", "conversation_id"},
}

// timeLayouts are tried in order when parsing timestamps.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ReadFile reads a CSV or TSV transcript file. Missing required columns or
// an empty batch are fatal: the caller aborts the whole run.
func ReadFile(path string, cols Columns) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	idx, err := resolveColumns(rows[0], cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := Record{Line: i + 2}
		rec.Sender = cell(row, idx.sender)
		rec.Content = cell(row, idx.content)
		rec.RawTime = cell(row, idx.time)
		rec.SessionKey = cell(row, idx.sessionKey)
		rec.Time, rec.TimeValid = ParseTime(rec.RawTime)
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}
	return records, nil
}

// ParseTime parses a source timestamp, reporting validity instead of
// failing.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			// Sub-second precision is noise for session gaps.
			return t.Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

type columnIndex struct {
	time       int
	sender     int
	content    int
	sessionKey int
}

// resolveColumns locates the configured columns in the header, falling back
// to the English aliases. Time, sender and content are required; the
// session key is optional.
func resolveColumns(header []string, cols Columns) (columnIndex, error) {
	find := func(name, role string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		for _, alias := range englishFallbacks[role] {
			for i, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), alias) {
					return i
				}
			}
		}
		return -1
	}

	idx := columnIndex{
		time:       find(cols.Time, "time"),
		sender:     find(cols.Sender, "sender"),
		content:    find(cols.Content, "content"),
		sessionKey: find(cols.SessionKey, "session_key"),
	}

	var missing []string
	if idx.time < 0 {
		missing = append(missing, cols.Time)
	}
	if idx.sender < 0 {
		missing = append(missing, cols.Sender)
	}
	if idx.content < 0 {
		missing = append(missing, cols.Content)
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
