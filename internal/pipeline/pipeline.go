// Package pipeline orchestrates one batch run: diagnose, clean, validate,
// sort, segment, and select QA pairs.
//
// Every stage takes a slice and returns a new one; nothing mutates shared
// state, so each stage is independently testable. Processing is
// single-threaded and order-preserving: session boundaries and tie-breaks
// depend on input order.
package pipeline

import (
	"fmt"
	"time"

	"github.com/hurttlocker/chatmine/internal/clean"
	"github.com/hurttlocker/chatmine/internal/ingest"
	"github.com/hurttlocker/chatmine/internal/match"
	"github.com/hurttlocker/chatmine/internal/policy"
	"github.com/hurttlocker/chatmine/internal/qa"
	"github.com/hurttlocker/chatmine/internal/report"
	"github.com/hurttlocker/chatmine/internal/segment"
	"github.com/hurttlocker/chatmine/internal/tag"
)

// Options configures one run. Zero values select the documented defaults.
type Options struct {
	// Timeout is the session inactivity gap (default 30m).
	Timeout time.Duration

	// MatchThreshold rejects QA pairs scoring below it (default 0.3).
	MatchThreshold float64

	// MinQuestionRunes filters representative-question candidates
	// (default 5).
	MinQuestionRunes int

	// MinMessageRunes drops cleaned messages shorter than this (default 3).
	MinMessageRunes int

	// ProgressFn, when set, receives per-stage progress updates.
	ProgressFn func(stage string, done, total int)
}

// Result is the outcome of one batch run.
type Result struct {
	Pairs    []qa.Pair
	Report   *report.Report
	Messages int // messages surviving cleaning and validation
	Dropped  int // raw records dropped by cleaning/validation
	Sessions int
}

// Run executes the whole pipeline over a raw batch. An empty batch is
// fatal; everything downstream degrades gracefully instead of failing.
func Run(records []ingest.Record, pol *policy.Policy, opts Options) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty input batch")
	}
	if pol == nil {
		pol = policy.Default()
	}

	// Diagnostics run on the raw batch, before any cleaning.
	reporter := report.NewReporter(pol, opts.Timeout)
	rep := reporter.Generate(records)

	msgs := cleanBatch(records, pol, opts)

	sorted := segment.SortByTime(msgs)

	sessions := segment.NewSegmenter(opts.Timeout).Segment(sorted)

	tagger := tag.New(pol)
	scorer := match.NewScorer(pol, tagger)
	selector := qa.NewSelector(scorer, tagger, opts.MinQuestionRunes, opts.MatchThreshold)

	var pairs []qa.Pair
	for i, sess := range sessions {
		if pair, ok := selector.Select(sess); ok {
			pairs = append(pairs, *pair)
		}
		progress(opts, "select", i+1, len(sessions))
	}

	return &Result{
		Pairs:    pairs,
		Report:   rep,
		Messages: len(msgs),
		Dropped:  len(records) - len(msgs),
		Sessions: len(sessions),
	}, nil
}

// cleanBatch normalizes and validates each record, classifying roles on
// the survivors. Records failing validation leave the stream entirely.
func cleanBatch(records []ingest.Record, pol *policy.Policy, opts Options) []segment.Message {
	normalizer := clean.NewNormalizer(pol)
	validator := clean.NewValidator(pol, opts.MinMessageRunes)

	msgs := make([]segment.Message, 0, len(records))
	for i, rec := range records {
		content := normalizer.Clean(rec.Content)
		if !validator.Valid(content) {
			progress(opts, "clean", i+1, len(records))
			continue
		}

		m := segment.Message{
			Sender:     rec.Sender,
			Role:       segment.ClassifyRole(rec.Sender, pol.CustomerPrefixes),
			Content:    content,
			SessionKey: rec.SessionKey,
			Seq:        i,
		}
		if rec.TimeValid {
			m.Timestamp = rec.Time
		}
		msgs = append(msgs, m)
		progress(opts, "clean", i+1, len(records))
	}
	return msgs
}

func progress(opts Options, stage string, done, total int) {
	if opts.ProgressFn != nil {
		opts.ProgressFn(stage, done, total)
	}
}
