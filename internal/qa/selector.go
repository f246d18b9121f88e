// Package qa selects a representative question and best-matching answer
// from a finalized session, or declines to emit a pair.
package qa

import (
	"time"
	"unicode/utf8"

	"github.com/hurttlocker/chatmine/internal/match"
	"github.com/hurttlocker/chatmine/internal/segment"
	"github.com/hurttlocker/chatmine/internal/tag"
)

// Defaults for selector thresholds.
const (
	DefaultMatchThreshold = 0.3
	DefaultMinQuestionLen = 5
)

// Pair is one extracted question/answer unit. Pairs are independent of
// their source session; no back-reference is retained.
type Pair struct {
	CustomerID string    `json:"customer_id"`
	AgentID    string    `json:"agent_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
	Tags       []string  `json:"tags"`
	Score      float64   `json:"score"`
}

// Selector extracts at most one Pair per session.
type Selector struct {
	scorer         *match.Scorer
	tagger         *tag.Tagger
	minQuestionLen int
	threshold      float64
}

// NewSelector builds a Selector. minQuestionLen <= 0 and threshold <= 0
// select the defaults.
func NewSelector(scorer *match.Scorer, tagger *tag.Tagger, minQuestionLen int, threshold float64) *Selector {
	if minQuestionLen <= 0 {
		minQuestionLen = DefaultMinQuestionLen
	}
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Selector{
		scorer:         scorer,
		tagger:         tagger,
		minQuestionLen: minQuestionLen,
		threshold:      threshold,
	}
}

// Select returns the session's QA pair, or (nil, false) when the session
// lacks a role, or when no answer clears the match threshold. A missing
// pair is a normal outcome, never an error.
func (s *Selector) Select(sess *segment.Session) (*Pair, bool) {
	questions := sess.ByRole(segment.RoleCustomer)
	answers := sess.ByRole(segment.RoleAgent)
	if len(questions) == 0 || len(answers) == 0 {
		return nil, false
	}

	rep := s.representative(questions)

	best := -1
	bestScore := 0.0
	for i, a := range answers {
		score := s.scorer.ContextMatch(rep.Content, a.Content)
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	if bestScore < s.threshold {
		return nil, false
	}

	return &Pair{
		CustomerID: questions[0].Sender,
		AgentID:    answers[0].Sender,
		Question:   rep.Content,
		Answer:     answers[best].Content,
		Timestamp:  sess.Start(),
		Tags:       s.tagger.Tags(rep.Content),
		Score:      bestScore,
	}, true
}

// representative picks the question that best stands for the session's
// intent: among questions longer than the minimum, the one with the highest
// summed pairwise similarity against the candidate set. Self-comparison is
// included in the sum. Ties go to the earliest candidate.
func (s *Selector) representative(questions []segment.Message) segment.Message {
	candidates := make([]segment.Message, 0, len(questions))
	for _, q := range questions {
		if utf8.RuneCountInString(q.Content) > s.minQuestionLen {
			candidates = append(candidates, q)
		}
	}

	// All too short: fall back to the single longest, earliest on ties.
	if len(candidates) == 0 {
		best := questions[0]
		bestLen := utf8.RuneCountInString(best.Content)
		for _, q := range questions[1:] {
			if l := utf8.RuneCountInString(q.Content); l > bestLen {
				best = q
				bestLen = l
			}
		}
		return best
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	best := 0
	bestTotal := -1.0
	for i, q := range candidates {
		total := 0.0
		for _, other := range candidates {
			total += s.scorer.Lexical(q.Content, other.Content)
		}
		if total > bestTotal {
			best = i
			bestTotal = total
		}
	}
	return candidates[best]
}
