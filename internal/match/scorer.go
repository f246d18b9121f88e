// Package match computes bounded [0,1] relevance scores between text spans.
//
// Two operations are exposed: Lexical, a token-set similarity blended with a
// weighted keyword term, and ContextMatch, the composite question/answer
// relevance used to accept or reject a QA pair. Both are pure functions of
// the two inputs and the static policy tables.
package match

import (
	"strings"

	"github.com/hurttlocker/chatmine/internal/policy"
	"github.com/hurttlocker/chatmine/internal/tag"
)

// Blend weights for ContextMatch.
const (
	tagOverlapWeight      = 0.4
	keywordCategoryWeight = 0.3
	lexicalWeight         = 0.3
)

// Blend weights for Lexical.
const (
	jaccardWeight        = 0.6
	keywordOverlapWeight = 0.4
)

// Scorer scores text pairs against the policy tables. Read-only after
// construction.
type Scorer struct {
	pol    *policy.Policy
	tagger *tag.Tagger
}

// NewScorer builds a Scorer sharing the given tagger's category tables.
func NewScorer(pol *policy.Policy, tagger *tag.Tagger) *Scorer {
	return &Scorer{pol: pol, tagger: tagger}
}

// Lexical returns the lexical similarity of a and b in [0,1]: token-set
// Jaccard over case-folded whitespace tokens, blended 60/40 with a weighted
// overlap ratio over tokens present in the keyword importance table. When
// neither text contributes a table token, the keyword term is 0.
func (s *Scorer) Lexical(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(inter) / float64(union)
	}

	keyword := s.keywordOverlap(ta, tb)

	return clamp01(jaccardWeight*jaccard + keywordOverlapWeight*keyword)
}

// keywordOverlap is the weighted overlap ratio restricted to importance-table
// tokens: weight of tokens in both texts over weight of tokens in either.
func (s *Scorer) keywordOverlap(ta, tb map[string]struct{}) float64 {
	both := 0.0
	either := 0.0
	for tok := range ta {
		if !s.pol.HasKeyword(tok) {
			continue
		}
		w := s.pol.KeywordWeight(tok)
		either += w
		if _, ok := tb[tok]; ok {
			both += w
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; ok {
			continue // counted above
		}
		if s.pol.HasKeyword(tok) {
			either += s.pol.KeywordWeight(tok)
		}
	}
	if either == 0 {
		return 0
	}
	return both / either
}

// ContextMatch returns the composite question/answer relevance in [0,1]:
// 0.4·tag overlap + 0.3·keyword-category overlap + 0.3·lexical similarity.
// Degenerate inputs degrade to 0 for the affected component; the function
// never fails.
func (s *Scorer) ContextMatch(question, answer string) float64 {
	qTags := s.tagger.TagSet(question)
	aTags := s.tagger.TagSet(answer)

	score := tagOverlapWeight*s.tagOverlap(qTags, aTags) +
		keywordCategoryWeight*s.categoryOverlap(question, answer, qTags, aTags) +
		lexicalWeight*s.Lexical(question, answer)

	return clamp01(score)
}

// tagOverlap is the weighted Dice coefficient of the two tag sets: the
// weight of shared tags counted once per side over the weight of all tags
// present on either side counted once per side. Zero when either side has
// no tags.
func (s *Scorer) tagOverlap(qTags, aTags map[string]struct{}) float64 {
	if len(qTags) == 0 || len(aTags) == 0 {
		return 0
	}
	shared := 0.0
	total := 0.0
	for t := range qTags {
		w := s.pol.TagWeight(t)
		total += w
		if _, ok := aTags[t]; ok {
			shared += 2 * w
		}
	}
	for t := range aTags {
		total += s.pol.TagWeight(t)
	}
	if total == 0 {
		return 0
	}
	return clamp01(shared / total)
}

// categoryOverlap scores how much of the shared categories' keyword mass is
// actually present in each text, restricted to categories both sides match.
// Zero when the sides share no category.
func (s *Scorer) categoryOverlap(question, answer string, qTags, aTags map[string]struct{}) float64 {
	var common []string
	for t := range qTags {
		if _, ok := aTags[t]; ok {
			common = append(common, t)
		}
	}
	if len(common) == 0 {
		return 0
	}

	qLower := strings.ToLower(question)
	aLower := strings.ToLower(answer)

	found := 0.0
	total := 0.0
	for _, cat := range common {
		for _, kw := range s.tagger.CategoryKeywords(cat) {
			w := s.pol.KeywordWeight(kw)
			total += 2 * w
			if strings.Contains(qLower, kw) {
				found += w
			}
			if strings.Contains(aLower, kw) {
				found += w
			}
		}
	}
	if total == 0 {
		return 0
	}
	return clamp01(found / total)
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
