// Package tag assigns topic categories to message text by keyword
// membership over the policy's category tables.
package tag

import (
	"sort"
	"strings"

	"github.com/hurttlocker/chatmine/internal/policy"
)

// Tagger maps text to the set of categories whose keywords appear in it.
// A Tagger is read-only after construction and safe for concurrent use.
type Tagger struct {
	cats []category
}

type category struct {
	name     string
	keywords []string // lowercased
}

// New builds a Tagger from the policy's categories. Keyword matching is
// case-insensitive substring containment, so multi-character Chinese
// keywords and Latin abbreviations both work without tokenization.
func New(pol *policy.Policy) *Tagger {
	t := &Tagger{cats: make([]category, 0, len(pol.Categories))}
	for _, c := range pol.Categories {
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		if len(kws) > 0 {
			t.cats = append(t.cats, category{name: c.Name, keywords: kws})
		}
	}
	return t
}

// Tags returns the deduplicated, sorted category labels matching text.
// Tagging the same text always yields the identical slice.
func (t *Tagger) Tags(text string) []string {
	set := t.TagSet(text)
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TagSet returns the matching categories as a set.
func (t *Tagger) TagSet(text string) map[string]struct{} {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	var set map[string]struct{}
	for _, c := range t.cats {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				if set == nil {
					set = make(map[string]struct{})
				}
				set[c.name] = struct{}{}
				break
			}
		}
	}
	return set
}

// CategoryKeywords returns the lowercased keyword list for a category, or
// nil when the category is unknown. Used by the similarity scorer's
// keyword-category component.
func (t *Tagger) CategoryKeywords(name string) []string {
	for _, c := range t.cats {
		if c.name == name {
			return c.keywords
		}
	}
	return nil
}
