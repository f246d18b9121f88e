// Package clean provides text normalization and message validation for raw
// transcript content.
//
// Normalization is lossy on purpose: system markers, links, media
// placeholders and boilerplate phrases are stripped, identifiers are
// partially masked, and repeated characters are collapsed. Validation then
// decides whether what is left is worth feeding to the session segmenter.
package clean

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hurttlocker/chatmine/internal/policy"
)

var (
	squareBracketRE = regexp.MustCompile(`\[[^\[\]]*\]`)
	lentiBracketRE  = regexp.MustCompile(`【[^【】]*】`)
	htmlTagRE       = regexp.MustCompile(`<[^<>]+>`)
	linkRE          = regexp.MustCompile(`https?://\S+`)

	// National ID first: an 18-char ID contains an 11-digit mobile-shaped
	// run, so the longer pattern must win.
	nationalIDRE = regexp.MustCompile(`\d{17}[\dXx]`)
	mobileRE     = regexp.MustCompile(`1[3-9]\d{9}`)
	bankCardRE   = regexp.MustCompile(`\d{13,19}`)

	whitespaceRE = regexp.MustCompile(`\s+`)
)

// punctuationVariants maps typographic variants to their standard form.
var punctuationVariants = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
	"…", "...",
	"～", "~",
	"—", "-",
)

// Normalizer applies the policy-driven cleanup sequence to message text.
type Normalizer struct {
	pol         *policy.Policy
	synonymKeys []string
}

// NewNormalizer builds a Normalizer over an immutable policy.
func NewNormalizer(pol *policy.Policy) *Normalizer {
	return &Normalizer{
		pol:         pol,
		synonymKeys: pol.SortedSynonymKeys(),
	}
}

// Clean runs the full normalization sequence and returns the cleaned text.
// The result may be empty, in which case the message carries no content.
func (n *Normalizer) Clean(text string) string {
	// Unicode canonicalization (fullwidth ASCII, compatibility forms).
	text = norm.NFKC.String(text)

	// System markers, markup and links.
	text = squareBracketRE.ReplaceAllString(text, "")
	text = lentiBracketRE.ReplaceAllString(text, "")
	text = htmlTagRE.ReplaceAllString(text, "")
	text = linkRE.ReplaceAllString(text, "")

	text = collapseRuns(text, 2)

	for _, old := range n.synonymKeys {
		text = strings.ReplaceAll(text, old, n.pol.Synonyms[old])
	}

	text = redactIdentifiers(text)

	for _, tok := range n.pol.NoiseTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	for _, phrase := range n.pol.BoilerplatePhrases {
		text = strings.ReplaceAll(text, phrase, "")
	}

	text = punctuationVariants.Replace(text)
	text = whitespaceRE.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// collapseRuns shortens any run of 3+ identical runes to max repeats.
// RE2 has no backreferences, so this is a manual scan.
func collapseRuns(text string, max int) string {
	var b strings.Builder
	b.Grow(len(text))

	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run <= max {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// redactIdentifiers partially masks phone, national ID and card numbers,
// keeping the last four characters.
func redactIdentifiers(text string) string {
	text = nationalIDRE.ReplaceAllStringFunc(text, func(m string) string {
		return "ID_****" + m[len(m)-4:]
	})
	text = mobileRE.ReplaceAllStringFunc(text, func(m string) string {
		return "*******" + m[len(m)-4:]
	})
	text = bankCardRE.ReplaceAllStringFunc(text, func(m string) string {
		return "****" + m[len(m)-4:]
	})
	return text
}
