package clean

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/chatmine/internal/policy"
)

// DefaultMinRunes is the minimum cleaned length for a usable message.
const DefaultMinRunes = 3

var (
	purePunctRE = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)
	pureAlnumRE = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// systemMessagePatterns match scripted or automated traffic that survives
// normalization (queue notices, transfers, auto-replies).
var systemMessagePatterns = []string{
	"系统消息", "自动回复", "会话已转接", "排队中", "您已接入人工",
	"对方正在输入",
}

// Validator decides whether a cleaned message is semantically usable.
type Validator struct {
	pol      *policy.Policy
	minRunes int
}

// NewValidator builds a Validator. minRunes <= 0 selects DefaultMinRunes.
func NewValidator(pol *policy.Policy, minRunes int) *Validator {
	if minRunes <= 0 {
		minRunes = DefaultMinRunes
	}
	return &Validator{pol: pol, minRunes: minRunes}
}

// Valid reports whether text should enter the pipeline. The input is
// expected to be already normalized.
func (v *Validator) Valid(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < v.minRunes {
		return false
	}

	lower := strings.ToLower(text)
	for _, kw := range v.pol.TestKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	for _, w := range v.pol.BannedWords {
		if strings.Contains(text, w) {
			return false
		}
	}
	for _, p := range systemMessagePatterns {
		if strings.Contains(text, p) {
			return false
		}
	}

	if purePunctRE.MatchString(text) || pureAlnumRE.MatchString(text) {
		return false
	}
	return true
}
