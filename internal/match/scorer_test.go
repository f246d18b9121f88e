package match

import (
	"testing"

	"github.com/hurttlocker/chatmine/internal/policy"
	"github.com/hurttlocker/chatmine/internal/tag"
)

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	pol := policy.Default()
	return NewScorer(pol, tag.New(pol))
}

func TestLexicalBounds(t *testing.T) {
	s := newScorer(t)

	cases := []struct{ a, b string }{
		{"", ""},
		{"hello", ""},
		{"hello world", "hello world"},
		{"退款 订单", "发货 物流"},
		{"a b c", "c d e"},
	}
	for _, tc := range cases {
		got := s.Lexical(tc.a, tc.b)
		if got < 0 || got > 1 {
			t.Errorf("Lexical(%q, %q) = %v, out of [0,1]", tc.a, tc.b, got)
		}
	}
}

func TestLexicalIdentical(t *testing.T) {
	s := newScorer(t)
	// Identical non-keyword text: full Jaccard, no keyword term.
	if got := s.Lexical("hello world", "hello world"); got != 0.6 {
		t.Errorf("identical non-keyword text = %v, want 0.6", got)
	}
	// Identical keyword text: both terms saturate.
	if got := s.Lexical("退款 订单", "退款 订单"); got != 1.0 {
		t.Errorf("identical keyword text = %v, want 1.0", got)
	}
}

func TestLexicalDisjoint(t *testing.T) {
	s := newScorer(t)
	if got := s.Lexical("alpha beta", "gamma delta"); got != 0 {
		t.Errorf("disjoint tokens = %v, want 0", got)
	}
}

func TestLexicalEmptyInput(t *testing.T) {
	s := newScorer(t)
	if got := s.Lexical("", "hello"); got != 0 {
		t.Errorf("empty input = %v, want 0", got)
	}
}

func TestLexicalKeywordTerm(t *testing.T) {
	s := newScorer(t)
	// Shared keyword 退款 (weight 1.0), unshared keyword 订单 (0.8).
	// Jaccard: {退款,怎么办} vs {退款,订单} → 1/3.
	// Keyword: 1.0 / (1.0 + 0.8) = 0.5556.
	got := s.Lexical("退款 怎么办", "退款 订单")
	want := 0.6*(1.0/3.0) + 0.4*(1.0/1.8)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("keyword blend = %v, want %v", got, want)
	}
}

func TestContextMatchUnrelated(t *testing.T) {
	s := newScorer(t)
	// No shared tags, no common categories, no shared tokens.
	if got := s.ContextMatch("我的订单还没有处理", "今天天气很好"); got != 0 {
		t.Errorf("unrelated pair = %v, want 0", got)
	}
}

func TestContextMatchSharedTags(t *testing.T) {
	s := newScorer(t)
	// Both sides carry 订单问题 and 物流问题: tag component saturates at 0.4.
	got := s.ContextMatch("订单什么时候发货", "您的订单已发货")
	if got < 0.4 {
		t.Errorf("fully shared tags should score >= 0.4, got %v", got)
	}
	if got > 1 {
		t.Errorf("score must be clamped to 1, got %v", got)
	}
}

func TestContextMatchDeterministic(t *testing.T) {
	s := newScorer(t)
	q := "ETC卡无法扣费怎么办"
	a := "已为您处理，ETC余额已扣款"
	first := s.ContextMatch(q, a)
	for i := 0; i < 10; i++ {
		if got := s.ContextMatch(q, a); got != first {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestContextMatchAsymmetricTags(t *testing.T) {
	s := newScorer(t)
	// One side untagged: tag and category components are 0; only the
	// lexical term can contribute.
	got := s.ContextMatch("退款多久到账", "正在加急处理中")
	if got >= 0.3 {
		t.Errorf("tag-less answer should stay below threshold, got %v", got)
	}
}
