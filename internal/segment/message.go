// Package segment holds the message model, sender-role classification and
// the session segmentation engine: the stateful walk that splits a
// time-ordered message stream into conversational sessions.
package segment

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Role classifies who sent a message.
type Role int

const (
	RoleUnknown Role = iota
	RoleCustomer
	RoleAgent
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Message is one transcript row after cleaning, ready for segmentation.
type Message struct {
	// Timestamp is the message time; the zero value marks a missing or
	// unparseable source timestamp.
	Timestamp time.Time

	// Sender is the raw identity string from the source.
	Sender string

	// Role is derived from Sender via ClassifyRole.
	Role Role

	// Content is the cleaned message text (never empty here; empty
	// messages are dropped upstream).
	Content string

	// SessionKey is the optional explicit session identifier. Empty means
	// sessions are inferred purely from time gaps.
	SessionKey string

	// Seq is the original input position, used for stable ordering of
	// timestamp ties and messages without timestamps.
	Seq int
}

// HasTime reports whether the message carries a well-formed timestamp.
func (m Message) HasTime() bool {
	return !m.Timestamp.IsZero()
}

var (
	// Agent labels are parenthesized display names, e.g. "客服张三(8001)"
	// or the fullwidth "李四（12）".
	agentLabelRE = regexp.MustCompile(`\(.*\)|（.*）`)

	// Bare alphanumeric identifiers are customer accounts.
	customerIDRE = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// ClassifyRole derives the sender role from the raw label. The labeling
// convention comes from the source export: agents carry a parenthesized
// display name, customers a bare account ID or one of the configured
// prefixes. Everything else is unknown.
func ClassifyRole(sender string, customerPrefixes []string) Role {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return RoleUnknown
	}
	if agentLabelRE.MatchString(sender) {
		return RoleAgent
	}
	for _, prefix := range customerPrefixes {
		if prefix != "" && strings.HasPrefix(sender, prefix) {
			return RoleCustomer
		}
	}
	if customerIDRE.MatchString(sender) {
		return RoleCustomer
	}
	return RoleUnknown
}

// SortByTime stable-sorts messages by timestamp ascending, input order
// preserved for ties. Messages without a timestamp sink to the end in
// input order, matching how the source export sorts blank cells.
func SortByTime(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.HasTime() && b.HasTime():
			return a.Timestamp.Before(b.Timestamp)
		case a.HasTime():
			return true
		default:
			return false
		}
	})
	return out
}
