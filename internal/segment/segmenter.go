package segment

import (
	"time"
)

// DefaultTimeout is the inactivity gap that closes a session.
const DefaultTimeout = 30 * time.Minute

// Session is a maximal run of messages judged to belong to one interaction.
// It owns its messages for the duration of one segmentation pass.
type Session struct {
	Messages []Message
}

// Start returns the timestamp of the session's first message (zero when the
// first message has no timestamp).
func (s *Session) Start() time.Time {
	if len(s.Messages) == 0 {
		return time.Time{}
	}
	return s.Messages[0].Timestamp
}

// ByRole returns the session's messages with the given role, time order
// preserved.
func (s *Session) ByRole(role Role) []Message {
	var out []Message
	for _, m := range s.Messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// Segmenter walks an ordered message stream and emits finalized sessions.
// A session closes when the explicit session key changes, when the
// inactivity gap exceeds the timeout, or when either timestamp around the
// gap is malformed (fail-safe split: a spurious boundary beats merging
// unrelated interactions).
//
// A Segmenter is single-use per pass: Push messages in order, then Flush.
type Segmenter struct {
	timeout time.Duration

	current *Session
	prev    *Message
}

// NewSegmenter returns a Segmenter with the given inactivity timeout.
// timeout <= 0 selects DefaultTimeout.
func NewSegmenter(timeout time.Duration) *Segmenter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Segmenter{timeout: timeout}
}

// Push feeds the next message. When the message closes the current session,
// that session is returned; otherwise Push returns nil.
func (s *Segmenter) Push(m Message) *Session {
	if s.current == nil {
		s.current = &Session{Messages: []Message{m}}
		last := m
		s.prev = &last
		return nil
	}

	var closed *Session
	if s.isBoundary(*s.prev, m) {
		closed = s.current
		s.current = &Session{Messages: []Message{m}}
	} else {
		s.current.Messages = append(s.current.Messages, m)
	}

	last := m
	s.prev = &last
	return closed
}

// Flush closes and returns the open session, or nil when none is open.
// The final session of a stream is always emitted, whatever its size.
func (s *Segmenter) Flush() *Session {
	closed := s.current
	s.current = nil
	s.prev = nil
	return closed
}

// Segment runs a full pass over an ordered batch and returns every session.
func (s *Segmenter) Segment(msgs []Message) []*Session {
	var sessions []*Session
	for _, m := range msgs {
		if closed := s.Push(m); closed != nil {
			sessions = append(sessions, closed)
		}
	}
	if final := s.Flush(); final != nil {
		sessions = append(sessions, final)
	}
	return sessions
}

// isBoundary decides whether cur starts a new session after prev. Either
// signal alone suffices: a changed explicit key or an excessive gap.
func (s *Segmenter) isBoundary(prev, cur Message) bool {
	if prev.SessionKey != cur.SessionKey {
		return true
	}
	if !prev.HasTime() || !cur.HasTime() {
		return true
	}
	return cur.Timestamp.Sub(prev.Timestamp) > s.timeout
}
