// Package report computes batch-level data-quality diagnostics over a raw
// transcript batch: missing rates, duplication, emoji usage, language mix,
// length and response-time statistics, session patterns, and composite
// quality metrics.
//
// The reporter runs on the raw records, before cleaning, so the report
// describes the data as delivered rather than as consumed.
package report

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/hurttlocker/chatmine/internal/ingest"
	"github.com/hurttlocker/chatmine/internal/policy"
	"github.com/hurttlocker/chatmine/internal/segment"
)

// nearDupSampleLimit bounds the pairwise near-duplicate scan.
const nearDupSampleLimit = 200

// nearDupThreshold is the Jaro-Winkler score above which two messages are
// considered near-duplicates.
const nearDupThreshold = 0.93

var (
	emojiRE = regexp.MustCompile(`[\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{1F900}-\x{1F9FF}\x{2600}-\x{27BF}]`)

	chineseCharRE = regexp.MustCompile(`\p{Han}`)
	latinCharRE   = regexp.MustCompile(`[a-zA-Z]`)
)

// Report is the full diagnostic result for one batch.
type Report struct {
	TotalRecords      int                `json:"total_records"`
	MissingRates      map[string]float64 `json:"missing_rates"`
	DuplicateRate     float64            `json:"duplicate_rate"`
	NearDuplicateRate float64            `json:"near_duplicate_rate"`
	EmojiFrequency    map[string]int     `json:"emoji_frequency"`
	LanguageMix       LanguageMix        `json:"language_mix"`
	MessageLength     LengthStats        `json:"message_length_stats"`
	ResponseTime      DurationStats      `json:"response_time_minutes"`
	SessionPatterns   SessionStats       `json:"session_patterns"`
	Quality           QualityMetrics     `json:"quality_metrics"`
}

// LanguageMix holds character-class ratios over all content.
type LanguageMix struct {
	ChineseRatio float64 `json:"chinese_ratio"`
	EnglishRatio float64 `json:"english_ratio"`
	MixedRatio   float64 `json:"mixed_ratio"`
}

// LengthStats summarizes message lengths in runes.
type LengthStats struct {
	Mean   float64 `json:"mean_length"`
	Median float64 `json:"median_length"`
	Max    float64 `json:"max_length"`
	Min    float64 `json:"min_length"`
	Std    float64 `json:"std_length"`
}

// DurationStats summarizes agent response gaps in minutes.
type DurationStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
	Std    float64 `json:"std"`
}

// SessionStats summarizes gap-based session structure.
type SessionStats struct {
	TotalSessions int     `json:"total_sessions"`
	MeanLength    float64 `json:"mean_session_length"`
	MaxLength     int     `json:"max_session_length"`
	MinLength     int     `json:"min_session_length"`
	StdLength     float64 `json:"session_length_std"`
}

// QualityMetrics are coarse [0,1] health scores for the batch.
type QualityMetrics struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Validity     float64 `json:"validity"`
}

// Reporter computes Reports. Independent of the extraction engine: no
// shared state, safe to run before or after it.
type Reporter struct {
	pol     *policy.Policy
	timeout time.Duration
	now     func() time.Time
}

// NewReporter builds a Reporter. timeout <= 0 selects the segmenter
// default.
func NewReporter(pol *policy.Policy, timeout time.Duration) *Reporter {
	if timeout <= 0 {
		timeout = segment.DefaultTimeout
	}
	return &Reporter{pol: pol, timeout: timeout, now: time.Now}
}

// Generate computes the full diagnostic report for a batch.
func (r *Reporter) Generate(records []ingest.Record) *Report {
	rep := &Report{
		TotalRecords:      len(records),
		MissingRates:      missingRates(records),
		DuplicateRate:     duplicateRate(records),
		NearDuplicateRate: r.nearDuplicateRate(records),
		EmojiFrequency:    emojiFrequency(records),
		LanguageMix:       languageMix(records),
		MessageLength:     lengthStats(records),
	}

	msgs := r.toMessages(records)
	sorted := segment.SortByTime(msgs)

	rep.ResponseTime = responseTimes(sorted)
	rep.SessionPatterns = r.sessionPatterns(sorted)
	rep.Quality = QualityMetrics{
		Completeness: completeness(rep.MissingRates),
		Consistency:  r.consistency(records),
		Validity:     r.validity(records),
	}
	return rep
}

func (r *Reporter) toMessages(records []ingest.Record) []segment.Message {
	msgs := make([]segment.Message, len(records))
	for i, rec := range records {
		m := segment.Message{
			Sender:  rec.Sender,
			Role:    segment.ClassifyRole(rec.Sender, r.pol.CustomerPrefixes),
			Content: rec.Content,
			Seq:     i,
		}
		if rec.TimeValid {
			m.Timestamp = rec.Time
		}
		msgs[i] = m
	}
	return msgs
}

func missingRates(records []ingest.Record) map[string]float64 {
	if len(records) == 0 {
		return map[string]float64{}
	}
	var noSender, noContent, noTime, noKey int
	for _, rec := range records {
		if rec.Sender == "" {
			noSender++
		}
		if rec.Content == "" {
			noContent++
		}
		if rec.RawTime == "" {
			noTime++
		}
		if rec.SessionKey == "" {
			noKey++
		}
	}
	n := float64(len(records))
	return map[string]float64{
		"sender":      float64(noSender) / n,
		"content":     float64(noContent) / n,
		"timestamp":   float64(noTime) / n,
		"session_key": float64(noKey) / n,
	}
}

func duplicateRate(records []ingest.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(records))
	dups := 0
	for _, rec := range records {
		key := rec.Sender + "\x00" + rec.Content + "\x00" + rec.RawTime
		if seen[key] {
			dups++
		}
		seen[key] = true
	}
	return float64(dups) / float64(len(records))
}

// nearDuplicateRate is the fraction of sampled messages that have another
// message within Jaro-Winkler distance of nearDupThreshold. The scan is
// bounded to the first nearDupSampleLimit non-empty contents.
func (r *Reporter) nearDuplicateRate(records []ingest.Record) float64 {
	var sample []string
	for _, rec := range records {
		if strings.TrimSpace(rec.Content) == "" {
			continue
		}
		sample = append(sample, rec.Content)
		if len(sample) >= nearDupSampleLimit {
			break
		}
	}
	if len(sample) < 2 {
		return 0
	}

	near := make([]bool, len(sample))
	for i := 0; i < len(sample); i++ {
		for j := i + 1; j < len(sample); j++ {
			if sample[i] == sample[j] {
				continue // exact duplicates are counted separately
			}
			if matchr.JaroWinkler(sample[i], sample[j], false) >= nearDupThreshold {
				near[i] = true
				near[j] = true
			}
		}
	}

	count := 0
	for _, n := range near {
		if n {
			count++
		}
	}
	return float64(count) / float64(len(sample))
}

// emojiFrequency returns the ten most frequent emoji, ties broken by
// code point for determinism.
func emojiFrequency(records []ingest.Record) map[string]int {
	counts := map[string]int{}
	for _, rec := range records {
		for _, e := range emojiRE.FindAllString(rec.Content, -1) {
			counts[e]++
		}
	}
	if len(counts) <= 10 {
		return counts
	}

	type kv struct {
		emoji string
		n     int
	}
	all := make([]kv, 0, len(counts))
	for e, n := range counts {
		all = append(all, kv{e, n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].n != all[j].n {
			return all[i].n > all[j].n
		}
		return all[i].emoji < all[j].emoji
	})

	top := make(map[string]int, 10)
	for _, e := range all[:10] {
		top[e.emoji] = e.n
	}
	return top
}

func languageMix(records []ingest.Record) LanguageMix {
	var total, chinese, english int
	for _, rec := range records {
		total += utf8.RuneCountInString(rec.Content)
		chinese += len(chineseCharRE.FindAllString(rec.Content, -1))
		english += len(latinCharRE.FindAllString(rec.Content, -1))
	}
	if total == 0 {
		return LanguageMix{}
	}
	n := float64(total)
	return LanguageMix{
		ChineseRatio: float64(chinese) / n,
		EnglishRatio: float64(english) / n,
		MixedRatio:   float64(chinese+english) / n,
	}
}

func lengthStats(records []ingest.Record) LengthStats {
	var lengths []float64
	for _, rec := range records {
		if rec.Content != "" {
			lengths = append(lengths, float64(utf8.RuneCountInString(rec.Content)))
		}
	}
	if len(lengths) == 0 {
		return LengthStats{}
	}
	return LengthStats{
		Mean:   mean(lengths),
		Median: median(lengths),
		Max:    max64(lengths),
		Min:    min64(lengths),
		Std:    stddev(lengths),
	}
}

// responseTimes measures customer-to-agent turnaround over the time-sorted
// stream.
func responseTimes(sorted []segment.Message) DurationStats {
	var gaps []float64
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Role != segment.RoleCustomer || cur.Role != segment.RoleAgent {
			continue
		}
		if !prev.HasTime() || !cur.HasTime() {
			continue
		}
		gaps = append(gaps, cur.Timestamp.Sub(prev.Timestamp).Minutes())
	}
	if len(gaps) == 0 {
		return DurationStats{}
	}
	return DurationStats{
		Mean:   mean(gaps),
		Median: median(gaps),
		Max:    max64(gaps),
		Min:    min64(gaps),
		Std:    stddev(gaps),
	}
}

// sessionPatterns segments by inactivity gap only (explicit keys ignored)
// to describe the temporal shape of the batch.
func (r *Reporter) sessionPatterns(sorted []segment.Message) SessionStats {
	stripped := make([]segment.Message, len(sorted))
	copy(stripped, sorted)
	for i := range stripped {
		stripped[i].SessionKey = ""
	}

	sessions := segment.NewSegmenter(r.timeout).Segment(stripped)
	if len(sessions) == 0 {
		return SessionStats{}
	}

	lengths := make([]float64, len(sessions))
	maxLen, minLen := 0, int(^uint(0)>>1)
	for i, s := range sessions {
		n := len(s.Messages)
		lengths[i] = float64(n)
		if n > maxLen {
			maxLen = n
		}
		if n < minLen {
			minLen = n
		}
	}
	return SessionStats{
		TotalSessions: len(sessions),
		MeanLength:    mean(lengths),
		MaxLength:     maxLen,
		MinLength:     minLen,
		StdLength:     stddev(lengths),
	}
}

func completeness(missing map[string]float64) float64 {
	if len(missing) == 0 {
		return 0
	}
	sum := 0.0
	for _, rate := range missing {
		sum += rate
	}
	return 1 - sum/float64(len(missing))
}

// consistency blends time ordering (all-or-nothing over valid timestamps)
// with the fraction of sender labels matching a known format.
func (r *Reporter) consistency(records []ingest.Record) float64 {
	if len(records) == 0 {
		return 0
	}

	ordered := 1.0
	var prev time.Time
	havePrev := false
	for _, rec := range records {
		if !rec.TimeValid {
			continue
		}
		if havePrev && rec.Time.Before(prev) {
			ordered = 0
			break
		}
		prev = rec.Time
		havePrev = true
	}

	known := 0
	for _, rec := range records {
		if segment.ClassifyRole(rec.Sender, r.pol.CustomerPrefixes) != segment.RoleUnknown {
			known++
		}
	}
	formatValid := float64(known) / float64(len(records))

	return (ordered + formatValid) / 2
}

// validity blends content usability with timestamp plausibility
// (parseable, year 2020 .. current year).
func (r *Reporter) validity(records []ingest.Record) float64 {
	if len(records) == 0 {
		return 0
	}

	contentValid := 0
	for _, rec := range records {
		if utf8.RuneCountInString(strings.TrimSpace(rec.Content)) < 3 {
			continue
		}
		lower := strings.ToLower(rec.Content)
		banned := false
		for _, kw := range r.pol.TestKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				banned = true
				break
			}
		}
		if !banned {
			contentValid++
		}
	}

	curYear := r.now().Year()
	timeValid := 0
	for _, rec := range records {
		if rec.TimeValid && rec.Time.Year() >= 2020 && rec.Time.Year() <= curYear {
			timeValid++
		}
	}

	n := float64(len(records))
	return (float64(contentValid)/n + float64(timeValid)/n) / 2
}

func mean(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func median(v []float64) float64 {
	sorted := make([]float64, len(v))
	copy(sorted, v)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func stddev(v []float64) float64 {
	m := mean(v)
	sum := 0.0
	for _, x := range v {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(v)))
}

func max64(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func min64(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
