package pipeline

import (
	"testing"
	"time"

	"github.com/hurttlocker/chatmine/internal/ingest"
	"github.com/hurttlocker/chatmine/internal/policy"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func rec(minutes int, sender, content string) ingest.Record {
	ts := base.Add(time.Duration(minutes) * time.Minute)
	return ingest.Record{
		Sender:    sender,
		Content:   content,
		RawTime:   ts.Format("2006-01-02 15:04:05"),
		Time:      ts,
		TimeValid: true,
	}
}

func TestRunEmptyBatch(t *testing.T) {
	if _, err := Run(nil, policy.Default(), Options{}); err == nil {
		t.Fatal("empty batch must be fatal")
	}
}

func TestRunEndToEnd(t *testing.T) {
	records := []ingest.Record{
		rec(0, "mImjj8823", "你好，我的ETC卡无法扣费[图片]"),
		rec(1, "客服小王(1001)", "欢迎光临，请问有什么可以帮您"),
		rec(2, "客服小王(1001)", "请提供卡号"),
		rec(3, "mImjj8823", "我的ETC卡无法扣费，怎么办？"),
		rec(5, "客服小王(1001)", "已为您处理，ETC余额已扣款"),
		rec(50, "mImjj9001", "这是测试数据"),
		rec(100, "mImjj7777", "随便说说几句"),
	}

	res, err := Run(records, policy.Default(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The pure-boilerplate greeting and the test-keyword message drop.
	if res.Dropped != 2 {
		t.Errorf("dropped = %d, want 2", res.Dropped)
	}
	if res.Messages != 5 {
		t.Errorf("messages = %d, want 5", res.Messages)
	}
	// The 95-minute silence before the last message splits the stream.
	if res.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", res.Sessions)
	}
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(res.Pairs))
	}

	p := res.Pairs[0]
	if p.CustomerID != "mImjj8823" {
		t.Errorf("customer = %q", p.CustomerID)
	}
	if p.AgentID != "客服小王(1001)" {
		t.Errorf("agent = %q", p.AgentID)
	}
	if p.Answer != "已为您处理,ETC余额已扣款" {
		t.Errorf("answer = %q", p.Answer)
	}
	if p.Score < 0.3 {
		t.Errorf("score = %v, below threshold", p.Score)
	}
	if !p.Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want session start", p.Timestamp)
	}

	wantTags := map[string]bool{"ETC业务": true, "支付问题": true}
	if len(p.Tags) != len(wantTags) {
		t.Fatalf("tags = %v", p.Tags)
	}
	for _, tag := range p.Tags {
		if !wantTags[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}

	if res.Report == nil || res.Report.TotalRecords != len(records) {
		t.Error("report should cover the raw batch")
	}
}

func TestRunSessionWithoutAgentYieldsNoPair(t *testing.T) {
	records := []ingest.Record{
		rec(0, "mImjj1", "我的订单还没有发货"),
		rec(1, "mImjj1", "怎么还不回复我"),
	}
	res, err := Run(records, policy.Default(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", res.Sessions)
	}
	if len(res.Pairs) != 0 {
		t.Errorf("expected no pairs, got %v", res.Pairs)
	}
}

func TestRunReportsOnRawBatch(t *testing.T) {
	// Even a batch where everything is dropped still gets diagnostics.
	records := []ingest.Record{
		rec(0, "mImjj1", "？？"),
		rec(1, "mImjj1", "ok"),
	}
	res, err := Run(records, policy.Default(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Messages != 0 || res.Dropped != 2 {
		t.Errorf("messages/dropped = %d/%d, want 0/2", res.Messages, res.Dropped)
	}
	if res.Report.TotalRecords != 2 {
		t.Errorf("report total = %d, want 2", res.Report.TotalRecords)
	}
}

func TestRunProgress(t *testing.T) {
	records := []ingest.Record{
		rec(0, "mImjj1", "订单什么时候发货"),
		rec(1, "客服(1)", "您的订单已发货"),
	}

	stages := map[string]int{}
	opts := Options{
		ProgressFn: func(stage string, done, total int) {
			stages[stage]++
			if done > total {
				t.Errorf("progress %s: done %d > total %d", stage, done, total)
			}
		},
	}
	if _, err := Run(records, policy.Default(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stages["clean"] != len(records) {
		t.Errorf("clean progress calls = %d, want %d", stages["clean"], len(records))
	}
	if stages["select"] == 0 {
		t.Error("select stage reported no progress")
	}
}

func TestRunCustomThreshold(t *testing.T) {
	records := []ingest.Record{
		rec(0, "mImjj1", "订单什么时候发货"),
		rec(1, "客服(1)", "您的订单已发货"),
	}

	// An impossible threshold suppresses every pair.
	res, err := Run(records, policy.Default(), Options{MatchThreshold: 0.99})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Pairs) != 0 {
		t.Errorf("threshold 0.99 should reject all pairs, got %v", res.Pairs)
	}
}
