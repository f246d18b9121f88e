package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hurttlocker/chatmine/internal/export"
	"github.com/hurttlocker/chatmine/internal/store"
)

func writeTranscript(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "chat.csv")
	content := "消息时间,消息来源,聊天内容,会话ID\n" +
		"2024-03-01 09:00:00,mImjj8823,你好，我的ETC卡无法扣费,s1\n" +
		"2024-03-01 09:02:00,客服小王(1001),请提供卡号,s1\n" +
		"2024-03-01 09:03:00,mImjj8823,我的ETC卡无法扣费，怎么办？,s1\n" +
		"2024-03-01 09:05:00,客服小王(1001),已为您处理，ETC余额已扣款,s1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing transcript: %v", err)
	}
	return path
}

func TestRunProcessEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeTranscript(t, dir)
	outDir := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "chatmine.db")

	err := runProcess([]string{input, "--out", outDir, "--db", dbPath})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}

	for _, name := range []string{export.KnowledgeBaseFile, export.ReportFile, export.PairsFile} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	s, err := store.New(store.Config{DBPath: dbPath})
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Runs != 1 {
		t.Errorf("stored runs = %d, want 1", stats.Runs)
	}
	if stats.Pairs != 1 {
		t.Errorf("stored pairs = %d, want 1", stats.Pairs)
	}
}

func TestRunProcessNoStore(t *testing.T) {
	dir := t.TempDir()
	input := writeTranscript(t, dir)
	outDir := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "chatmine.db")

	err := runProcess([]string{input, "--out", outDir, "--db", dbPath, "--no-store"})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("--no-store should not create the database")
	}
}

func TestRunProcessArgErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"--bogus", "x.csv"},
		{"a.csv", "b.csv"},
		{"a.csv", "--timeout", "zero"},
		{"a.csv", "--timeout", "-5"},
		{"a.csv", "--threshold", "1.5"},
		{"a.csv", "--threshold", "0"},
	}
	for _, args := range cases {
		if err := runProcess(args); err == nil {
			t.Errorf("runProcess(%v) should fail", args)
		}
	}
}

func TestRunProcessMissingInput(t *testing.T) {
	dir := t.TempDir()
	err := runProcess([]string{filepath.Join(dir, "absent.csv"), "--no-store"})
	if err == nil {
		t.Fatal("missing input file should fail")
	}
}

func TestRunStatsUnknownFlag(t *testing.T) {
	if err := runStats([]string{"--bogus"}); err == nil {
		t.Fatal("unknown flag should fail")
	}
}

func TestLoadPolicyDefault(t *testing.T) {
	pol, err := loadPolicy("")
	if err != nil {
		t.Fatalf("loadPolicy: %v", err)
	}
	if len(pol.Categories) == 0 {
		t.Error("default policy should have categories")
	}
}

func TestRunProcessConfigFile(t *testing.T) {
	dir := t.TempDir()
	input := writeTranscript(t, dir)
	outDir := filepath.Join(dir, "configured-out")

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgContent := "out_dir: " + outDir + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	err := runProcess([]string{input, "--config", cfgPath, "--no-store"})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, export.PairsFile)); err != nil {
		t.Errorf("output should land in the configured directory: %v", err)
	}
}
