package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/chatmine/internal/config"
	"github.com/hurttlocker/chatmine/internal/export"
	"github.com/hurttlocker/chatmine/internal/ingest"
	chatmcp "github.com/hurttlocker/chatmine/internal/mcp"
	"github.com/hurttlocker/chatmine/internal/pipeline"
	"github.com/hurttlocker/chatmine/internal/policy"
	"github.com/hurttlocker/chatmine/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "process":
		if err := runProcess(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve-mcp":
		if err := runServeMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("chatmine %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runProcess(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: chatmine process <transcript.csv> [--out dir] [--db path] [--config file] [--policy file] [--timeout minutes] [--threshold score] [--no-store]")
	}

	input := ""
	opts := config.ResolveOptions{}
	noStore := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--out":
			i++
			opts.CLIOutDir = argValue(args, i, "--out")
		case arg == "--db":
			i++
			opts.CLIDBPath = argValue(args, i, "--db")
		case arg == "--config":
			i++
			opts.ConfigPath = argValue(args, i, "--config")
		case arg == "--policy":
			i++
			opts.CLIPolicyPath = argValue(args, i, "--policy")
		case arg == "--timeout":
			i++
			minutes, err := strconv.Atoi(argValue(args, i, "--timeout"))
			if err != nil || minutes <= 0 {
				return fmt.Errorf("--timeout wants a positive minute count")
			}
			opts.CLITimeout = time.Duration(minutes) * time.Minute
		case arg == "--threshold":
			i++
			v, err := strconv.ParseFloat(argValue(args, i, "--threshold"), 64)
			if err != nil || v <= 0 || v > 1 {
				return fmt.Errorf("--threshold wants a score in (0,1]")
			}
			opts.CLIThreshold = v
		case arg == "--no-store":
			noStore = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			if input != "" {
				return fmt.Errorf("multiple input files given")
			}
			input = arg
		}
	}
	if input == "" {
		return fmt.Errorf("no input file specified")
	}

	cfg, err := config.Resolve(opts)
	if err != nil {
		return err
	}

	pol, err := loadPolicy(cfg.PolicyPath.Value)
	if err != nil {
		return err
	}

	fmt.Printf("Reading %s...\n", input)
	records, err := ingest.ReadFile(input, cfg.Columns)
	if err != nil {
		return err
	}
	fmt.Printf("  %d rows\n", len(records))

	started := time.Now()
	result, err := pipeline.Run(records, pol, pipeline.Options{
		Timeout:        cfg.Timeout,
		MatchThreshold: cfg.MatchThreshold,
		ProgressFn:     progressPrinter(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nCleaned: %d messages kept, %d dropped\n", result.Messages, result.Dropped)
	fmt.Printf("Sessions: %d\n", result.Sessions)
	fmt.Printf("QA pairs: %d\n", len(result.Pairs))

	if err := export.WriteAll(cfg.OutDir.Value, result.Pairs, result.Report, ""); err != nil {
		return err
	}
	fmt.Printf("Results written to %s\n", cfg.OutDir.Value)

	if noStore {
		return nil
	}

	s, err := store.New(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	run := &store.Run{
		InputPath:  input,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Messages:   result.Messages,
		Sessions:   result.Sessions,
		Pairs:      len(result.Pairs),
		Dropped:    result.Dropped,
	}
	runID, err := s.SaveRun(context.Background(), run, result.Pairs)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	fmt.Printf("Stored run %s\n", runID)
	return nil
}

func runStats(args []string) error {
	opts := config.ResolveOptions{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--db":
			i++
			opts.CLIDBPath = argValue(args, i, "--db")
		case "--config":
			i++
			opts.ConfigPath = argValue(args, i, "--config")
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	cfg, err := config.Resolve(opts)
	if err != nil {
		return err
	}

	s, err := store.New(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Runs:  %d\n", stats.Runs)
	fmt.Printf("Pairs: %d\n", stats.Pairs)
	fmt.Printf("Size:  %d bytes\n", stats.DBSizeBytes)
	return nil
}

func runServeMCP(args []string) error {
	opts := config.ResolveOptions{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--db":
			i++
			opts.CLIDBPath = argValue(args, i, "--db")
		case "--config":
			i++
			opts.ConfigPath = argValue(args, i, "--config")
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	cfg, err := config.Resolve(opts)
	if err != nil {
		return err
	}

	s, err := store.New(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	srv := chatmcp.NewServer(chatmcp.ServerConfig{Store: s, Version: version})
	return chatmcp.ServeStdio(srv)
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		return policy.Default(), nil
	}
	return policy.Load(path)
}

// progressPrinter reports every 100 records per stage, matching the batch
// sizes this tool usually sees.
func progressPrinter() func(stage string, done, total int) {
	return func(stage string, done, total int) {
		if done%100 == 0 || done == total {
			fmt.Printf("  [%s] %d/%d\n", stage, done, total)
		}
	}
}

func argValue(args []string, i int, flag string) string {
	if i >= len(args) {
		fmt.Fprintf(os.Stderr, "Error: %s wants a value\n", flag)
		os.Exit(1)
	}
	return args[i]
}

func printUsage() {
	fmt.Println(`chatmine - extract QA pairs from customer-service chat transcripts

Usage:
  chatmine process <transcript.csv> [flags]   Run the extraction pipeline
  chatmine stats [--db path]                  Show knowledge-base statistics
  chatmine serve-mcp [--db path]              Serve the knowledge base over MCP (stdio)
  chatmine version                            Print version

Process flags:
  --out dir          Output directory (default: output)
  --db path          SQLite database path (default: ~/.chatmine/chatmine.db)
  --config file      Config file (default: ~/.chatmine/config.yaml)
  --policy file      YAML content-policy overrides
  --timeout minutes  Session inactivity timeout (default: 30)
  --threshold score  QA match acceptance threshold (default: 0.3)
  --no-store         Skip writing to the SQLite store

Environment:
  CHATMINE_CONFIG    Config file path
  CHATMINE_DB        Database path
  CHATMINE_POLICY    Policy file path
  CHATMINE_OUT       Output directory`)
}
