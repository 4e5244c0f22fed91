package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/admin"
	"github.com/xiy/memtier/internal/analytics"
	"github.com/xiy/memtier/internal/cold"
	"github.com/xiy/memtier/internal/config"
	"github.com/xiy/memtier/internal/embeddings"
	"github.com/xiy/memtier/internal/engine"
	"github.com/xiy/memtier/internal/hot"
	"github.com/xiy/memtier/internal/optimizer"
	"github.com/xiy/memtier/internal/storage"
	"github.com/xiy/memtier/internal/sweep"
	"github.com/xiy/memtier/internal/warm"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "add":
		if err := runAdd(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "search":
		if err := runSearch(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "sweep":
		if err := runSweep(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "optimize":
		if err := runOptimize(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "admin":
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Println("memtier v0.1.0")
	default:
		usage()
		os.Exit(2)
	}
}

func buildEngine(ctx context.Context, cfg config.Config, logger *log.Logger) (*engine.Engine, *analytics.Recorder, func(), error) {
	provider, err := embeddings.New(cfg.Embedding, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	warmArchive, err := storage.Open(cfg.Memory.Storage, cfg.Memory.WarmPath, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	coldPath := filepath.Join(cfg.Memory.ColdDir, "archive.json")
	if cfg.Memory.Storage == "sqlite" {
		coldPath = filepath.Join(cfg.Memory.ColdDir, "archive.db")
	}
	coldArchive, err := storage.Open(cfg.Memory.Storage, coldPath, logger)
	if err != nil {
		warmArchive.Close()
		return nil, nil, nil, err
	}

	recorder := analytics.NewRecorder(logger, cfg.LogLevel == "debug")

	warmTier, err := warm.New(ctx, provider, warmArchive, recorder, logger)
	if err != nil {
		warmArchive.Close()
		coldArchive.Close()
		return nil, nil, nil, err
	}
	coldTier := cold.New(coldArchive, recorder, logger)
	hotTier := hot.New(cfg.Memory.MaxTokenLimit, nil, logger)

	cleanup := func() {
		warmArchive.Close()
		coldArchive.Close()
	}
	return engine.New(&cfg, provider, hotTier, warmTier, coldTier, recorder, logger), recorder, cleanup, nil
}

func loadConfig(path string) (config.Config, *log.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return config.Config{}, nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "memtier"})
	setLogLevel(logger, cfg.LogLevel)
	return cfg, logger, nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	configPath := fs.String("config", "config/memtier.yaml", "Path to config file")
	source := fs.String("source", "cli", "Source label stored with the memory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("add requires the memory content as an argument")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, _, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cube, err := eng.AddMemory(ctx, fs.Arg(0), warm.AddOptions{Source: *source, Tags: fs.Args()[1:]})
	if err != nil {
		return err
	}
	fmt.Println(cube.ID)
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	configPath := fs.String("config", "config/memtier.yaml", "Path to config file")
	topK := fs.Int("k", 0, "Number of results per tier (0 uses the configured default)")
	coldToo := fs.Bool("cold", false, "Also search cold storage")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("search requires a query argument")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, _, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := engine.DefaultRetrieveOptions(&cfg)
	opts.IncludeHot = false
	opts.IncludeCold = *coldToo
	if *topK > 0 {
		opts.TopK = *topK
	}

	bundle, err := eng.RetrieveContext(ctx, fs.Arg(0), opts)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	configPath := fs.String("config", "config/memtier.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, _, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	stats := eng.Stats(ctx)
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath := fs.String("config", "config/memtier.yaml", "Path to config file")
	watch := fs.Bool("watch", false, "Keep running and sweep on the configured interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, _, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	moved, err := eng.ArchiveColdMemories(ctx)
	if err != nil {
		return err
	}
	logger.Info("sweep complete", "archived", moved)

	if *watch {
		sweep.Start(ctx, logger, time.Duration(cfg.Memory.SweepIntervalSeconds)*time.Second, eng)
	}
	return nil
}

func runOptimize(args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	configPath := fs.String("config", "config/memtier.yaml", "Path to config file")
	strategyName := fs.String("strategy", "", "Strategy override: none, light, aggressive, adaptive")
	target := fs.Int("target", 0, "Target token count (0 uses the configured target)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	optCfg, err := optimizer.FromSettings(cfg.Optimizer)
	if err != nil {
		return err
	}

	var messages []optimizer.Message
	if err := json.NewDecoder(os.Stdin).Decode(&messages); err != nil {
		return fmt.Errorf("read messages from stdin: %w", err)
	}

	opt := optimizer.New(optCfg, logger)
	strategy := optCfg.Strategy
	if *strategyName != "" {
		strategy, err = optimizer.ParseStrategy(*strategyName)
		if err != nil {
			return err
		}
	}

	optimized, result := opt.Optimize(messages, *target, strategy)
	out, err := json.MarshalIndent(optimized, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	logger.Info("optimization report",
		"original", result.OriginalTokens,
		"optimized", result.OptimizedTokens,
		"saved", result.TokensSaved,
		"pruned", result.MessagesPruned,
		"strategy", result.StrategyUsed.String())
	return nil
}

func runAdmin(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	configPath := fs.String("config", "config/memtier.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, recorder, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	go sweep.Start(ctx, logger, time.Duration(cfg.Memory.SweepIntervalSeconds)*time.Second, eng)

	return admin.Run(ctx, eng, recorder)
}

func setLogLevel(logger *log.Logger, level string) {
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

func usage() {
	fmt.Print(`memtier

Usage:
  memtier add [--config path] [--source label] <content> [tags...]
  memtier search [--config path] [-k n] [--cold] <query>
  memtier stats [--config path]
  memtier sweep [--config path] [--watch]
  memtier optimize [--config path] [--strategy name] [--target n] < messages.json
  memtier admin [--config path]
  memtier version
`)
}
