// Package main provides the memos application: a terminal notebook for
// short text and dictated memos stored locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/memos/pkg/cache"
	"github.com/entrhq/memos/pkg/config"
	"github.com/entrhq/memos/pkg/executor/cli"
	"github.com/entrhq/memos/pkg/executor/tui"
	"github.com/entrhq/memos/pkg/logging"
	"github.com/entrhq/memos/pkg/speech"
	"github.com/entrhq/memos/pkg/storage"
)

const version = "0.1.0"

// Flags holds the command line options.
type Flags struct {
	ConfigPath  string
	EnvFile     string
	Backend     string
	Path        string
	ShowVersion bool
	Args        []string
}

func main() {
	flags := parseFlags()

	if flags.ShowVersion {
		fmt.Printf("memos v%s\n", version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, flags); err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
}

// parseFlags parses command line flags.
func parseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.ConfigPath, "config", config.DefaultPath(), "Path to the configuration file (YAML)")
	flag.StringVar(&flags.EnvFile, "env-file", ".env", "Path to a .env file with MEMOS_* overrides")
	flag.StringVar(&flags.Backend, "backend", "", "Storage backend: sqlite, files or memory (overrides config)")
	flag.StringVar(&flags.Path, "path", "", "Database file or directory (overrides config)")
	flag.BoolVar(&flags.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "memos - local voice memos\n\n")
		fmt.Fprintf(os.Stderr, "Usage: memos [options] [command [args...]]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  tui                  Interactive browser (default)\n")
		fmt.Fprintf(os.Stderr, "  shell                Line-oriented prompt\n")
		fmt.Fprintf(os.Stderr, "  list [query]         List memos\n")
		fmt.Fprintf(os.Stderr, "  add <text>           Create a memo\n")
		fmt.Fprintf(os.Stderr, "  show <id>            Show a memo\n")
		fmt.Fprintf(os.Stderr, "  edit <id> <text>     Replace a memo's text\n")
		fmt.Fprintf(os.Stderr, "  delete <id>          Delete a memo\n")
		fmt.Fprintf(os.Stderr, "  dictate              Dictate a new memo\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %-24s Storage backend\n", config.EnvBackend)
		fmt.Fprintf(os.Stderr, "  %-24s Database file or directory\n", config.EnvPath)
		fmt.Fprintf(os.Stderr, "  %-24s Recognition locale\n", config.EnvLanguage)
		fmt.Fprintf(os.Stderr, "  %-24s Speech-to-text command\n", config.EnvSpeechCommand)
		fmt.Fprintf(os.Stderr, "  %-24s Show interim results (true/false)\n", config.EnvInterimResults)
		fmt.Fprintf(os.Stderr, "  %-24s Log directory\n", config.EnvLogDir)
	}

	flag.Parse()
	flags.Args = flag.Args()
	return flags
}

// loadConfig reads .env, the config file and flag overrides.
func loadConfig(flags *Flags) (*config.Config, error) {
	if err := config.LoadDotEnv(flags.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Read(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.Backend != "" {
		cfg.Storage.Backend = flags.Backend
	}
	if flags.Path != "" {
		cfg.Storage.Path = flags.Path
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// speechOptions maps the speech configuration to recognizer options.
func speechOptions(cfg config.SpeechConfig) speech.Options {
	return speech.Options{
		Language:        cfg.Language,
		Continuous:      cfg.Continuous,
		InterimResults:  cfg.InterimResults,
		MaxAlternatives: cfg.MaxAlternatives,
	}
}

// run executes the main application logic.
func run(ctx context.Context, flags *Flags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	logger, err := logging.NewLogger("memos")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	defer logger.Close()
	logger.Infof("memos v%s starting (backend=%s)", version, cfg.Storage.Backend)

	store, err := storage.Open(cfg.Storage, logger.With("storage"))
	if err != nil {
		return err
	}
	memos := cache.New(store, cache.WithLogger(logger.With("cache")))
	defer memos.Close()

	dictation, err := speech.NewDictation(
		speech.NewCommandProvider(cfg.Speech.Command, logger.With("speech")),
		speechOptions(cfg.Speech),
		logger.With("dictation"),
	)
	if err != nil {
		return err
	}
	defer dictation.Close()

	command := "tui"
	if len(flags.Args) > 0 {
		command = flags.Args[0]
	}

	switch command {
	case "tui":
		return tui.NewExecutor(memos, tui.WithDictation(dictation), tui.WithLogger(logger.With("tui"))).Run(ctx)
	case "shell":
		if err := memos.Activate(ctx); err != nil {
			return err
		}
		return cli.NewExecutor(memos, cli.WithDictation(dictation)).Run(ctx)
	default:
		if err := memos.Activate(ctx); err != nil {
			return err
		}
		return cli.NewExecutor(memos, cli.WithDictation(dictation)).Exec(ctx, flags.Args)
	}
}
