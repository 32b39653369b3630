// Command fieldsync manages the offline report queue of a field device:
// submitting reports, inspecting and pruning the queue, and syncing it with
// the server on demand or whenever the network comes back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/c0deZ3R0/fieldsync/config"
	"github.com/c0deZ3R0/fieldsync/logging"
)

const usage = `usage: fieldsync [-config file] [-env file] <command> [flags]

commands:
  submit   submit a report, queueing it offline if that fails
  queue    save a report to the offline queue without submitting
  list     list an owner's queued reports
  remove   delete a queued report
  sync     sync an owner's queue now
  dupes    check the queue for a report matching client, date and type
  watch    sync automatically whenever the network comes back
`

// errUsage makes run print usage and exit with status 2.
var errUsage = errors.New("usage")

type command func(ctx context.Context, a *app, args []string, stdout io.Writer) error

var commands = map[string]command{
	"submit": cmdSubmit,
	"queue":  cmdQueue,
	"list":   cmdList,
	"remove": cmdRemove,
	"sync":   cmdSync,
	"dupes":  cmdDupes,
	"watch":  cmdWatch,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fieldsync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", os.Getenv("FIELDSYNC_CONFIG"), "YAML or JSON config file")
	envFile := fs.String("env", ".env", "dotenv file loaded before the config")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "fieldsync: %v\n", err)
		return 1
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "fieldsync: unknown command %q\n", rest[0])
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "fieldsync: %v\n", err)
		return 1
	}

	if cfg.Logging.Output == nil {
		cfg.Logging.Output = stderr
	}
	logger, level := logging.NewLoggerWithDynamicLevel(cfg.Logging)
	logging.Init(cfg.Logging)

	a, err := newApp(cfg, logger, level)
	if err != nil {
		logger.LogError(ctx, err, "failed to start")
		return 1
	}
	defer a.Close()

	if err := cmd(ctx, a, rest[1:], stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return 2
		}
		if errors.Is(err, errSyncFailures) {
			return 3
		}
		logger.LogError(ctx, err, "command failed", slog.String("command", rest[0]))
		fmt.Fprintf(stderr, "fieldsync %s: %v\n", rest[0], err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
