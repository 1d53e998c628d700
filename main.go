package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sambeau/scenery/config"
	"github.com/sambeau/scenery/server"
)

// Version is set at build time via -ldflags
var Version = "0.1.0-dev"

func main() {
	ctx := context.Background()
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv)
	if err != nil {
		if !errors.Is(err, server.ErrExitWithoutShutdown) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run is the main entry point, kept free of globals so tests can drive it
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("scenery", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		transport   = flags.String("transport", "", "Override transport (stdio or websocket)")
		port        = flags.Int("port", 0, "Override websocket port")
		watch       = flags.Bool("watch", false, "Analyze scene files as they change on disk")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "scenery version %s\n", Version)
		return nil
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if *transport != "" {
		cfg.Server.Transport = *transport
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *watch {
		cfg.Watch.Enabled = true
	}

	// Full validation after CLI overrides applied
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logOut, closeLog, err := logOutput(cfg.Logging.Output, stdout, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	for _, w := range config.Warnings(cfg) {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	srv, err := server.New(cfg, configFile, Version, logOut)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx, stdin, stdout)
}

// logOutput resolves logging.output to a writer
func logOutput(output string, stdout, stderr io.Writer) (io.Writer, func(), error) {
	switch output {
	case "", "stderr":
		return stderr, func() {}, nil
	case "stdout":
		return stdout, func() {}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `scenery - A language server for scene description files

Usage:
  scenery [options]

Options:
  --config PATH        Path to config file (default: auto-detect)
  --transport NAME     stdio (default) or websocket
  --port PORT          Override websocket port
  --watch              Analyze scene files as they change on disk
  --version            Show version
  --help               Show this help

Config Resolution:
  1. --config flag
  2. SCENERY_CONFIG environment variable
  3. ./scenery.yaml or ./scenery.toml
  4. ~/.config/scenery/scenery.yaml

Examples:
  scenery                                Serve LSP on stdin/stdout
  scenery --transport websocket          Serve LSP on ws://localhost:7777/lsp
  scenery --config scenery.yaml --watch  Use specific config and watch files

`)
}
