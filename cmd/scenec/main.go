package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf16"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sambeau/scenery/config"
	"github.com/sambeau/scenery/pkg/render"
	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/format"
	"github.com/sambeau/scenery/pkg/scene/help"
	"github.com/sambeau/scenery/pkg/scene/repl"
	"github.com/sambeau/scenery/pkg/scene/scene"
	"github.com/sambeau/scenery/pkg/scene/tokens"
	"github.com/sambeau/scenery/server"
)

// Version is set at compile time via -ldflags
var Version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv)
	cancel()
	os.Exit(code)
}

// run dispatches a command line and returns the exit code: 0 on success, 1
// when a scene has errors, 2 on usage or file errors.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	if len(args) == 0 {
		repl.Start(stdin, stdout, Version)
		return 0
	}

	switch args[0] {
	case "-h", "--help", "help":
		printHelp(stdout)
		return 0
	case "-V", "--version":
		fmt.Fprintf(stdout, "scenec version %s\n", Version)
		return 0
	case "fmt":
		return fmtCommand(args[1:], stdout, stderr)
	case "tokens":
		return tokensCommand(args[1:], stdout, stderr, getenv)
	case "describe":
		return describeCommand(args[1:], stdout, stderr)
	case "watch":
		return watchCommand(ctx, args[1:], stdout, stderr, getenv)
	case "render":
		return renderCommand(ctx, args[1:], stdout, stderr, getenv)
	case "log":
		return logCommand(args[1:], stdout, stderr, getenv)
	case "check", "--check":
		return checkCommand(args[1:], stdout, stderr, getenv)
	}
	return checkCommand(args, stdout, stderr, getenv)
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `scenec - scene definition checker version %s

Usage:
  scenec                                Start interactive checker
  scenec [check] [options] <file>...    Check scene files
  scenec fmt [-w|-l|-d] <file>...       Format scene files
  scenec tokens <file>                  Print semantic tokens as JSON
  scenec describe [--html|--json] [topic]
                                        Show help for a construct
  scenec watch [options] [dir...]       Check scene files as they change
  scenec render [--force] <scene> [engine flags]
                                        Check a scene, then run the renderer
  scenec log [--uri U] [--since DATE] [--limit N] [--lang TAG]
                                        Show recent analyses from the dev log

Check Options:
  --config PATH    Path to config file (default: auto-detect)
  --strict         Check numLights, numMaterials and numObjects
  --lang TAG       Language for the summary line (default: en)

Examples:
  scenec scene01.txt scene02.txt
  scenec fmt -w scene01.txt
  scenec describe Sphere
  scenec render scene01.txt -size 200 200 -shadows
`, Version)
}

// loadConfig loads the config named by path, or the auto-detected one
func loadConfig(path string, getenv func(string) string, stderr io.Writer) (*config.Config, bool) {
	cfg, _, err := config.LoadWithPath(path, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	for _, w := range config.Warnings(cfg) {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}
	return cfg, true
}

// sceneFlags are the options shared by commands that parse scenes
type sceneFlags struct {
	configPath string
	strict     bool
	lang       string
}

func (f *sceneFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.BoolVar(&f.strict, "strict", false, "Check declared counts")
	fs.StringVar(&f.lang, "lang", "en", "Language for the summary line")
}

func (f *sceneFlags) options(cfg *config.Config) []scene.Option {
	return []scene.Option{scene.WithStrictCounts(f.strict || cfg.Analysis.StrictCounts)}
}

// checkCommand parses each file and reports every error with source context
func checkCommand(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf sceneFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(stderr, "Error: no files specified")
		return 2
	}
	tag, err := language.Parse(sf.lang)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --lang %q: %v\n", sf.lang, err)
		return 2
	}
	cfg, ok := loadConfig(sf.configPath, getenv, stderr)
	if !ok {
		return 2
	}

	failed, errCount := 0, 0
	for _, filename := range files {
		content, err := os.ReadFile(filename)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading %s: %v\n", filename, err)
			return 2
		}
		res := scene.Parse(string(content), sf.options(cfg)...)
		if errs := res.Errors(); len(errs) > 0 {
			printSceneErrors(stderr, filename, string(content), errs)
			failed++
			errCount += len(errs)
		}
	}

	p := message.NewPrinter(tag)
	p.Fprintf(stdout, "%d %s checked, %d %s\n",
		len(files), plural(len(files), "file", "files"),
		errCount, plural(errCount, "error", "errors"))
	if failed > 0 {
		return 1
	}
	return 0
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// printSceneErrors prints errors with the offending source line
func printSceneErrors(w io.Writer, filename, source string, errs []*errors.SceneError) {
	lines := strings.Split(source, "\n")
	for _, err := range errs {
		fmt.Fprintln(w, err.WithFile(filename).PrettyString())
		printSourceContext(w, lines, err.Range.StartLine, err.Range.StartColumn)
	}
}

// printSourceContext prints the source line and a pointer under the column.
// Columns count UTF-16 code units; tabs display as 8 spaces.
func printSourceContext(w io.Writer, lines []string, lineNum, colNum int) {
	if lineNum <= 0 || lineNum > len(lines) {
		return
	}
	sourceLine := strings.TrimRight(lines[lineNum-1], "\r")
	trimmed := strings.TrimLeft(sourceLine, " \t")
	fmt.Fprintf(w, "    %s\n", trimmed)
	if colNum <= 0 {
		return
	}

	indent := visualWidth(sourceLine[:len(sourceLine)-len(trimmed)])
	units, visual := 0, 0
	for _, r := range sourceLine {
		if units >= colNum-1 {
			break
		}
		units += len(utf16.Encode([]rune{r}))
		if r == '\t' {
			visual += 8
		} else {
			visual++
		}
	}
	fmt.Fprintf(w, "    %s^\n", strings.Repeat(" ", max(visual-indent, 0)))
}

func visualWidth(s string) int {
	n := 0
	for _, r := range s {
		if r == '\t' {
			n += 8
		} else {
			n++
		}
	}
	return n
}

// tokensCommand prints the semantic tokens of a scene as JSON
func tokensCommand(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("tokens", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf sceneFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: scenec tokens <file>")
		return 2
	}
	filename := fs.Arg(0)

	cfg, ok := loadConfig(sf.configPath, getenv, stderr)
	if !ok {
		return 2
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading %s: %v\n", filename, err)
		return 2
	}
	res := scene.Parse(string(content), sf.options(cfg)...)
	if !res.OK() {
		printSceneErrors(stderr, filename, string(content), res.Errors())
		return 1
	}

	entries := tokens.Decode(tokens.Project(res.AST), tokens.NewLegend())
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error formatting JSON: %v\n", err)
		return 2
	}
	fmt.Fprintln(stdout, string(data))
	return 0
}

// describeCommand implements 'scenec describe [--html|--json] [topic]'
func describeCommand(args []string, stdout, stderr io.Writer) int {
	jsonOutput, htmlOutput := false, false
	var topic string
	for _, arg := range args {
		switch {
		case arg == "--json":
			jsonOutput = true
		case arg == "--html":
			htmlOutput = true
		case !strings.HasPrefix(arg, "-"):
			topic = arg
		default:
			fmt.Fprintf(stderr, "Error: unknown option %s\nUsage: scenec describe [--html|--json] [topic]\n", arg)
			return 2
		}
	}

	result, err := help.DescribeTopic(topic)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	switch {
	case jsonOutput:
		data, err := help.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(stderr, "Error formatting JSON: %v\n", err)
			return 2
		}
		fmt.Fprintln(stdout, string(data))
	case htmlOutput:
		html, err := help.RenderHTML(result)
		if err != nil {
			fmt.Fprintf(stderr, "Error rendering HTML: %v\n", err)
			return 2
		}
		fmt.Fprint(stdout, html)
	default:
		fmt.Fprint(stdout, help.FormatText(result, 80))
	}
	return 0
}

// fmtCommand handles 'scenec fmt'
func fmtCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fmt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	writeFlag := fs.Bool("w", false, "Write result to source file instead of stdout")
	diffFlag := fs.Bool("d", false, "Display diffs instead of rewriting files")
	listFlag := fs.Bool("l", false, "List files whose formatting differs from scenec fmt's")
	fs.Usage = func() {
		fmt.Fprint(stderr, `scenec fmt - format scene files

Usage:
  scenec fmt [options] <file>...

Options:
  -w    Write result to source file instead of stdout
  -d    Display diffs instead of rewriting files
  -l    List files whose formatting differs from scenec fmt's
`)
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(stderr, "Error: no files specified")
		fs.Usage()
		return 2
	}

	exitCode := 0
	for _, filename := range files {
		if err := formatFile(filename, *writeFlag, *diffFlag, *listFlag, stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "Error formatting %s: %v\n", filename, err)
			exitCode = 1
		}
	}
	return exitCode
}

// formatFile formats a single scene file
func formatFile(filename string, write, diff, list bool, stdout, stderr io.Writer) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	source := string(content)

	changed, formatted, err := format.Changed(source)
	if err != nil {
		if fe, ok := err.(*format.Error); ok {
			printSceneErrors(stderr, filename, source, fe.Errors)
		}
		return fmt.Errorf("parse errors")
	}

	switch {
	case list:
		if changed {
			fmt.Fprintln(stdout, filename)
		}
	case diff:
		if changed {
			showDiff(stdout, filename, source, formatted)
		}
	case write:
		if changed {
			if err := os.WriteFile(filename, []byte(formatted), 0644); err != nil {
				return fmt.Errorf("writing file: %w", err)
			}
		}
	default:
		fmt.Fprint(stdout, formatted)
	}
	return nil
}

// showDiff prints the lines that differ, numbered
func showDiff(w io.Writer, filename, original, formatted string) {
	fmt.Fprintf(w, "diff %s\n", filename)
	origLines := strings.Split(original, "\n")
	fmtLines := strings.Split(formatted, "\n")
	for i := range max(len(origLines), len(fmtLines)) {
		var o, f string
		if i < len(origLines) {
			o = origLines[i]
		}
		if i < len(fmtLines) {
			f = fmtLines[i]
		}
		if o == f {
			continue
		}
		if o != "" {
			fmt.Fprintf(w, "-%d: %s\n", i+1, o)
		}
		if f != "" {
			fmt.Fprintf(w, "+%d: %s\n", i+1, f)
		}
	}
}

// watchCommand checks scene files whenever they change until interrupted
func watchCommand(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf sceneFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, ok := loadConfig(sf.configPath, getenv, stderr)
	if !ok {
		return 2
	}
	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = cfg.Watch.Dirs
	}
	debounce := cfg.Watch.Debounce
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}

	// Callbacks arrive on timer goroutines.
	var mu sync.Mutex
	check := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading %s: %v\n", path, err)
			return
		}
		res := scene.Parse(string(content), sf.options(cfg)...)
		if errs := res.Errors(); len(errs) > 0 {
			printSceneErrors(stderr, path, string(content), errs)
			return
		}
		fmt.Fprintf(stdout, "ok %s (%s)\n", path, res.Duration.Round(time.Microsecond))
	}

	w, err := server.NewWatcher(dirs, cfg.Analysis.FilePattern, debounce, check, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer w.Close()
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	<-ctx.Done()
	return 0
}

// renderCommand checks a scene and hands it to the render engine. Engine
// flags after the scene file override the configured arguments.
func renderCommand(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "Render even if the scene does not check")
	var sf sceneFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Usage: scenec render [--force] <scene> [engine flags]")
		return 2
	}

	cfg, ok := loadConfig(sf.configPath, getenv, stderr)
	if !ok {
		return 2
	}
	base := cfg.Render.Arguments
	base.Input = fs.Arg(0)
	a, err := render.ParseFlags(base, fs.Args()[1:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if !*force {
		if err := render.Check(a, sf.options(cfg)...); err != nil {
			if ce, ok := err.(*render.CheckError); ok {
				content, _ := os.ReadFile(a.Input)
				printSceneErrors(stderr, a.Input, string(content), ce.Result.Errors())
				return 1
			}
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	if err := render.Run(ctx, cfg.Render.Engine, a, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
