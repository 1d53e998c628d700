// Package repl is an interactive checker for scene definitions. Blocks typed
// at the prompt are validated one at a time and kept in a session that can
// be checked as a whole scene with :scene.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/sambeau/scenery/pkg/scene/ast"
	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/format"
	"github.com/sambeau/scenery/pkg/scene/help"
	"github.com/sambeau/scenery/pkg/scene/scene"
	"github.com/sambeau/scenery/pkg/scene/tokens"
)

const PROMPT = "scene> "
const CONTINUATION_PROMPT = "   .. "

// completionWords holds construct and field names for tab completion
var completionWords = func() []string {
	seen := make(map[string]bool)
	for _, c := range ast.Schema {
		for _, name := range append([]string{c.Name}, c.Names()...) {
			seen[name] = true
		}
		for _, a := range c.Aliases {
			seen[a] = true
		}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}()

// Session holds the blocks accepted so far and the last input
type Session struct {
	blocks       []string
	last         string
	StrictCounts bool
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{}
}

// Start starts the REPL with line editing, history, and tab completion
func Start(in io.Reader, out io.Writer, version string) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(filterCompletions)

	historyFile := filepath.Join(os.TempDir(), ".scenery_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(out, "scenery", version)
	fmt.Fprintln(out, "Type a block to check it, ':help' for commands, 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "")

	session := NewSession()
	var inputBuffer strings.Builder

	for {
		prompt := PROMPT
		if inputBuffer.Len() > 0 {
			prompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				if inputBuffer.Len() > 0 {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				inputBuffer.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if inputBuffer.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
		if inputBuffer.Len() == 0 && strings.HasPrefix(trimmed, ":") {
			io.WriteString(out, session.Command(trimmed))
			continue
		}
		if inputBuffer.Len() == 0 && trimmed == "" {
			continue
		}

		if inputBuffer.Len() > 0 {
			inputBuffer.WriteString("\n")
		}
		inputBuffer.WriteString(input)

		fullInput := inputBuffer.String()
		if needsMoreInput(fullInput) {
			continue
		}
		line.AppendHistory(fullInput)
		io.WriteString(out, session.Eval(fullInput))
		inputBuffer.Reset()
	}
}

// Eval checks one complete input and returns the report to print. Blocks
// that build are added to the session.
func (s *Session) Eval(input string) string {
	s.last = input
	tree, errs := cst.ParseString(input)
	if len(errs) > 0 {
		return prettyErrors(errs)
	}

	var sb strings.Builder
	for _, entry := range tree.Entries(tree.Root) {
		name, _ := firstName(tree, entry)
		if _, ok := tree.Node(entry).Child(cst.SlotInlineEntry); ok {
			fmt.Fprintf(&sb, "%s: inline entries belong inside a block\n", name)
			continue
		}
		_, _, err := ast.BuildBlock(tree, entry, ast.BuildOptions{StrictCounts: s.StrictCounts})
		if err != nil {
			sb.WriteString(prettyErrors([]*errors.SceneError{err.WithRange(tokens.ErrorRange(tree, err))}))
			continue
		}
		s.blocks = append(s.blocks, source(input, tree, entry))
		fmt.Fprintf(&sb, "OK %s\n", name)
	}
	return sb.String()
}

// Command runs a ':' command and returns its output
func (s *Session) Command(cmd string) string {
	var sb strings.Builder
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h", ":?":
		sb.WriteString("REPL Commands:\n")
		sb.WriteString("  :help, :h, :?       Show this help\n")
		sb.WriteString("  :describe [topic]   Describe a construct (or list them)\n")
		sb.WriteString("  :tree               Show the syntax tree of the last input\n")
		sb.WriteString("  :tokens             Show the highlighting of the session scene\n")
		sb.WriteString("  :fmt                Format the last input\n")
		sb.WriteString("  :scene              Check the accepted blocks as a whole scene\n")
		sb.WriteString("  :load <file>        Check a scene file and replace the session with it\n")
		sb.WriteString("  :strict             Toggle strict list count checking\n")
		sb.WriteString("  :clear              Forget the accepted blocks\n")
		sb.WriteString("  exit, quit          Exit the REPL\n")

	case ":describe", ":d":
		result, err := help.DescribeTopic(arg)
		if err != nil {
			fmt.Fprintf(&sb, "%v\n", err)
			break
		}
		sb.WriteString(help.FormatText(result, 80))

	case ":tree":
		if s.last == "" {
			sb.WriteString("(no input yet)\n")
			break
		}
		tree, errs := cst.ParseString(s.last)
		if tree == nil {
			sb.WriteString(prettyErrors(errs))
			break
		}
		sb.WriteString(tree.Dump(tree.Root) + "\n")

	case ":fmt":
		out, err := format.Source(s.last)
		if err != nil {
			fmt.Fprintf(&sb, "%v\n", err)
			break
		}
		sb.WriteString(out)

	case ":scene", ":tokens":
		res := scene.Parse(s.Text(), scene.WithStrictCounts(s.StrictCounts))
		if !res.OK() {
			sb.WriteString(prettyErrors(res.Errors()))
			break
		}
		if name == ":scene" {
			fmt.Fprintf(&sb, "OK scene (%d nodes)\n", res.AST.Len())
			break
		}
		for _, e := range tokens.Decode(tokens.Project(res.AST), tokens.NewLegend()) {
			fmt.Fprintf(&sb, "%d:%d %d %s\n", e.Line, e.Column, e.Length, e.Type)
		}

	case ":load":
		data, err := os.ReadFile(arg)
		if err != nil {
			fmt.Fprintf(&sb, "%v\n", err)
			break
		}
		s.Reset()
		sb.WriteString(s.Eval(string(data)))

	case ":strict":
		s.StrictCounts = !s.StrictCounts
		fmt.Fprintf(&sb, "strict counts %v\n", s.StrictCounts)

	case ":clear":
		s.Reset()
		sb.WriteString("Session cleared\n")

	default:
		fmt.Fprintf(&sb, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return sb.String()
}

// Text returns the accepted blocks as one document
func (s *Session) Text() string {
	return strings.Join(s.blocks, "\n")
}

// Reset forgets the accepted blocks and the last input
func (s *Session) Reset() {
	s.blocks = nil
	s.last = ""
}

func firstName(tree *cst.Tree, entry cst.NodeID) (string, bool) {
	for _, child := range tree.ChildNodes(entry) {
		if tok, ok := tree.Identifier(child); ok {
			return tok.Literal, true
		}
	}
	return "", false
}

// source returns the text of an entry, newline terminated
func source(input string, tree *cst.Tree, entry cst.NodeID) string {
	n := tree.Node(entry)
	return input[n.Offset:n.EndOffset] + "\n"
}

// filterCompletions returns completion suggestions based on current input
func filterCompletions(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if last := line[len(line)-1]; last == ' ' || last == '\t' {
		return nil
	}
	words := strings.Fields(line)
	lastWord := words[len(words)-1]
	prefix := line[:len(line)-len(lastWord)]

	var matches []string
	for _, word := range completionWords {
		if strings.HasPrefix(word, lastWord) {
			matches = append(matches, prefix+word)
		}
	}
	return matches
}

// needsMoreInput reports whether the input has unclosed braces
func needsMoreInput(input string) bool {
	depth := 0
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth > 0
}

func prettyErrors(errs []*errors.SceneError) string {
	var sb strings.Builder
	for _, err := range errs {
		sb.WriteString(err.PrettyString())
		sb.WriteString("\n")
	}
	return sb.String()
}
