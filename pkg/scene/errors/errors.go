// Package errors provides structured error types for the scene definition format.
//
// SceneError is the single error type produced by every stage of the pipeline:
// the tokenizer (ClassLex), the CST parser (ClassParse) and the AST builder
// (ClassSemantic). Messages come from a catalog of templates so that hosts can
// match on stable codes instead of message text.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors by the pipeline stage that produced them.
type ErrorClass string

const (
	ClassLex      ErrorClass = "lex"      // Unrecognized input
	ClassParse    ErrorClass = "parse"    // Grammar mismatches
	ClassSemantic ErrorClass = "semantic" // Schema violations
)

// NoNode marks an error that does not reference a CST node.
const NoNode = -1

// Range is a source span. Lines and columns are 1-based, columns count UTF-16
// code units and EndColumn is exclusive.
type Range struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// IsZero reports whether the range carries no position.
func (r Range) IsZero() bool {
	return r.StartLine == 0
}

// SceneError represents any error from tokenizing, parsing or validating a scene.
type SceneError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Range   Range          `json:"range"`
	File    string         `json:"file,omitempty"`
	Node    int            `json:"node"` // CST node id for semantic errors, NoNode otherwise
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *SceneError) Error() string {
	return e.String()
}

// String returns a single-line representation with location prefix.
func (e *SceneError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if !e.Range.IsZero() {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Range.StartLine, e.Range.StartColumn))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for terminal display.
func (e *SceneError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassLex:
		sb.WriteString("Lexical error")
	case ClassParse:
		sb.WriteString("Syntax error")
	default:
		sb.WriteString("Scene error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if !e.Range.IsZero() {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Range.StartLine, e.Range.StartColumn))
		}
		sb.WriteString("\n  ")
	} else if !e.Range.IsZero() {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Range.StartLine, e.Range.StartColumn))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *SceneError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *SceneError) WithFile(file string) *SceneError {
	copy := *e
	copy.File = file
	return &copy
}

// WithRange returns a copy of the error with the range set.
func (e *SceneError) WithRange(r Range) *SceneError {
	copy := *e
	copy.Range = r
	return &copy
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string
	Hints    []string
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Lexical errors
	"LEX-0001": {
		Class:    ClassLex,
		Template: "unrecognized character {{.Char}}",
	},

	// Syntax errors
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got {{.Got}}",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected {{.Got}}",
		Hints:    []string{"an entry starts with a name, e.g. `radius 1` or `Sphere { ... }`"},
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "expected {{.Expected}} before end of input",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "redundant {{.Got}} before {{.Expected}}",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "maximum nesting depth ({{.Max}}) exceeded",
	},

	// Semantic errors
	"SEM-0001": {
		Class:    ClassSemantic,
		Template: `Unexpected argument "{{.Name}}"`,
	},
	"SEM-0002": {
		Class:    ClassSemantic,
		Template: "Expects distinct arguments",
		Hints:    []string{`"{{.Name}}" is already set in {{.Construct}}`},
	},
	"SEM-0003": {
		Class:    ClassSemantic,
		Template: `Missing argument "{{.Name}}" for {{.Construct}}`,
	},
	"SEM-0004": {
		Class:    ClassSemantic,
		Template: "Expects {{.Count}} argument{{if ne .Count 1}}s{{end}} for {{.Construct}} ({{.Fields}})",
	},
	"SEM-0005": {
		Class:    ClassSemantic,
		Template: "Expects at least {{.Count}} argument{{if ne .Count 1}}s{{end}} for {{.Construct}} ({{.Fields}})",
	},
	"SEM-0006": {
		Class:    ClassSemantic,
		Template: "Expects {{.What}}",
	},
	"SEM-0007": {
		Class:    ClassSemantic,
		Template: "Expects length of the list ({{.Name}})",
	},
	"SEM-0008": {
		Class:    ClassSemantic,
		Template: "{{.Construct}} declares {{.Declared}} {{.Noun}} but contains {{.Actual}}",
		Hints:    []string{"set {{.Name}} to {{.Actual}}"},
	},
	"SEM-0009": {
		Class:    ClassSemantic,
		Template: "Transform expects exactly one object",
		Hints:    []string{"wrap several objects in a Group"},
	},
	"SEM-0010": {
		Class:    ClassSemantic,
		Template: "invalid number literal {{.Literal}}",
	},
	"SEM-0011": {
		Class:    ClassSemantic,
		Template: "Expects 5 segments for Scene (PerspectiveCamera, Lights, Materials, Background, Group)",
	},
	"SEM-0012": {
		Class:    ClassSemantic,
		Template: "Expects non-empty arguments for {{.Construct}}",
	},
	"SEM-0013": {
		Class:    ClassSemantic,
		Template: "internal error: {{.Detail}}",
	},
}

// New creates a SceneError from the catalog.
// If the code is not found, creates a generic semantic error with the code as message.
func New(code string, data map[string]any) *SceneError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &SceneError{
			Class:   ClassSemantic,
			Code:    code,
			Message: msg,
			Node:    NoNode,
			Data:    data,
		}
	}

	var hints []string
	for _, hintTmpl := range def.Hints {
		if rendered := renderTemplate(hintTmpl, data); rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &SceneError{
		Class:   def.Class,
		Code:    code,
		Message: renderTemplate(def.Template, data),
		Hints:   hints,
		Node:    NoNode,
		Data:    data,
	}
}

// NewAt creates a catalog error positioned at r.
func NewAt(code string, r Range, data map[string]any) *SceneError {
	err := New(code, data)
	err.Range = r
	return err
}

// NewAtNode creates a catalog error that references a CST node.
func NewAtNode(code string, node int, r Range, data map[string]any) *SceneError {
	err := NewAt(code, r, data)
	err.Node = node
	return err
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// Sort orders errors by position, keeping the original order for ties.
func Sort(errs []*SceneError) {
	sort.SliceStable(errs, func(i, j int) bool {
		a, b := errs[i].Range, errs[j].Range
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartColumn < b.StartColumn
	})
}

// ============================================================================
// Fuzzy Matching - "Did you mean?" suggestions
// ============================================================================

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// FindClosestMatch returns the candidate closest to input, or "" when nothing
// is close enough to be a plausible typo.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)
	bestMatch := ""
	bestDistance := -1

	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	// Short words (1-3): max 1 edit
	// Medium words (4-6): max 2 edits
	// Longer words (7+): max 3 edits
	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}

	return bestMatch
}

// NewUnexpectedArgument creates the unknown-name error with an optional
// "Did you mean" hint drawn from the names the construct accepts.
func NewUnexpectedArgument(name string, node int, r Range, accepted []string) *SceneError {
	err := NewAtNode("SEM-0001", node, r, map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, accepted); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}
