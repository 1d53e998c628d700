// Package scene runs the scene definition pipeline end to end.
//
// Parse takes text through tokenizing, CST parsing and AST building, stopping
// at the first stage that reports errors. A Registry remembers the last
// successful parse of each open document; Analyze is the call a host makes on
// every content change.
package scene

import (
	"time"

	"github.com/sambeau/scenery/pkg/scene/ast"
	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/lexer"
	"github.com/sambeau/scenery/pkg/scene/tokens"
)

// Stage names the pipeline stage a result stopped at.
type Stage string

const (
	StageLex      Stage = "lex"
	StageParse    Stage = "parse"
	StageSemantic Stage = "semantic"
	StageDone     Stage = "done"
)

// Options configure a parse
type Options struct {
	StrictCounts bool
	Logger       Logger
}

// Option mutates Options
type Option func(*Options)

// WithStrictCounts checks declared list counts against their members
func WithStrictCounts(strict bool) Option {
	return func(o *Options) { o.StrictCounts = strict }
}

// WithLogger traces each parse to l
func WithLogger(l Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Result holds everything one parse produced. Later stages are empty when an
// earlier stage failed.
type Result struct {
	Tokens        []lexer.Token
	CST           *cst.Tree
	AST           *ast.Tree
	LexErrors     []*errors.SceneError
	SyntaxErrors  []*errors.SceneError
	SemanticError *errors.SceneError
	Stage         Stage
	Duration      time.Duration
}

// OK reports whether the text built a scene.
func (r *Result) OK() bool {
	return r.Stage == StageDone
}

// Errors returns every error of the result in source order. The semantic
// error's range is widened to the CST node it references.
func (r *Result) Errors() []*errors.SceneError {
	var errs []*errors.SceneError
	errs = append(errs, r.LexErrors...)
	errs = append(errs, r.SyntaxErrors...)
	if r.SemanticError != nil {
		errs = append(errs, r.SemanticError.WithRange(tokens.ErrorRange(r.CST, r.SemanticError)))
	}
	errors.Sort(errs)
	return errs
}

// Parse runs the pipeline over text. It never panics on bad input; every
// problem is reported in the result.
func Parse(text string, opts ...Option) *Result {
	o := Options{Logger: NullLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	res := &Result{}
	defer func() {
		res.Duration = time.Since(start)
		o.Logger.LogLine("parse", res.Stage, len(res.Tokens), "tokens", len(res.Errors()), "errors", res.Duration)
	}()

	toks, eof, lexErrs := lexer.Scan(text)
	res.Tokens = toks
	if len(lexErrs) > 0 {
		res.LexErrors = lexErrs
		res.Stage = StageLex
		return res
	}

	tree, synErrs := cst.Parse(toks, eof)
	res.CST = tree
	if len(synErrs) > 0 {
		res.SyntaxErrors = synErrs
		res.Stage = StageParse
		return res
	}

	built, semErr := ast.Build(tree, ast.BuildOptions{StrictCounts: o.StrictCounts})
	if semErr != nil {
		res.SemanticError = semErr
		res.Stage = StageSemantic
		return res
	}
	res.AST = built
	res.Stage = StageDone
	return res
}
