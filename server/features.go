package server

import (
	"encoding/json"
	"strings"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/sambeau/scenery/pkg/scene/cst"
	serrors "github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/format"
	"github.com/sambeau/scenery/pkg/scene/scene"
)

const diagnosticSource = "scenery"

func (ss *session) onInitialize(req *Request) {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			ss.invalidParams(req, err)
			return
		}
	}
	ss.mu.Lock()
	ss.initialized = true
	ss.mu.Unlock()
	if params.RootURI != "" {
		ss.srv.logInfo("session %s: workspace %s", ss.id, params.RootURI)
	}

	legend := ss.srv.legend
	ss.respond(req.ID, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    1,
				Save:      SaveOptions{IncludeText: true},
			},
			SemanticTokensProvider: SemanticTokensOptions{
				Legend: SemanticTokensLegend{
					TokenTypes:     legend.TokenTypes,
					TokenModifiers: legend.TokenModifiers,
				},
				Full: true,
			},
			DocumentSymbolProvider:     true,
			DocumentFormattingProvider: true,
		},
		ServerInfo: ServerInfo{Name: "scenery", Version: ss.srv.version},
	}, nil)
}

func (ss *session) onDidOpen(req *Request) {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		ss.invalidParams(req, err)
		return
	}
	uri := params.TextDocument.URI
	if ss.setText(uri, params.TextDocument.Text) {
		ss.srv.acquire(uri)
	}
	ss.analyze(uri, params.TextDocument.Text)
}

func (ss *session) onDidChange(req *Request) {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		ss.invalidParams(req, err)
		return
	}
	if len(params.ContentChanges) == 0 {
		return
	}
	uri := params.TextDocument.URI
	// Full sync: the last change holds the whole document.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	if ss.setText(uri, text) {
		ss.srv.acquire(uri)
	}
	ss.analyze(uri, text)
}

func (ss *session) onDidSave(req *Request) {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		ss.invalidParams(req, err)
		return
	}
	uri := params.TextDocument.URI
	text, ok := ss.text(uri)
	if params.Text != nil {
		text, ok = *params.Text, true
		ss.setText(uri, text)
	}
	if ok {
		ss.analyze(uri, text)
	}
}

func (ss *session) onDidClose(req *Request) {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		ss.invalidParams(req, err)
		return
	}
	uri := params.TextDocument.URI
	if ss.forget(uri) {
		ss.srv.release(uri)
	}
	ss.notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{URI: uri, Diagnostics: []Diagnostic{}})
}

// analyze re-checks uri and publishes its diagnostics
func (ss *session) analyze(uri, text string) {
	a := ss.srv.analyze(uri, text)
	for _, p := range diagnosticsParams(a) {
		ss.notify("textDocument/publishDiagnostics", p)
	}
}

func (ss *session) onSemanticTokensFull(req *Request) {
	var params SemanticTokensParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		ss.invalidParams(req, err)
		return
	}
	data, ok := ss.srv.registry.SemanticTokens(params.TextDocument.URI)
	if !ok {
		ss.respond(req.ID, nil, nil)
		return
	}
	ss.respond(req.ID, SemanticTokens{ResultID: uuid.NewString(), Data: data}, nil)
}

func (ss *session) onDocumentSymbol(req *Request) {
	var params DocumentSymbolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		ss.invalidParams(req, err)
		return
	}
	text, ok := ss.text(params.TextDocument.URI)
	if !ok {
		ss.respond(req.ID, []DocumentSymbol{}, nil)
		return
	}
	ss.respond(req.ID, ss.srv.symbols(params.TextDocument.URI, text), nil)
}

func (ss *session) onFormatting(req *Request) {
	var params DocumentFormattingParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		ss.invalidParams(req, err)
		return
	}
	text, ok := ss.text(params.TextDocument.URI)
	if !ok {
		ss.respond(req.ID, nil, nil)
		return
	}
	out, err := format.Source(text)
	if err != nil || out == text {
		// Text that does not parse is left alone.
		ss.respond(req.ID, []TextEdit{}, nil)
		return
	}
	ss.respond(req.ID, []TextEdit{{
		Range:   Range{End: endPosition(text)},
		NewText: out,
	}}, nil)
}

// diagnosticsParams returns the notifications publishing a's diagnostics:
// a clearing one, then the new set when there is one.
func diagnosticsParams(a *scene.Analysis) []PublishDiagnosticsParams {
	out := []PublishDiagnosticsParams{{URI: a.URI, Diagnostics: []Diagnostic{}}}
	if len(a.Diagnostics) == 0 {
		return out
	}
	diags := make([]Diagnostic, len(a.Diagnostics))
	for i, err := range a.Diagnostics {
		diags[i] = toDiagnostic(err)
	}
	return append(out, PublishDiagnosticsParams{URI: a.URI, Diagnostics: diags})
}

func toDiagnostic(err *serrors.SceneError) Diagnostic {
	msg := err.Message
	if len(err.Hints) > 0 {
		msg += "\n" + strings.Join(err.Hints, "\n")
	}
	return Diagnostic{
		Range:    toRange(err.Range),
		Severity: DiagnosticSeverityError,
		Code:     err.Code,
		Source:   diagnosticSource,
		Message:  msg,
	}
}

// toRange converts a 1-based source range to a 0-based LSP range. Both count
// columns in UTF-16 code units.
func toRange(r serrors.Range) Range {
	if r.IsZero() {
		return Range{}
	}
	end := Position{Line: r.EndLine - 1, Character: r.EndColumn - 1}
	if r.EndLine == 0 {
		end = Position{Line: r.StartLine - 1, Character: r.StartColumn - 1}
	}
	return Range{
		Start: Position{Line: r.StartLine - 1, Character: r.StartColumn - 1},
		End:   end,
	}
}

// endPosition is the position just past the last character of text
func endPosition(text string) Position {
	line := strings.Count(text, "\n")
	last := text[strings.LastIndex(text, "\n")+1:]
	return Position{Line: line, Character: len(utf16.Encode([]rune(last)))}
}

// symbols builds the document outline from the CST, so it is available
// whenever the text parses, even when the scene does not validate. Entries
// the scene built carry their construct name as detail.
func (s *Server) symbols(uri, text string) []DocumentSymbol {
	tree, _ := cst.ParseString(text)
	if tree == nil {
		return []DocumentSymbol{}
	}
	var bound func(cst.NodeID) string
	if doc, ok := s.registry.Get(uri); ok && doc.AST != nil {
		bound = func(id cst.NodeID) string {
			if n, ok := doc.AST.Bound(id); ok {
				return n.Kind().String()
			}
			return ""
		}
	}
	out := entrySymbols(tree, tree.Entries(tree.Root), bound)
	if out == nil {
		out = []DocumentSymbol{}
	}
	return out
}

func entrySymbols(tree *cst.Tree, entries []cst.NodeID, bound func(cst.NodeID) string) []DocumentSymbol {
	var out []DocumentSymbol
	for _, e := range entries {
		n := tree.Node(e)
		if me, ok := n.Child(cst.SlotMultiLineEntry); ok {
			out = append(out, entrySymbol(tree, me, SymbolKindObject, bound))
		} else if ie, ok := n.Child(cst.SlotInlineEntry); ok {
			out = append(out, entrySymbol(tree, ie, SymbolKindProperty, bound))
		}
	}
	return out
}

func entrySymbol(tree *cst.Tree, id cst.NodeID, kind int, bound func(cst.NodeID) string) DocumentSymbol {
	n := tree.Node(id)
	ident, _ := n.Token(cst.SlotIdentifier)
	sym := DocumentSymbol{
		Name:  ident.Literal,
		Kind:  kind,
		Range: toRange(n.Range),
		SelectionRange: toRange(serrors.Range{
			StartLine: ident.Line, StartColumn: ident.Column,
			EndLine: ident.EndLine, EndColumn: ident.EndColumn,
		}),
	}
	if bound != nil {
		sym.Detail = bound(id)
	}
	if list, ok := n.Child(cst.SlotEntryList); ok {
		sym.Children = entrySymbols(tree, tree.Entries(list), bound)
	}
	return sym
}
