package server

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// session is one connected editor. Requests are handled in arrival order.
type session struct {
	id   string
	srv  *Server
	conn Conn

	mu          sync.Mutex
	initialized bool
	shutdown    bool
	docs        map[string]string // uri -> current text
}

func newSession(s *Server, conn Conn) *session {
	return &session{
		id:   uuid.NewString(),
		srv:  s,
		conn: conn,
		docs: make(map[string]string),
	}
}

// handle processes one message and reports whether the client asked to exit.
func (ss *session) handle(data []byte) bool {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		ss.respond(json.RawMessage("null"), nil, &ResponseError{Code: codeParseError, Message: "parse error: " + err.Error()})
		return false
	}

	switch req.Method {
	case "initialize":
		ss.onInitialize(&req)
		return false
	case "exit":
		return true
	}

	if !ss.isInitialized() {
		if !req.IsNotification() {
			ss.respond(req.ID, nil, &ResponseError{Code: codeServerNotInitialized, Message: "server not initialized"})
		}
		return false
	}
	if ss.isShutdown() {
		if !req.IsNotification() {
			ss.respond(req.ID, nil, &ResponseError{Code: codeInvalidRequest, Message: "server is shutting down"})
		}
		return false
	}

	switch req.Method {
	case "initialized", "$/cancelRequest", "$/setTrace":
		// nothing to do
	case "shutdown":
		ss.mu.Lock()
		ss.shutdown = true
		ss.mu.Unlock()
		ss.respond(req.ID, nil, nil)

	case "textDocument/didOpen":
		ss.onDidOpen(&req)
	case "textDocument/didChange":
		ss.onDidChange(&req)
	case "textDocument/didSave":
		ss.onDidSave(&req)
	case "textDocument/didClose":
		ss.onDidClose(&req)

	case "textDocument/semanticTokens/full":
		ss.onSemanticTokensFull(&req)
	case "textDocument/documentSymbol":
		ss.onDocumentSymbol(&req)
	case "textDocument/formatting":
		ss.onFormatting(&req)

	default:
		if !req.IsNotification() {
			ss.respond(req.ID, nil, &ResponseError{Code: codeMethodNotFound, Message: "method not found: " + req.Method})
		}
	}
	return false
}

func (ss *session) isInitialized() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.initialized
}

func (ss *session) isShutdown() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.shutdown
}

// text returns the session's copy of uri
func (ss *session) text(uri string) (string, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	t, ok := ss.docs[uri]
	return t, ok
}

// setText stores text and reports whether uri was newly opened
func (ss *session) setText(uri, text string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, had := ss.docs[uri]
	ss.docs[uri] = text
	return !had
}

func (ss *session) forget(uri string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, had := ss.docs[uri]
	delete(ss.docs, uri)
	return had
}

func (ss *session) openURIs() []string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	uris := make([]string, 0, len(ss.docs))
	for uri := range ss.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// respond sends a response. A nil result with no error is sent as null.
func (ss *session) respond(id json.RawMessage, result any, respErr *ResponseError) {
	if respErr == nil && result == nil {
		result = json.RawMessage("null")
	}
	if err := ss.conn.WriteMessage(Response{JSONRPC: "2.0", ID: id, Result: result, Error: respErr}); err != nil {
		ss.srv.logError("session %s: writing response: %v", ss.id, err)
	}
}

func (ss *session) notify(method string, params any) {
	if err := ss.conn.WriteMessage(Notification{JSONRPC: "2.0", Method: method, Params: params}); err != nil {
		ss.srv.logError("session %s: writing %s: %v", ss.id, method, err)
	}
}

// invalidParams reports a params decoding failure on requests
func (ss *session) invalidParams(req *Request, err error) {
	ss.srv.logWarn("%s: invalid params: %v", req.Method, err)
	if !req.IsNotification() {
		ss.respond(req.ID, nil, &ResponseError{Code: codeInvalidParams, Message: err.Error()})
	}
}
