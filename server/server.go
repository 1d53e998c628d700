// Package server is the scene language server. It speaks JSON-RPC 2.0 LSP
// over stdio or over websockets, keeps one document registry shared by every
// editor session, and serves a few HTTP endpoints next to the websocket.
package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sambeau/scenery/config"
	"github.com/sambeau/scenery/pkg/scene/scene"
	"github.com/sambeau/scenery/pkg/scene/tokens"
	"golang.org/x/net/netutil"
)

// ErrExitWithoutShutdown is returned by Serve when the client sent exit
// before shutdown.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// Server is a scene language server instance.
type Server struct {
	config     *config.Config
	configPath string
	version    string
	log        *logger
	logOut     io.Writer
	registry   *scene.Registry
	legend     tokens.Legend
	devlog     *DevLog
	watcher    *Watcher
	http       *http.Server
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	open     map[string]int // uri -> sessions holding it open
}

// New creates a server. Log lines go to logOut, never to the protocol stream.
func New(cfg *config.Config, configPath, version string, logOut io.Writer) (*Server, error) {
	s := &Server{
		config:     cfg,
		configPath: configPath,
		version:    version,
		log:        newLogger(logOut, cfg.Logging),
		logOut:     logOut,
		registry:   scene.NewRegistry(),
		legend:     tokens.NewLegend(),
		sessions:   make(map[string]*session),
		open:       make(map[string]int),
	}

	if cfg.DevLog.Enabled {
		maxSize, err := config.ParseSize(cfg.DevLog.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("devlog max_size: %w", err)
		}
		source := cfg.DevLog.Path
		if cfg.DevLog.Driver != "" && cfg.DevLog.Driver != "sqlite" {
			source = cfg.DevLog.DSN
		}
		dl, err := OpenDevLog(cmp.Or(cfg.DevLog.Driver, "sqlite"), source, maxSize, cfg.DevLog.TruncatePct)
		if err != nil {
			return nil, err
		}
		s.devlog = dl
	}
	return s, nil
}

// Registry returns the document registry shared by all sessions.
func (s *Server) Registry() *scene.Registry {
	return s.registry
}

// Run serves the configured transport until ctx is cancelled or the stdio
// client exits. in and out are only used by the stdio transport.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	defer s.close()

	if s.config.Watch.Enabled {
		w, err := NewWatcher(s.config.Watch.Dirs, s.config.Analysis.FilePattern,
			s.config.Watch.Debounce, s.analyzeFile, s.logOut, s.logOut)
		if err != nil {
			s.logError("failed to create watcher: %v", err)
		} else if err := w.Start(ctx); err != nil {
			s.logError("failed to start watcher: %v", err)
			w.Close()
		} else {
			s.watcher = w
		}
	}

	if s.config.Server.Transport == "websocket" {
		return s.listenAndServe(ctx)
	}
	s.logInfo("serving LSP on stdio")
	return s.Serve(ctx, NewStreamConn(in, out))
}

func (s *Server) listenAndServe(ctx context.Context) error {
	addr := s.listenAddr()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if n := s.config.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logInfo("serving LSP on ws://%s%s", ln.Addr(), s.wsPath())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logInfo("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.closeSessions()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Server) listenAddr() string {
	host := s.config.Server.Host
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, fmt.Sprint(s.config.Server.Port))
}

// Serve runs one editor session on conn until the client exits, the
// connection ends or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, conn Conn) error {
	sess := s.newSession(conn)
	defer s.endSession(sess)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}
		if sess.handle(data) {
			if !sess.isShutdown() {
				return ErrExitWithoutShutdown
			}
			return nil
		}
	}
}

func (s *Server) newSession(conn Conn) *session {
	sess := newSession(s, conn)
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.logDebug("session %s started", sess.id)
	return sess
}

// endSession releases every document the session still holds
func (s *Server) endSession(sess *session) {
	for _, uri := range sess.openURIs() {
		s.release(uri)
	}
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.logDebug("session %s ended", sess.id)
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.conn.Close()
	}
}

// acquire marks uri as open in one more editor
func (s *Server) acquire(uri string) {
	s.mu.Lock()
	s.open[uri]++
	s.mu.Unlock()
}

// release drops one editor's hold on uri, forgetting it when none is left
func (s *Server) release(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open[uri] <= 1 {
		delete(s.open, uri)
		s.registry.Delete(uri)
		return
	}
	s.open[uri]--
}

func (s *Server) isOpen(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[uri] > 0
}

func (s *Server) broadcast(method string, params any) {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.notify(method, params)
	}
}

func (s *Server) parseOptions() []scene.Option {
	return []scene.Option{scene.WithStrictCounts(s.config.Analysis.StrictCounts)}
}

// analyze runs the pipeline over text and records the outcome
func (s *Server) analyze(uri, text string) *scene.Analysis {
	a := scene.Analyze(s.registry, uri, text, s.parseOptions()...)
	s.logDebug("analyzed %s: %s, %d errors in %s", uri, a.Result.Stage, len(a.Diagnostics), a.Result.Duration)
	if s.devlog != nil {
		if err := s.devlog.Record(a); err != nil {
			s.logWarn("devlog: %v", err)
		}
	}
	return a
}

// analyzeFile re-checks a scene file changed on disk. Files open in an
// editor are skipped: the editor's buffer is authoritative.
func (s *Server) analyzeFile(path string) {
	uri := pathToURI(path)
	if s.isOpen(uri) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.registry.Delete(uri)
		s.broadcast("textDocument/publishDiagnostics", PublishDiagnosticsParams{URI: uri, Diagnostics: []Diagnostic{}})
		s.logInfo("scene removed: %s", path)
		return
	}
	a := s.analyze(uri, string(data))
	if len(a.Diagnostics) == 0 {
		s.logInfo("scene ok: %s", path)
	} else {
		s.logWarn("scene %s: %s", path, a.Diagnostics[0])
	}
	for _, p := range diagnosticsParams(a) {
		s.broadcast("textDocument/publishDiagnostics", p)
	}
}

func (s *Server) close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.devlog != nil {
		s.devlog.Close()
	}
}

// pathToURI turns a file path into a file:// URI
func pathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
