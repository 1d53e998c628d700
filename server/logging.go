package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sambeau/scenery/config"
)

var logLevels = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// LogEntry is one server log line in json format
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message"`
}

// logger writes leveled lines as "[LEVEL] message" or as JSON entries
type logger struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	level  int
}

func newLogger(out io.Writer, cfg config.LoggingConfig) *logger {
	level, ok := logLevels[cfg.Level]
	if !ok {
		level = logLevels["info"]
	}
	return &logger{out: out, format: cfg.Format, level: level}
}

func (l *logger) logf(level, source, format string, args ...any) {
	if logLevels[level] < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == "json" {
		data, err := json.Marshal(LogEntry{
			Timestamp: time.Now().Format(time.RFC3339),
			Level:     level,
			Source:    source,
			Message:   msg,
		})
		if err != nil {
			return
		}
		fmt.Fprintf(l.out, "%s\n", data)
		return
	}
	tag := level
	if source != "" {
		tag = source + " " + level
	}
	fmt.Fprintf(l.out, "[%s] %s\n", strings.ToUpper(tag), msg)
}

func (s *Server) logDebug(format string, args ...any) { s.log.logf("debug", "", format, args...) }
func (s *Server) logInfo(format string, args ...any)  { s.log.logf("info", "", format, args...) }
func (s *Server) logWarn(format string, args ...any)  { s.log.logf("warn", "", format, args...) }
func (s *Server) logError(format string, args ...any) { s.log.logf("error", "", format, args...) }

// requestLogger is middleware that logs HTTP requests
type requestLogger struct {
	handler http.Handler
	output  io.Writer
	format  string // "json" or "text"
}

// RequestLogEntry represents a single request log entry
type RequestLogEntry struct {
	Timestamp  string `json:"timestamp"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	Duration   string `json:"duration"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// responseCapture wraps http.ResponseWriter to capture status code
type responseCapture struct {
	http.ResponseWriter
	status int
}

func (rc *responseCapture) WriteHeader(code int) {
	rc.status = code
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if rc.status == 0 {
		rc.status = http.StatusOK
	}
	return rc.ResponseWriter.Write(b)
}

func newRequestLogger(handler http.Handler, output io.Writer, format string) *requestLogger {
	if format == "" {
		format = "text"
	}
	return &requestLogger{handler: handler, output: output, format: format}
}

func (rl *requestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rc := &responseCapture{ResponseWriter: w}
	rl.handler.ServeHTTP(rc, r)
	duration := time.Since(start)

	clientIP := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP = xff
	}
	entry := RequestLogEntry{
		Timestamp:  start.Format(time.RFC3339),
		Method:     r.Method,
		Path:       r.URL.Path,
		Status:     rc.status,
		Duration:   duration.String(),
		DurationMs: duration.Milliseconds(),
		ClientIP:   clientIP,
		UserAgent:  r.UserAgent(),
	}

	if rl.format == "json" {
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		fmt.Fprintf(rl.output, "%s\n", data)
		return
	}
	fmt.Fprintf(rl.output, "%s %s %s %d %s\n",
		entry.Timestamp, entry.Method, entry.Path, entry.Status, entry.Duration)
}
