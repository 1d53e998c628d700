package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gorilla/websocket"
	"github.com/sambeau/scenery/pkg/scene/help"
	"golang.org/x/crypto/bcrypt"
)

// Handler returns the HTTP side of the server: the LSP websocket at the
// configured path plus the /healthz, /legend, /describe and /devlog endpoints.
// Only the endpoints are compressed and request-logged; the websocket needs
// the raw connection.
func (s *Server) Handler() http.Handler {
	cors := newCORSMiddleware(s.config.CORS)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     cors.checkOrigin,
	}

	endpoints := http.NewServeMux()
	endpoints.HandleFunc("/healthz", s.handleHealth)
	endpoints.HandleFunc("/legend", s.handleLegend)
	endpoints.HandleFunc("/describe", s.handleDescribe)
	endpoints.HandleFunc("/devlog", s.handleDevLog)

	var h http.Handler = newCompressionHandler(endpoints, s.config.Compression)
	h = cors.Handler(h)
	if s.config.Logging.Level != "error" {
		h = newRequestLogger(h, s.logOut, s.config.Logging.Format)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.wsPath(), s.serveWebsocket)
	mux.Handle("/", h)
	return mux
}

func (s *Server) wsPath() string {
	if s.config.Server.Path == "" {
		return "/lsp"
	}
	return s.config.Server.Path
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logError("websocket upgrade failed: %v", err)
		return
	}
	s.logInfo("editor connected from %s", conn.RemoteAddr())
	if err := s.Serve(r.Context(), NewWebsocketConn(conn)); err != nil {
		s.logWarn("websocket session: %v", err)
	}
	conn.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"documents": s.registry.Len(),
	})
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.legend)
}

// handleDescribe serves the construct reference: ?topic=Sphere, as HTML
// unless format=json.
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	result, err := help.DescribeTopic(r.URL.Query().Get("topic"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, result)
		return
	}
	html, err := help.RenderHTML(result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// handleDevLog lists recent analyses (?uri=, ?since=, ?limit=) or clears
// them on DELETE. With devlog.token_hash set, requests need the matching
// bearer token.
func (s *Server) handleDevLog(w http.ResponseWriter, r *http.Request) {
	if s.devlog == nil {
		http.Error(w, "devlog disabled", http.StatusNotFound)
		return
	}
	if !s.devLogAuthorized(r) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="devlog"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	uri := r.URL.Query().Get("uri")
	switch r.Method {
	case http.MethodGet:
		var since time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := dateparse.ParseAny(v)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid since %q: %v", v, err), http.StatusBadRequest)
				return
			}
			since = t
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		records, err := s.devlog.Entries(uri, since, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []AnalysisRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	case http.MethodDelete:
		if err := s.devlog.Clear(uri); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) devLogAuthorized(r *http.Request) bool {
	hash := s.config.DevLog.TokenHash
	if hash == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
