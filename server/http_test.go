package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sambeau/scenery/config"
	"github.com/sambeau/scenery/pkg/scene/help"
	"github.com/sambeau/scenery/pkg/scene/tokens"
	"golang.org/x/crypto/bcrypt"
)

func TestEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())
	srv.analyze("file:///a.txt", okScene)
	h := srv.Handler()

	tests := []struct {
		name        string
		target      string
		status      int
		contentType string
		contains    string
	}{
		{"health", "/healthz", http.StatusOK, "application/json", `"documents":1`},
		{"legend", "/legend", http.StatusOK, "application/json", `"tokenTypes":["Scene","PerspectiveCamera"`},
		{"describe html", "/describe?topic=Sphere", http.StatusOK, "text/html", `<h1 id="sphere">Sphere</h1>`},
		{"describe json", "/describe?topic=sphere&format=json", http.StatusOK, "application/json", `"name":"Sphere"`},
		{"describe list", "/describe", http.StatusOK, "text/html", "PerspectiveCamera"},
		{"unknown topic", "/describe?topic=Sphree", http.StatusNotFound, "text/plain", "Did you mean: Sphere?"},
		{"devlog disabled", "/devlog", http.StatusNotFound, "text/plain", "devlog disabled"},
		{"unknown path", "/nope", http.StatusNotFound, "text/plain", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", tt.target, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %q should contain %q", rec.Body.String(), tt.contains)
			}
		})
	}
}

func TestDescribeJSONMatchesHelp(t *testing.T) {
	srv := newTestServer(t, testConfig())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/describe?topic=Material&format=json", nil))

	var got help.TopicResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want, _ := help.DescribeTopic("Material")
	if got.Name != want.Name || len(got.Fields) != len(want.Fields) {
		t.Errorf("describe = %+v", got)
	}
}

func TestDevLogEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.DevLog.Enabled = true
	cfg.DevLog.Path = filepath.Join(t.TempDir(), "devlog.db")
	srv := newTestServer(t, cfg)
	defer srv.close()
	srv.analyze("file:///a.txt", okScene)
	srv.analyze("file:///b.txt", "Group {")
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/devlog?uri=file:///b.txt", nil))
	var records []AnalysisRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	if len(records) != 1 || records[0].Stage != "parse" {
		t.Errorf("records = %+v", records)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("DELETE", "/devlog", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	if n, _ := srv.devlog.Count(""); n != 0 {
		t.Errorf("%d records left after DELETE", n)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/devlog", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}

func TestEndpointsCompressed(t *testing.T) {
	cfg := testConfig()
	cfg.Compression.MinSize = 10
	h := newTestServer(t, cfg).Handler()

	req := httptest.NewRequest("GET", "/describe?topic=Material", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Error("describe page not compressed")
	}
}

func TestWebsocketSession(t *testing.T) {
	srv := newTestServer(t, testConfig())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/lsp"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	send := func(data []byte) {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatal(err)
		}
	}
	recv := func() wireMsg {
		var msg wireMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	send(initialize())
	var res InitializeResult
	json.Unmarshal(recv().Result, &res)
	if len(res.Capabilities.SemanticTokensProvider.Legend.TokenTypes) != len(tokens.NewLegend().TokenTypes) {
		t.Errorf("initialize result = %+v", res)
	}

	send(notification("textDocument/didOpen", openParams("file:///ws.txt", "Group {")))
	if m := recv(); m.Method != "textDocument/publishDiagnostics" {
		t.Errorf("expected a clear, got %+v", m)
	}
	var p PublishDiagnosticsParams
	json.Unmarshal(recv().Params, &p)
	if len(p.Diagnostics) == 0 || !strings.HasPrefix(p.Diagnostics[0].Code, "PARSE-") {
		t.Errorf("diagnostics = %+v", p)
	}

	send(request(1, "shutdown", nil))
	if m := recv(); string(m.ID) != "1" {
		t.Errorf("shutdown response = %+v", m)
	}
	send(notification("exit", nil))

	// The server closes the connection after exit.
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Error("connection still open after exit")
	}
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, testConfig())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/lsp"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("foreign origin accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v", resp)
	}

	cfgAllowed := testConfig()
	cfgAllowed.CORS.Origins = []string{"http://evil.example"}
	ts2 := httptest.NewServer(newTestServer(t, cfgAllowed).Handler())
	defer ts2.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts2.URL, "http")+"/lsp", header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.Origins = []string{"http://editor.local"}
	cfg.CORS.MaxAge = 600
	h := newTestServer(t, cfg).Handler()

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"same origin", "GET", "", "", http.StatusOK},
		{"allowed", "GET", "http://editor.local", "http://editor.local", http.StatusOK},
		{"not allowed", "GET", "http://evil.example", "", http.StatusOK},
		{"preflight", "OPTIONS", "http://editor.local", "http://editor.local", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/legend", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.method == "OPTIONS" {
				if rec.Header().Get("Access-Control-Max-Age") != "600" || rec.Header().Get("Access-Control-Allow-Methods") != "GET, HEAD, DELETE" {
					t.Errorf("preflight headers = %v", rec.Header())
				}
			}
		})
	}

	wildcard := newCORSMiddleware(config.CORSConfig{Origins: []string{"*"}}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://any.example")
	rec := httptest.NewRecorder()
	wildcard.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("wildcard Allow-Origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestDevLogEndpointSinceAndToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.DevLog.Enabled = true
	cfg.DevLog.Path = filepath.Join(t.TempDir(), "devlog.db")
	cfg.DevLog.TokenHash = string(hash)
	srv := newTestServer(t, cfg)
	defer srv.close()
	srv.analyze("file:///a.txt", okScene)
	h := srv.Handler()

	tests := []struct {
		name   string
		target string
		token  string
		status int
		count  int
	}{
		{"no token", "/devlog", "", http.StatusUnauthorized, -1},
		{"wrong token", "/devlog", "guess", http.StatusUnauthorized, -1},
		{"token", "/devlog", "s3cret", http.StatusOK, 1},
		{"since past", "/devlog?since=2001-02-03", "s3cret", http.StatusOK, 1},
		{"since future", "/devlog?since=" + time.Now().Add(48*time.Hour).Format("2006-01-02"), "s3cret", http.StatusOK, 0},
		{"bad since", "/devlog?since=whenever", "s3cret", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.count < 0 {
				return
			}
			var records []AnalysisRecord
			if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
				t.Fatal(err)
			}
			if len(records) != tt.count {
				t.Errorf("got %d records, want %d", len(records), tt.count)
			}
		})
	}
}
