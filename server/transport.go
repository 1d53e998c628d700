package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn carries whole JSON-RPC messages in both directions.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(v any) error
	Close() error
}

// readMessage reads one Content-Length framed message.
func readMessage(r *bufio.Reader) ([]byte, error) {
	contentLen := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid Content-Length %q", val)
			}
			contentLen = n
		}
	}
	if contentLen < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	buf := make([]byte, contentLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading message body: %w", err)
	}
	return buf, nil
}

// writeMessage frames v with a Content-Length header and writes it in one call.
func writeMessage(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.Write(body)
	_, err = w.Write(b.Bytes())
	return err
}

// streamConn speaks framed JSON-RPC over a byte stream, e.g. stdin/stdout.
type streamConn struct {
	r  *bufio.Reader
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewStreamConn returns a Conn reading from r and writing to w. Close closes
// r when it is an io.Closer.
func NewStreamConn(r io.Reader, w io.Writer) Conn {
	c, _ := r.(io.Closer)
	return &streamConn{r: bufio.NewReader(r), w: w, c: c}
}

func (c *streamConn) ReadMessage() ([]byte, error) {
	return readMessage(c.r)
}

func (c *streamConn) WriteMessage(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeMessage(c.w, v)
}

func (c *streamConn) Close() error {
	if c.c != nil {
		return c.c.Close()
	}
	return nil
}

// wsConn carries one JSON-RPC message per websocket text frame.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebsocketConn wraps an established websocket connection.
func NewWebsocketConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if mt == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
