package feed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
)

// Source yields device messages in order. Next returns io.EOF when the
// stream ends.
type Source interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}

// maxLine bounds a single replay line.
const maxLine = 1 << 20

// ReaderSource reads one JSON message per line. Blank lines and lines
// starting with # are skipped.
type ReaderSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReaderSource reads messages from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	s := &ReaderSource{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// ReplayFile opens a JSON-lines replay script.
func ReplayFile(path string) (*ReaderSource, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReaderSource(f), nil
}

// Next returns the next message.
func (s *ReaderSource) Next(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Message{}, fmt.Errorf("read line %d: %w", s.line+1, err)
			}
			return Message{}, io.EOF
		}
		s.line++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		m, err := DecodeMessage(line)
		if err != nil {
			return Message{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		return m, nil
	}
}

// Close closes the underlying reader if it is closable.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ReadMessages decodes every message in r.
func ReadMessages(r io.Reader) ([]Message, error) {
	src := NewReaderSource(r)
	var out []Message
	for {
		m, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
}

// WebsocketSource reads messages from a device bridge, one JSON message per
// text frame.
type WebsocketSource struct {
	conn *websocket.Conn
}

// DialWebsocket connects to a device bridge.
func DialWebsocket(ctx context.Context, url string) (*WebsocketSource, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxLine)
	return &WebsocketSource{conn: conn}, nil
}

// Next blocks for the next text frame. A normal close from the peer ends the
// stream with io.EOF. Cancelling ctx closes the connection.
func (s *WebsocketSource) Next(ctx context.Context) (Message, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Message{}, io.EOF
			}
			return Message{}, fmt.Errorf("websocket read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		return DecodeMessage(data)
	}
}

// Close sends a close frame and closes the connection.
func (s *WebsocketSource) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
