package asr

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// session is one provider WebSocket connection. Cancelling the context
// passed to dial closes the connection, which unblocks any pending read.
type session struct {
	ctx  context.Context
	conn *websocket.Conn
	stop func() bool
}

func dial(ctx context.Context, d *websocket.Dialer, url string, header http.Header) (*session, error) {
	conn, resp, err := d.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, networkError("websocket handshake: "+resp.Status, err)
		}
		return nil, networkError("websocket dial", err)
	}
	s := &session{ctx: ctx, conn: conn}
	s.stop = context.AfterFunc(ctx, func() { conn.Close() })
	return s, nil
}

func (s *session) close() {
	s.stop()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.conn.Close()
}

func (s *session) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return encodingError("marshal message", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return s.failure("write message", err)
	}
	return nil
}

func (s *session) sendBinary(p []byte) error {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return s.failure("write audio", err)
	}
	return nil
}

// readText returns the next text frame, skipping binary frames.
// A zero timeout disables the read deadline.
func (s *session) readText(timeout time.Duration) ([]byte, error) {
	for {
		var deadline time.Time
		if timeout > 0 {
			deadline = time.Now().Add(timeout)
		}
		_ = s.conn.SetReadDeadline(deadline)

		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage {
			return data, nil
		}
	}
}

// failure converts a transport error into a Network error.
func (s *session) failure(stage string, err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return networkError(stage, ctxErr)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return networkError(stage+": timed out", err)
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return networkError(stage+": connection closed", err)
	}
	return networkError(stage, err)
}

func bearer(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+apiKey)
	return h
}

// insecureDialer accepts self-signed certificates, which local
// recognition servers ship with by default.
func insecureDialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
	}
}

// sentences accumulates a transcript from sentence-level results. It keeps every
// finished sentence in order, not only the latest one; the open sentence is
// replaced as it grows.
type sentences struct {
	done    []string
	partial string
}

func (s *sentences) add(text string, end bool) {
	if end {
		s.done = append(s.done, text)
		s.partial = ""
		return
	}
	s.partial = text
}

func (s *sentences) String() string {
	var out string
	for _, t := range s.done {
		out = joinText(out, t)
	}
	return joinText(out, s.partial)
}

// joinText concatenates two transcript fragments, adding a space only
// between ASCII text so CJK output stays unspaced.
func joinText(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if last < utf8.RuneSelf && first < utf8.RuneSelf && !unicode.IsSpace(last) && !unicode.IsSpace(first) {
		return a + " " + b
	}
	return a + b
}
