package asr

import (
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// mockServer is a scripted websocket peer. Each connection runs handle.
type mockServer struct {
	*httptest.Server
	conns atomic.Int32
}

func newMockServer(t *testing.T, secure bool, handle func(t *testing.T, conn *websocket.Conn, r *http.Request)) *mockServer {
	t.Helper()
	m := &mockServer{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.conns.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(t, conn, r)
	})
	if secure {
		m.Server = httptest.NewTLSServer(h)
	} else {
		m.Server = httptest.NewServer(h)
	}
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) wsURL() string {
	return "ws" + strings.TrimPrefix(m.URL, "http")
}

// drain reads until the peer goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Errorf("write json: %v", err)
	}
}

// sinePCM renders a 440 Hz tone as 16-bit little-endian PCM.
func sinePCM(sampleRate int, seconds float64) []byte {
	n := int(float64(sampleRate) * seconds)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := 0.2 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}
