package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/messages"
	"github.com/room4-2/OpenInterpret/metrics"
	"github.com/room4-2/OpenInterpret/session"
	"github.com/room4-2/OpenInterpret/transcript"
)

type fakeController struct {
	mu       sync.Mutex
	starts   int
	stops    int
	language string
}

func (f *fakeController) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeController) SetLanguage(code string) error {
	if code == "xx" {
		return session.ErrUnknownLanguage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.language = code
	return nil
}

func (f *fakeController) Status() session.Status {
	return session.Status{SessionID: "s1", State: session.StateDisconnected, MaxAttempts: 3}
}

func (f *fakeController) History() []transcript.Turn {
	return []transcript.Turn{{ID: "t1", Role: transcript.RoleUser, Text: "hello", IsFinal: true}}
}

func (f *fakeController) Partial() (string, string) { return "", "wor" }

func (f *fakeController) Languages() []config.Language { return config.DefaultLanguages() }

type wireMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func setup(t *testing.T) (*fakeController, *Hub, *websocket.Conn, *httptest.Server) {
	return setupWithReadTimeout(t, 0)
}

func setupWithReadTimeout(t *testing.T, readTimeout time.Duration) (*fakeController, *Hub, *websocket.Conn, *httptest.Server) {
	t.Helper()
	ctl := &fakeController{}
	hub := NewHub(nil, nil)
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	srv := NewServerWebsocket(cfg, hub, ctl, metrics.New("test"), nil)
	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.ReadTimeout = readTimeout
	ts.Start()
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return ctl, hub, conn, ts
}

func read(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m wireMessage
	if err := sonic.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func send(t *testing.T, conn *websocket.Conn, s string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSnapshotOnConnect(t *testing.T) {
	_, _, conn, _ := setup(t)
	m := read(t, conn)
	if m.Type != messages.TypeSnapshot {
		t.Fatalf("first message = %s", m.Type)
	}
	hist, _ := m.Payload["history"].([]interface{})
	if len(hist) != 1 {
		t.Errorf("history = %v", m.Payload["history"])
	}
	if m.Payload["partialOutput"] != "wor" {
		t.Errorf("partialOutput = %v", m.Payload["partialOutput"])
	}
}

func TestControlMessages(t *testing.T) {
	ctl, _, conn, _ := setup(t)
	read(t, conn) // snapshot

	send(t, conn, `{"type":"control","payload":{"action":"start"}}`)
	send(t, conn, `{"type":"control","payload":{"action":"stop"}}`)
	send(t, conn, `{"type":"config","payload":{"language":"fr-FR"}}`)
	send(t, conn, `{"type":"control","payload":{"action":"ping"}}`)

	if m := read(t, conn); m.Type != messages.TypePong {
		t.Fatalf("reply = %s, want pong", m.Type)
	}
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.starts != 1 || ctl.stops != 1 || ctl.language != "fr-FR" {
		t.Errorf("controller = %+v", ctl)
	}
}

func TestBadMessagesGetErrors(t *testing.T) {
	tests := []struct {
		in   string
		code string
	}{
		{`not json`, messages.ErrCodeInvalidMessage},
		{`{"type":"control","payload":{"action":"dance"}}`, messages.ErrCodeUnknownAction},
		{`{"type":"config","payload":{"language":"xx"}}`, messages.ErrCodeUnknownLanguage},
		{`{"type":"audio","payload":{}}`, messages.ErrCodeInvalidMessage},
	}
	_, _, conn, _ := setup(t)
	read(t, conn)
	for _, tt := range tests {
		send(t, conn, tt.in)
		m := read(t, conn)
		if m.Type != messages.TypeError || m.Payload["code"] != tt.code {
			t.Errorf("%s: reply = %+v, want %s", tt.in, m, tt.code)
		}
	}
}

func TestHubBroadcastsSessionEvents(t *testing.T) {
	_, hub, conn, _ := setup(t)
	read(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.StatusChanged(session.Status{State: session.StateConnecting, Attempt: 1, MaxAttempts: 3})
	hub.Partial(transcript.RoleModel, "bonj")
	hub.Turn(transcript.Turn{Role: transcript.RoleModel, Text: "bonjour", IsFinal: true})
	hub.Level(audio.Level{RMS: 0.25, Peak: 0.5})

	want := []string{messages.TypeStatus, messages.TypePartial, messages.TypeTurn, messages.TypeLevel}
	var last wireMessage
	for _, w := range want {
		last = read(t, conn)
		if last.Type != w {
			t.Errorf("got %s, want %s", last.Type, w)
		}
	}
	if last.Payload["rms"] != 0.25 || last.Payload["peak"] != 0.5 {
		t.Errorf("level payload = %v", last.Payload)
	}
}

func TestJoinQueuesSnapshotFirst(t *testing.T) {
	hub := NewHub(nil, nil)
	c := &client{writeChan: make(chan []byte, writeBufferSize), closeChan: make(chan struct{})}
	hub.join(c, func() []byte { return []byte("snapshot") })
	hub.Partial(transcript.RoleUser, "hel")

	if got := string(<-c.writeChan); got != "snapshot" {
		t.Fatalf("first queued = %q, want snapshot", got)
	}
	var m wireMessage
	if err := sonic.Unmarshal(<-c.writeChan, &m); err != nil || m.Type != messages.TypePartial {
		t.Errorf("second queued = %+v, %v", m, err)
	}
	if hub.Count() != 1 {
		t.Errorf("Count() = %d, want 1", hub.Count())
	}
}

func TestJoinMissesNothingAfterSnapshot(t *testing.T) {
	const n = 100
	hub := NewHub(nil, nil)

	var seq atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= n; i++ {
			seq.Store(int64(i))
			hub.Partial(transcript.RoleModel, strconv.Itoa(i))
		}
	}()

	c := &client{writeChan: make(chan []byte, writeBufferSize), closeChan: make(chan struct{})}
	var seen int64
	hub.join(c, func() []byte {
		seen = seq.Load()
		return []byte("snapshot")
	})
	<-done

	if got := string(<-c.writeChan); got != "snapshot" {
		t.Fatalf("first queued = %q, want snapshot", got)
	}
	received := map[string]bool{}
	for len(c.writeChan) > 0 {
		var m wireMessage
		if err := sonic.Unmarshal(<-c.writeChan, &m); err != nil {
			t.Fatal(err)
		}
		text, _ := m.Payload["text"].(string)
		received[text] = true
	}
	for i := seen + 1; i <= n; i++ {
		if !received[strconv.FormatInt(i, 10)] {
			t.Errorf("partial %d published after the snapshot was not queued", i)
		}
	}
}

func TestIdleClientSurvivesServerReadTimeout(t *testing.T) {
	_, _, conn, _ := setupWithReadTimeout(t, 200*time.Millisecond)
	read(t, conn) // snapshot

	time.Sleep(500 * time.Millisecond)
	send(t, conn, `{"type":"control","payload":{"action":"ping"}}`)
	if m := read(t, conn); m.Type != messages.TypePong {
		t.Fatalf("reply = %s, want pong", m.Type)
	}
}

func TestHealth(t *testing.T) {
	_, _, _, ts := setup(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["session"] != "disconnected" {
		t.Errorf("body = %v", body)
	}
}
