package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/mazestep/internal/event"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		t.Fatalf("write %s: %v", cmd, err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// readEvents reads event messages until a complete message arrives.
func readEvents(t *testing.T, conn *websocket.Conn) ([]event.Event, message) {
	t.Helper()
	var events []event.Event
	for {
		msg := readMessage(t, conn)
		switch msg.Type {
		case msgEvent:
			e, err := event.Decode(msg.Event)
			if err != nil {
				t.Fatalf("decode %s: %v", msg.Event, err)
			}
			events = append(events, e)
		case msgComplete:
			return events, msg
		default:
			t.Fatalf("unexpected %s message while streaming: %+v", msg.Type, msg)
		}
	}
}

func expectError(t *testing.T, conn *websocket.Conn, contains string) {
	t.Helper()
	msg := readMessage(t, conn)
	if msg.Type != msgError {
		t.Fatalf("message type = %s, want error", msg.Type)
	}
	if !strings.Contains(msg.Error, contains) {
		t.Errorf("error = %q, want it to contain %q", msg.Error, contains)
	}
}

func TestStream_FullRun(t *testing.T) {
	_, ts, db := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new","size":3,"seed":"1234"}`)
	hello := readMessage(t, conn)
	if hello.Type != msgSession || hello.Session == nil {
		t.Fatalf("first message = %+v, want session", hello)
	}
	if hello.Session.Size != 3 || hello.Session.Seed != 1234 {
		t.Errorf("session = %+v", hello.Session)
	}
	if hello.Phase != "generating" || hello.State != "running" {
		t.Errorf("phase/state = %s/%s, want generating/running", hello.Phase, hello.State)
	}

	sendCommand(t, conn, `{"cmd":"drain"}`)
	generation, done := readEvents(t, conn)
	if len(generation) != 19 {
		t.Fatalf("generation events = %d, want 19", len(generation))
	}
	if _, ok := generation[0].(event.MazeStart); !ok {
		t.Errorf("first event = %T, want MazeStart", generation[0])
	}
	if _, ok := generation[18].(event.MazeDone); !ok {
		t.Errorf("last event = %T, want MazeDone", generation[18])
	}
	if done.Phase != phaseGeneration || done.Maze != goldenMaze {
		t.Errorf("generation complete = %s\n%s", done.Phase, done.Maze)
	}
	if done.Summary == nil || done.Summary.Carves != 8 || done.Summary.Backtracks != 9 || done.Summary.Searched {
		t.Errorf("generation summary = %+v", done.Summary)
	}

	sendCommand(t, conn, `{"cmd":"search"}`)
	state := readMessage(t, conn)
	if state.Type != msgState || state.Phase != "searching" || state.State != "running" {
		t.Fatalf("search state = %+v", state)
	}

	sendCommand(t, conn, `{"cmd":"drain"}`)
	searchEvents, finished := readEvents(t, conn)
	if len(searchEvents) != 22 {
		t.Fatalf("search events = %d, want 22", len(searchEvents))
	}
	if _, ok := searchEvents[0].(event.SearchStart); !ok {
		t.Errorf("first search event = %T, want SearchStart", searchEvents[0])
	}
	last, ok := searchEvents[21].(event.Finished)
	if !ok || !last.Found {
		t.Errorf("last search event = %+v, want Finished{Found: true}", searchEvents[21])
	}
	if finished.Phase != phaseSearch || finished.Summary == nil {
		t.Fatalf("search complete = %+v", finished)
	}
	sum := finished.Summary
	if !sum.Searched || !sum.Found || sum.PathLength != 7 || sum.Visited != 7 {
		t.Errorf("search summary = %+v", sum)
	}
	if sum.FinishedAt == nil {
		t.Error("search summary has no finish time")
	}
	if strings.Count(finished.Maze, "*") != 5 {
		t.Errorf("solved maze missing path:\n%s", finished.Maze)
	}

	run, err := db.GetRun(hello.Session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if run == nil {
		t.Fatal("run was not recorded")
	}
	if run.Seed != 1234 || run.PathLength != 7 || !run.Found {
		t.Errorf("recorded run = %+v", run)
	}
}

func TestStream_RecordRunsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RecordRuns = false
	_, ts, db := setupTestServer(t, cfg)
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new"}`)
	readMessage(t, conn)
	sendCommand(t, conn, `{"cmd":"drain"}`)
	readEvents(t, conn)
	sendCommand(t, conn, `{"cmd":"search"}`)
	readMessage(t, conn)
	sendCommand(t, conn, `{"cmd":"drain"}`)
	readEvents(t, conn)

	count, err := db.CountRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("CountRuns() = %d with recording disabled, want 0", count)
	}
}

func TestStream_SearchBeforeGenerationDone(t *testing.T) {
	_, ts, _ := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new"}`)
	readMessage(t, conn)

	sendCommand(t, conn, `{"cmd":"search"}`)
	expectError(t, conn, "not finished")

	sendCommand(t, conn, `{"cmd":"step"}`)
	msg := readMessage(t, conn)
	if msg.Type != msgEvent || msg.Phase != phaseGeneration {
		t.Errorf("step after refused search = %+v, want generation event", msg)
	}
}

func TestStream_CommandErrors(t *testing.T) {
	_, ts, _ := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"step"}`)
	expectError(t, conn, "no session")

	sendCommand(t, conn, `{not json`)
	expectError(t, conn, "malformed command")

	sendCommand(t, conn, `{"cmd":"new","size":2}`)
	expectError(t, conn, "size 2")

	sendCommand(t, conn, `{"cmd":"new","size":500}`)
	expectError(t, conn, "size 500")

	sendCommand(t, conn, `{"cmd":"new","seed":[1]}`)
	expectError(t, conn, "seed")

	sendCommand(t, conn, `{"cmd":"new"}`)
	if msg := readMessage(t, conn); msg.Type != msgSession {
		t.Fatalf("stream unusable after errors: %+v", msg)
	}

	sendCommand(t, conn, `{"cmd":"fly"}`)
	expectError(t, conn, `unknown command "fly"`)
}

func TestStream_NumericSeed(t *testing.T) {
	_, ts, _ := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new","seed":42}`)
	msg := readMessage(t, conn)
	if msg.Session == nil || msg.Session.Seed != 42 {
		t.Errorf("session = %+v, want seed 42", msg.Session)
	}
}

func TestStream_Batch(t *testing.T) {
	_, ts, _ := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new"}`)
	readMessage(t, conn)

	sendCommand(t, conn, `{"cmd":"batch","k":5}`)
	for i := 0; i < 5; i++ {
		if msg := readMessage(t, conn); msg.Type != msgEvent {
			t.Fatalf("batch message %d = %+v, want event", i, msg)
		}
	}

	sendCommand(t, conn, `{"cmd":"batch","k":100}`)
	events, done := readEvents(t, conn)
	if len(events) != 14 {
		t.Errorf("remaining events = %d, want 14", len(events))
	}
	if done.Phase != phaseGeneration {
		t.Errorf("complete phase = %s", done.Phase)
	}

	sendCommand(t, conn, `{"cmd":"batch"}`)
	state := readMessage(t, conn)
	if state.Type != msgState || state.State != "done" || state.Emitted != 19 {
		t.Errorf("batch after done = %+v, want done state with 19 emitted", state)
	}
}

func TestStream_PauseResume(t *testing.T) {
	_, ts, _ := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new"}`)
	readMessage(t, conn)

	sendCommand(t, conn, `{"cmd":"pause"}`)
	if msg := readMessage(t, conn); msg.State != "paused" {
		t.Errorf("state after pause = %s", msg.State)
	}
	sendCommand(t, conn, `{"cmd":"start"}`)
	if msg := readMessage(t, conn); msg.State != "paused" {
		t.Errorf("start on a started controller changed state to %s", msg.State)
	}
	sendCommand(t, conn, `{"cmd":"resume"}`)
	if msg := readMessage(t, conn); msg.State != "running" {
		t.Errorf("state after resume = %s", msg.State)
	}
}

func TestStream_Play(t *testing.T) {
	_, ts, _ := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new"}`)
	readMessage(t, conn)

	sendCommand(t, conn, `{"cmd":"play","interval_ms":1,"per_tick":4}`)
	events, done := readEvents(t, conn)
	if len(events) != 19 {
		t.Errorf("played events = %d, want 19", len(events))
	}
	if done.Maze != goldenMaze {
		t.Errorf("played maze =\n%s", done.Maze)
	}

	sendCommand(t, conn, `{"cmd":"search"}`)
	if msg := readMessage(t, conn); msg.Type != msgState || msg.Phase != "searching" {
		t.Fatalf("search after play = %+v", msg)
	}
	sendCommand(t, conn, `{"cmd":"play"}`)
	searchEvents, finished := readEvents(t, conn)
	if len(searchEvents) != 22 || finished.Phase != phaseSearch {
		t.Errorf("played search = %d events, phase %s", len(searchEvents), finished.Phase)
	}

	sendCommand(t, conn, `{"cmd":"play"}`)
	if msg := readMessage(t, conn); msg.Type != msgState || msg.State != "done" || msg.Phase != "complete" {
		t.Errorf("play after completion = %+v", msg)
	}
}

func TestStream_ResetReplays(t *testing.T) {
	_, ts, _ := setupTestServer(t, testConfig())
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new","seed":""}`)
	first := readMessage(t, conn)
	sendCommand(t, conn, `{"cmd":"drain"}`)
	_, before := readEvents(t, conn)

	sendCommand(t, conn, `{"cmd":"reset"}`)
	again := readMessage(t, conn)
	if again.Type != msgSession || again.Session.ID != first.Session.ID {
		t.Fatalf("reset = %+v, want same session", again)
	}
	if again.Session.Seed != first.Session.Seed {
		t.Errorf("reset changed seed %d -> %d", first.Session.Seed, again.Session.Seed)
	}
	if again.State != "running" || again.Phase != "generating" {
		t.Errorf("reset state = %s/%s", again.Phase, again.State)
	}

	sendCommand(t, conn, `{"cmd":"drain"}`)
	_, after := readEvents(t, conn)
	if after.Maze != before.Maze {
		t.Errorf("replayed maze differs:\n%s\nvs\n%s", before.Maze, after.Maze)
	}
}

func TestStream_ConnLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Connections.MaxPerIP = 1
	srv, ts, _ := setupTestServer(t, cfg)

	first := dialStream(t, ts)
	sendCommand(t, first, `{"cmd":"new"}`)
	readMessage(t, first)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err == nil {
		t.Fatal("second stream from the same address was accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second dial response = %v, want 429", resp)
	}
	if srv.StreamCount() != 1 {
		t.Errorf("StreamCount() = %d, want 1", srv.StreamCount())
	}
}

func TestStream_OriginRejected(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocket.AllowedOrigins = []string{"https://ok.example"}
	_, ts, _ := setupTestServer(t, cfg)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err == nil {
		t.Fatal("connection from disallowed origin was accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	header.Set("Origin", "https://ok.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestStream_ReadLimit(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocket.MaxMessageSize = 64
	_, ts, _ := setupTestServer(t, cfg)
	conn := dialStream(t, ts)

	sendCommand(t, conn, `{"cmd":"new","seed":"`+strings.Repeat("x", 200)+`"}`)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("oversized command did not close the stream")
	}
}

func TestCommandSeedText(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		present bool
		wantErr bool
	}{
		{``, "", false, false},
		{`null`, "", false, false},
		{`"abc"`, "abc", true, false},
		{`""`, "", true, false},
		{`1234`, "1234", true, false},
		{`-7`, "-7", true, false},
		{`true`, "", false, true},
	}
	for _, tt := range tests {
		text, ok, err := command{Seed: []byte(tt.raw)}.seedText()
		if (err != nil) != tt.wantErr {
			t.Errorf("seedText(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if text != tt.want || ok != tt.present {
			t.Errorf("seedText(%s) = %q, %v; want %q, %v", tt.raw, text, ok, tt.want, tt.present)
		}
	}
}
