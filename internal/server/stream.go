package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/mazestep/internal/config"
	"github.com/lawnchairsociety/mazestep/internal/database"
	"github.com/lawnchairsociety/mazestep/internal/event"
	"github.com/lawnchairsociety/mazestep/internal/logger"
	"github.com/lawnchairsociety/mazestep/internal/playback"
	"github.com/lawnchairsociety/mazestep/internal/seed"
	"github.com/lawnchairsociety/mazestep/internal/session"
)

const writeWait = 10 * time.Second

var (
	errNoSession = errors.New("no session, send new first")
	errPlaying   = errors.New("playback already running")
	errBusy      = errors.New("playback running, pause first")
)

// Message types sent to the client.
const (
	msgSession  = "session"
	msgEvent    = "event"
	msgState    = "state"
	msgComplete = "complete"
	msgError    = "error"
)

// Event sources carried in the phase field of event and complete messages.
const (
	phaseGeneration = "generation"
	phaseSearch     = "search"
)

// command is one client frame, e.g. {"cmd":"new","size":10,"seed":"1234"}.
type command struct {
	Cmd         string          `json:"cmd"`
	Size        int             `json:"size,omitempty"`
	Seed        json.RawMessage `json:"seed,omitempty"`
	IgnoreWalls *bool           `json:"ignore_walls,omitempty"`
	K           int             `json:"k,omitempty"`
	IntervalMS  int             `json:"interval_ms,omitempty"`
	PerTick     int             `json:"per_tick,omitempty"`
}

// seedText accepts the seed as a JSON string or number. ok is false when the
// field was omitted.
func (c command) seedText() (text string, ok bool, err error) {
	raw := bytes.TrimSpace(c.Seed)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", false, fmt.Errorf("seed: %w", err)
		}
		return text, true, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false, fmt.Errorf("seed: %w", err)
	}
	return n.String(), true, nil
}

type sessionInfo struct {
	ID          string `json:"id"`
	Size        int    `json:"size"`
	Seed        int64  `json:"seed"`
	IgnoreWalls bool   `json:"ignore_walls"`
}

type message struct {
	Type    string          `json:"type"`
	Phase   string          `json:"phase,omitempty"`
	State   string          `json:"state,omitempty"`
	Emitted int             `json:"emitted,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Session *sessionInfo    `json:"session,omitempty"`
	Summary *database.Run   `json:"summary,omitempty"`
	Maze    string          `json:"maze,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// stream is one WebSocket client driving its own session.
type stream struct {
	srv  *Server
	conn *websocket.Conn
	log  *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once

	mu       sync.Mutex
	sess     *session.Session
	playCtl  *playback.Controller
	stopPlay context.CancelFunc
	playDone chan struct{}
}

func (s *Server) serveStream(ctx *gin.Context) {
	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	st := &stream{
		srv:  s,
		conn: conn,
		log:  s.log.With("client", ctx.ClientIP()),
	}
	if !s.register(st) {
		st.close("server shutting down")
		return
	}
	defer s.unregister(st)

	st.log.Info("stream opened")
	st.run()
	st.log.Info("stream closed")
}

func (st *stream) run() {
	defer st.close("")
	defer st.haltPlay()

	st.conn.SetReadLimit(st.srv.cfg.WebSocket.MaxMessageSize)
	for {
		_, data, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				st.log.Debug("stream read failed", "error", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			if st.sendError(fmt.Errorf("malformed command: %w", err)) != nil {
				return
			}
			continue
		}
		st.log.Debug("command", "cmd", cmd.Cmd)
		if err := st.handle(cmd); err != nil {
			if st.sendError(err) != nil {
				return
			}
		}
	}
}

// close sends a close frame and drops the connection. Safe to call from any
// goroutine, more than once.
func (st *stream) close(reason string) {
	st.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = st.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = st.conn.Close()
	})
}

func (st *stream) session() *session.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess
}

// playing reports whether a play loop is still driving an unfinished
// controller.
func (st *stream) playing() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.playDone != nil && !st.playCtl.Done()
}

func (st *stream) handle(cmd command) error {
	if cmd.Cmd == "new" {
		return st.newSession(cmd)
	}

	sess := st.session()
	if sess == nil {
		return errNoSession
	}
	c := sess.Active()

	switch cmd.Cmd {
	case "start":
		if err := c.Start(); err != nil {
			return err
		}
		return st.sendState(sess)

	case "step":
		if err := st.checkIdle(c); err != nil {
			return err
		}
		e, ok := c.Step()
		if !ok {
			return st.sendState(sess)
		}
		return st.emit(sess, e)

	case "batch":
		if err := st.checkIdle(c); err != nil {
			return err
		}
		k := cmd.K
		if k <= 0 {
			k = st.srv.cfg.Maze.BatchSize
		}
		events, _ := c.Batch(k)
		if len(events) == 0 {
			return st.sendState(sess)
		}
		return st.emitAll(sess, events)

	case "drain":
		if err := st.checkIdle(c); err != nil {
			return err
		}
		events := c.Drain()
		if len(events) == 0 {
			return st.sendState(sess)
		}
		return st.emitAll(sess, events)

	case "play":
		return st.play(sess, c, cmd)

	case "pause":
		c.Pause()
		return st.sendState(sess)

	case "resume":
		c.Resume()
		return st.sendState(sess)

	case "reset":
		st.haltPlay()
		if err := sess.Reset(); err != nil {
			return err
		}
		return st.sendSession(sess)

	case "search":
		if _, err := sess.BeginSearch(); err != nil {
			return err
		}
		return st.sendState(sess)
	}

	return fmt.Errorf("unknown command %q", cmd.Cmd)
}

// checkIdle refuses manual stepping while a play loop is emitting.
func (st *stream) checkIdle(c *playback.Controller) error {
	if st.playing() && c.State() == playback.StateRunning {
		return errBusy
	}
	return nil
}

func (st *stream) newSession(cmd command) error {
	defaults := st.srv.cfg.Maze

	size := defaults.Size
	if cmd.Size != 0 {
		size = cmd.Size
	}
	if err := config.ValidateSize(size); err != nil {
		return err
	}
	text, ok, err := cmd.seedText()
	if err != nil {
		return err
	}
	if !ok {
		text = defaults.Seed
	}
	ignoreWalls := defaults.IgnoreWalls
	if cmd.IgnoreWalls != nil {
		ignoreWalls = *cmd.IgnoreWalls
	}

	st.haltPlay()
	sess, err := session.New(session.Options{
		Size:        size,
		Seed:        seed.Parse(text),
		IgnoreWalls: ignoreWalls,
	})
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.sess = sess
	st.mu.Unlock()

	st.log.Info("session started", "session", sess.ID(), "size", size, "seed", sess.Seed().String(), "ignore_walls", ignoreWalls)
	return st.sendSession(sess)
}

func (st *stream) play(sess *session.Session, c *playback.Controller, cmd command) error {
	if c.Done() {
		return st.sendState(sess)
	}

	pace := playback.Pace{
		Interval: st.srv.cfg.Maze.PlayInterval,
		PerTick:  st.srv.cfg.Maze.PerTick,
	}
	if cmd.IntervalMS > 0 {
		pace.Interval = time.Duration(cmd.IntervalMS) * time.Millisecond
	}
	if cmd.PerTick > 0 {
		pace.PerTick = cmd.PerTick
	}

	if st.playing() {
		return errPlaying
	}
	// a loop whose run just completed may still be unwinding
	st.haltPlay()

	st.mu.Lock()
	ctx, cancel := context.WithCancel(st.srv.ctx)
	done := make(chan struct{})
	st.playCtl, st.stopPlay, st.playDone = c, cancel, done
	st.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		err := c.Play(ctx, pace, func(e event.Event) error {
			return st.emit(sess, e)
		})

		st.mu.Lock()
		if st.playDone == done {
			st.playCtl, st.stopPlay, st.playDone = nil, nil, nil
		}
		st.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			st.log.Debug("play stopped", "error", err)
		}
	}()
	return nil
}

// haltPlay cancels any play loop and waits for it to exit.
func (st *stream) haltPlay() {
	st.mu.Lock()
	cancel, done := st.stopPlay, st.playDone
	st.playCtl, st.stopPlay, st.playDone = nil, nil, nil
	st.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (st *stream) emitAll(sess *session.Session, events []event.Event) error {
	for _, e := range events {
		if err := st.emit(sess, e); err != nil {
			return err
		}
	}
	return nil
}

// emit sends one event, followed by a complete message when it ends its run.
func (st *stream) emit(sess *session.Session, e event.Event) error {
	phase := phaseGeneration
	if e.Kind() > event.KindMazeDone {
		phase = phaseSearch
	}

	data, err := event.Encode(e)
	if err != nil {
		return err
	}
	if st.log.Enabled(context.Background(), logger.LevelTrace) {
		st.log.Log(context.Background(), logger.LevelTrace, "event", "session", sess.ID(), "phase", phase, "event", fmt.Sprint(e))
	}
	if err := st.send(message{Type: msgEvent, Phase: phase, Event: data}); err != nil {
		return err
	}

	if !e.Kind().Terminal() {
		return nil
	}
	return st.complete(sess, phase)
}

func (st *stream) complete(sess *session.Session, phase string) error {
	run := runFromSummary(sess.Summary())
	msg := message{Type: msgComplete, Phase: phase, Summary: &run}

	if phase == phaseSearch {
		msg.Maze = sess.Grid().Render(sess.Path())
		st.log.Info("search finished", "session", run.ID, "found", run.Found, "visited", run.Visited, "path_length", run.PathLength)
		st.record(run)
	} else {
		msg.Maze = sess.Grid().String()
		st.log.Info("maze generated", "session", run.ID, "carves", run.Carves, "backtracks", run.Backtracks)
	}
	return st.send(msg)
}

// record writes run to the ledger. A replayed session finds its row already
// present and is skipped.
func (st *stream) record(run database.Run) {
	if st.srv.db == nil || !st.srv.cfg.Server.RecordRuns {
		return
	}
	err := st.srv.db.RecordRun(run)
	switch {
	case errors.Is(err, database.ErrDuplicateRun):
		st.log.Debug("run already recorded", "session", run.ID)
	case err != nil:
		st.log.Error("record run", "session", run.ID, "error", err)
	}
}

func runFromSummary(sum session.Summary) database.Run {
	run := database.Run{
		ID:          sum.ID,
		Size:        sum.Size,
		Seed:        sum.Seed,
		Carves:      sum.Carves,
		Backtracks:  sum.Backtracks,
		Searched:    sum.Searched,
		Found:       sum.Found,
		Visited:     sum.Visited,
		PathLength:  sum.PathLength,
		IgnoreWalls: sum.IgnoreWalls,
		StartedAt:   sum.StartedAt,
	}
	if !sum.FinishedAt.IsZero() {
		finished := sum.FinishedAt
		run.FinishedAt = &finished
	}
	return run
}

func (st *stream) sendSession(sess *session.Session) error {
	sum := sess.Summary()
	c := sess.Active()
	return st.send(message{
		Type:  msgSession,
		Phase: sess.Phase().String(),
		State: c.State().String(),
		Session: &sessionInfo{
			ID:          sum.ID,
			Size:        sum.Size,
			Seed:        sum.Seed,
			IgnoreWalls: sum.IgnoreWalls,
		},
	})
}

func (st *stream) sendState(sess *session.Session) error {
	c := sess.Active()
	return st.send(message{
		Type:    msgState,
		Phase:   sess.Phase().String(),
		State:   c.State().String(),
		Emitted: c.Emitted(),
	})
}

func (st *stream) sendError(err error) error {
	return st.send(message{Type: msgError, Error: err.Error()})
}

func (st *stream) send(msg message) error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	if err := st.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return st.conn.WriteJSON(msg)
}
