// Package session drives the interpreter's connection lifecycle: it owns the
// capture graph while a session runs, feeds microphone frames to the live
// transport, plays replies and rebuilds the transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/functions"
	"github.com/room4-2/OpenInterpret/metrics"
	"github.com/room4-2/OpenInterpret/playback"
	"github.com/room4-2/OpenInterpret/transcript"
	"github.com/room4-2/OpenInterpret/transport"
)

const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 2000 * time.Millisecond
	DefaultToolTimeout = 60 * time.Second

	eventQueueSize = 64
	storeTimeout   = 2 * time.Second
)

// ErrUnknownLanguage is returned by SetLanguage for codes not in the list.
var ErrUnknownLanguage = errors.New("unknown language")

// Graph is the part of the capture manager the session drives.
type Graph interface {
	Acquire() error
	Connect(sink func(audio.Frame)) error
	Teardown(full bool)
	Player() *playback.Scheduler
}

// Listener observes the session. Calls come from the session goroutine and
// must not block.
type Listener interface {
	StatusChanged(Status)
	Partial(role transcript.Role, text string)
	Turn(transcript.Turn)
}

// Options configure a session.
type Options struct {
	APIKey      string
	Model       string
	Voice       string
	Language    string // empty for transcribe-only
	Languages   []config.Language
	MaxRetries  int
	RetryDelay  time.Duration
	OutputRate  int // assumed rate of inbound audio without a rate parameter
	ToolTimeout time.Duration
}

// Deps are the collaborators of a session. Store, Listener and Metrics are
// optional.
type Deps struct {
	Dialer   transport.Dialer
	Graph    Graph
	Tools    *functions.Registry
	Listener Listener
	Store    Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type stopper interface {
	Stop() bool
}

type liveConn struct {
	conn transport.Conn
}

// Session is the lifecycle state machine. All state below the loop marker is
// owned by the Run goroutine; everything else reaches it by posting closures.
type Session struct {
	ID string

	opts     Options
	dialer   transport.Dialer
	graph    Graph
	tools    *functions.Registry
	listener Listener
	store    Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	acc      *transcript.Accumulator

	events    chan func()
	done      chan struct{}
	afterFunc func(time.Duration, func()) stopper

	// capture sink view of the open connection, set only after OnOpen
	live atomic.Pointer[liveConn]

	statusMu sync.RWMutex
	status   Status

	// loop
	ctx        context.Context
	state      State
	retries    int
	retryMsg   string // shown while reconnecting
	gen        uint64
	conn       transport.Conn
	language   string
	retryTimer stopper
	timerSeq   uint64
}

// New creates a disconnected session. Nothing happens until Run is started.
func New(deps Deps, opts Options) *Session {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.OutputRate <= 0 {
		opts.OutputRate = audio.OutputRate
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = DefaultToolTimeout
	}
	if deps.Tools == nil {
		deps.Tools = functions.NewRegistry()
	}
	if deps.Listener == nil {
		deps.Listener = nopListener{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	id := uuid.NewString()
	s := &Session{
		ID:       id,
		opts:     opts,
		dialer:   deps.Dialer,
		graph:    deps.Graph,
		tools:    deps.Tools,
		listener: deps.Listener,
		store:    deps.Store,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("session_id", id),
		acc:      transcript.NewAccumulator(),
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		ctx:      context.Background(),
		state:    StateDisconnected,
		language: opts.Language,
	}
	s.status = s.buildStatus("")
	return s
}

// Run processes events until ctx is done, then tears everything down.
func (s *Session) Run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.done)

	s.publish(s.buildStatus(""))
	for {
		select {
		case <-ctx.Done():
			s.cancelRetry()
			s.teardown(true)
			s.setState(StateDisconnected, "")
			s.forget()
			return
		case fn := <-s.events:
			fn()
		}
	}
}

// Start connects unless a connection is already open or pending.
func (s *Session) Start() {
	s.post(s.handleStart)
}

// Stop ends the session and cancels any pending reconnect.
func (s *Session) Stop() {
	s.post(s.handleStop)
}

// SetLanguage selects the target language for the next start. An empty code
// selects transcription only. A running session is stopped.
func (s *Session) SetLanguage(code string) error {
	if code != "" {
		if _, ok := config.FindLanguage(s.opts.Languages, code); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
		}
	}
	s.post(func() {
		s.language = code
		if s.state.Active() {
			s.logger.Info("🌐 Language changed, stopping session", "language", code)
			s.handleStop()
			return
		}
		s.setState(s.state, s.status.Error)
	})
	return nil
}

// Status returns the latest published status.
func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// History returns the finalized turns so far.
func (s *Session) History() []transcript.Turn {
	return s.acc.History()
}

// Partial returns the in-progress text of both directions.
func (s *Session) Partial() (input, output string) {
	return s.acc.Partial()
}

// Languages lists the selectable target languages.
func (s *Session) Languages() []config.Language {
	return s.opts.Languages
}

func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// guard drops events from connections that were torn down since gen.
func (s *Session) guard(gen uint64, fn func()) func() {
	return func() {
		if gen != s.gen {
			return
		}
		fn()
	}
}

func (s *Session) handleStart() {
	if s.state.Active() {
		s.logger.Debug("Start ignored", "state", s.state)
		return
	}
	s.retries = 0
	s.retryMsg = ""
	s.connect()
}

func (s *Session) handleStop() {
	s.retries = 0
	s.retryMsg = ""
	s.cancelRetry()
	s.teardown(true)
	s.setState(StateDisconnected, "")
}

func (s *Session) connect() {
	if s.opts.APIKey == "" {
		s.metrics.Error("config")
		s.logger.Error("❌ Missing Gemini API key")
		s.setState(StateError, "Missing Gemini API key. Set GEMINI_API_KEY and restart.")
		return
	}

	s.gen++
	gen := s.gen
	s.setState(StateConnecting, "")

	if err := s.graph.Acquire(); err != nil {
		s.fatal("device", fmt.Errorf("audio device unavailable: %w", err))
		return
	}
	if err := s.graph.Connect(s.sendFrame); err != nil {
		s.fatal("device", fmt.Errorf("microphone unavailable: %w", err))
		return
	}

	cfg := s.transportConfig()
	conn, err := s.dialer.Dial(s.ctx, cfg, s.callbacks(gen))
	if err != nil {
		s.fatal("transport", fmt.Errorf("failed to dial live service: %w", err))
		return
	}
	s.conn = conn
	s.logger.Info("🔌 Connecting to live service", "attempt", s.retries, "language", cfg.LanguageCode)
}

func (s *Session) callbacks(gen uint64) transport.Callbacks {
	return transport.Callbacks{
		OnOpen: func() {
			s.post(s.guard(gen, s.handleOpen))
		},
		OnMessage: func(msg *transport.Message) {
			s.post(s.guard(gen, func() { s.handleMessage(gen, msg) }))
		},
		OnClose: func(reason string) {
			s.post(s.guard(gen, func() { s.handleClose(reason) }))
		},
		OnError: func(err error) {
			s.post(s.guard(gen, func() { s.handleError(err) }))
		},
	}
}

func (s *Session) transportConfig() transport.Config {
	lang, translate := config.FindLanguage(s.opts.Languages, s.language)
	cfg := transport.Config{
		Model:             s.opts.Model,
		Voice:             s.opts.Voice,
		SystemInstruction: Instruction(lang, translate),
		Tools:             s.tools.Specs(),
		InputTranscript:   true,
		OutputTranscript:  true,
	}
	if translate {
		cfg.LanguageCode = lang.Code
	}
	return cfg
}

func (s *Session) fatal(kind string, err error) {
	s.metrics.Error(kind)
	s.logger.Error("❌ Session start failed", "error", err)
	s.teardown(false)
	s.setState(StateError, err.Error())
}

func (s *Session) handleOpen() {
	s.retries = 0
	s.retryMsg = ""
	s.live.Store(&liveConn{conn: s.conn})
	s.logger.Info("✅ Live session open")
	s.setState(StateConnected, "")
}

func (s *Session) handleClose(reason string) {
	if s.state == StateDisconnected {
		return
	}
	s.logger.Info("🔌 Live session closed by server", "reason", reason)
	s.handleStop()
}

func (s *Session) handleError(err error) {
	s.metrics.Error("transport")
	if s.retries < s.opts.MaxRetries {
		s.retries++
		s.retryMsg = fmt.Sprintf("Connection error: %v. Retrying (%d/%d)…", err, s.retries, s.opts.MaxRetries)
		s.logger.Warn("⚠️ Live session error, reconnecting",
			"error", err, "attempt", s.retries, "max_attempts", s.opts.MaxRetries, "delay", s.opts.RetryDelay)
		s.teardown(false)
		s.setState(StateConnecting, "")
		s.scheduleRetry()
		return
	}
	s.logger.Error("❌ Live session error, giving up", "error", err, "attempts", s.retries)
	s.retryMsg = ""
	s.teardown(false)
	s.setState(StateError, fmt.Sprintf("Connection failed: %v (max retries reached)", err))
}

func (s *Session) scheduleRetry() {
	s.metrics.Reconnect()
	s.timerSeq++
	seq := s.timerSeq
	s.retryTimer = s.afterFunc(s.opts.RetryDelay, func() {
		s.post(func() {
			if seq != s.timerSeq || s.state != StateConnecting {
				return
			}
			s.retryTimer = nil
			s.connect()
		})
	})
}

func (s *Session) cancelRetry() {
	s.timerSeq++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// handleMessage applies one inbound message: tool calls, interruption,
// transcripts, audio and finally turn completion.
func (s *Session) handleMessage(gen uint64, msg *transport.Message) {
	for _, call := range msg.ToolCalls {
		s.dispatch(gen, call)
	}

	if msg.Interrupted {
		s.acc.Interrupt()
		if player := s.graph.Player(); player != nil {
			n := player.Flush()
			s.logger.Debug("🔇 Interrupted, playback flushed", "handles", n)
		}
		s.metrics.Flushed()
		s.listener.Partial(transcript.RoleModel, "")
	}

	if msg.InputTranscript != "" {
		s.listener.Partial(transcript.RoleUser, s.acc.AppendInput(msg.InputTranscript))
	}
	if msg.OutputTranscript != "" {
		s.listener.Partial(transcript.RoleModel, s.acc.AppendOutput(msg.OutputTranscript))
	}
	if msg.Text != "" {
		s.logger.Debug("Model text", "text", msg.Text)
	}

	if len(msg.Audio) > 0 {
		player := s.graph.Player()
		for _, frame := range msg.Audio {
			s.metrics.FrameReceived()
			buf, err := audio.Decode(frame, s.opts.OutputRate)
			if err != nil {
				s.metrics.DecodeError()
				s.logger.Warn("⚠️ Dropped undecodable audio frame", "error", err)
				continue
			}
			if player == nil {
				continue
			}
			if _, err := player.Schedule(buf); err != nil {
				s.logger.Warn("⚠️ Failed to schedule playback", "error", err)
			}
		}
	}

	if msg.TurnComplete {
		s.publishTurns(s.acc.Commit())
	}
}

// dispatch runs a tool call off the loop. The result is always recorded in
// the transcript but only sent back if the connection is still current.
func (s *Session) dispatch(gen uint64, call transport.ToolCall) {
	s.logger.Info("🔧 Tool call", "name", call.Name, "id", call.ID)
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.ToolTimeout)
	go func() {
		defer cancel()
		res := s.tools.Dispatch(ctx, call)
		s.post(func() { s.finishTool(gen, call, res) })
	}()
}

func (s *Session) finishTool(gen uint64, call transport.ToolCall, res functions.Result) {
	outcome := "ok"
	if res.Image == "" {
		outcome = "failed"
	}
	s.metrics.ToolCall(call.Name, outcome)

	if res.Visible() {
		s.publishTurns([]transcript.Turn{s.acc.Add(transcript.RoleModel, res.Text, res.Image)})
	}

	if gen != s.gen || s.conn == nil {
		s.logger.Debug("Tool result dropped, session moved on", "name", call.Name)
		return
	}
	if err := s.conn.SendToolResult(call.ID, call.Name, res.Output); err != nil {
		s.logger.Warn("⚠️ Failed to send tool result", "name", call.Name, "error", err)
	}
}

// sendFrame is the capture sink. It runs on the capture goroutine.
func (s *Session) sendFrame(frame audio.Frame) {
	lc := s.live.Load()
	if lc == nil {
		return
	}
	if err := lc.conn.Send(frame); err != nil {
		s.logger.Debug("Dropped outbound frame", "error", err)
		return
	}
	s.metrics.FrameSent()
}

// teardown invalidates the current connection, stops capture and playback,
// and finalizes any buffered text. Safe to call repeatedly.
func (s *Session) teardown(full bool) {
	s.gen++
	s.live.Store(nil)
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("⚠️ Failed to close live connection", "error", err)
		}
		s.conn = nil
	}
	s.graph.Teardown(full)
	s.publishTurns(s.acc.Flush())
}

func (s *Session) publishTurns(turns []transcript.Turn) {
	for _, t := range turns {
		s.metrics.Turn(string(t.Role))
		s.listener.Turn(t)
	}
}

func (s *Session) buildStatus(msg string) Status {
	st := Status{
		SessionID:   s.ID,
		State:       s.state,
		MaxAttempts: s.opts.MaxRetries,
		Language:    s.language,
	}
	if s.state == StateConnecting {
		st.Attempt = s.retries
		st.Error = s.retryMsg
	}
	if s.state == StateError {
		st.Error = msg
	}
	return st
}

func (s *Session) setState(state State, msg string) {
	s.state = state
	st := s.buildStatus(msg)

	s.statusMu.Lock()
	changed := st != s.status
	s.status = st
	s.statusMu.Unlock()

	if changed {
		s.publish(st)
	}
}

func (s *Session) publish(st Status) {
	s.metrics.SetState(string(st.State), allStates)
	s.logger.Info("📶 Session status", "state", st.State, "attempt", st.Attempt, "error", st.Error)
	s.listener.StatusChanged(st)

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.store.Save(ctx, st); err != nil {
			s.logger.Warn("⚠️ Failed to store session status", "error", err)
		}
	}
}

func (s *Session) forget() {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Remove(ctx, s.ID); err != nil {
		s.logger.Warn("⚠️ Failed to remove session status", "error", err)
	}
}

type nopListener struct{}

func (nopListener) StatusChanged(Status)            {}
func (nopListener) Partial(transcript.Role, string) {}
func (nopListener) Turn(transcript.Turn)            {}
