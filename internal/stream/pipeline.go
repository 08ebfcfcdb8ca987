package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/shared/id"
)

// DefaultChunkSize is the read size used when Config.ChunkSize is unset.
const DefaultChunkSize = 1280

// Directions reported to the recorder for port traffic.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Config configures a Pipeline.
type Config struct {
	Channel   string
	ChunkSize int
	// NewSource opens the data source for a new session.
	NewSource func() (Source, error)
	Processor Processor
	// EndMessage is posted when the source ends without the processor
	// finishing the session itself. A zero message only disconnects.
	EndMessage bridge.PortMessage
	// OnMessage receives messages the script posts on the port.
	OnMessage func(msg bridge.Value)
	Logger    *logging.Logger
	Recorder  bridge.Recorder
}

// Pipeline runs at most one streaming session at a time for a handler.
type Pipeline struct {
	cfg Config
	log *logging.Logger
	rec bridge.Recorder

	mu  sync.Mutex
	cur *session
}

// New creates an idle pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.NewSource == nil {
		return nil, errors.New("stream: NewSource is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("stream: Processor is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewNop()
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = bridge.NopRecorder{}
	}
	return &Pipeline{
		cfg: cfg,
		log: log.Named("stream").With(logging.Channel(cfg.Channel)),
		rec: rec,
	}, nil
}

// State reports whether a session is active.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		return StateListening
	}
	return StateIdle
}

// Accept starts a session on port, or rejects port if one is already active.
// The active session is not affected by a rejection.
func (p *Pipeline) Accept(port bridge.Port) {
	p.mu.Lock()
	if p.cur != nil {
		active := p.cur.id
		p.mu.Unlock()
		p.log.Info("rejecting port, session active", logging.Session(active))
		if err := port.Post(bridge.ErrorMessage(bridge.ErrSessionBusy)); err == nil {
			p.rec.PortMessage(p.cfg.Channel, DirectionOut)
		}
		port.Disconnect()
		return
	}
	s := &session{
		p:    p,
		id:   id.NewSessionID(),
		port: port,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	p.cur = s
	p.mu.Unlock()

	port.SetDelegate(s)
	p.rec.SessionOpened(p.cfg.Channel)
	p.log.Info("session started", logging.Session(s.id))

	go s.send()
	go s.run()
}

// Stop halts the active session's source. The worker then pushes an End
// chunk through the processor, so the session terminates the same way as a
// natural end. Returns false when no session is active.
func (p *Pipeline) Stop() bool {
	p.mu.Lock()
	s := p.cur
	p.mu.Unlock()
	if s == nil {
		return false
	}

	s.mu.Lock()
	if s.closed || s.final {
		s.mu.Unlock()
		return false
	}
	s.stopping = true
	src := s.src
	s.mu.Unlock()

	if src != nil {
		if err := src.Stop(); err != nil {
			p.log.Warn("failed to stop source", zap.Error(err))
		}
	}
	return true
}

// session is one port's lifetime. Output is queued and posted by a single
// sender goroutine, so processors may emit from inside Process.
type session struct {
	p    *Pipeline
	id   id.SessionID
	port bridge.Port

	mu       sync.Mutex
	src      Source
	stopping bool
	final    bool
	closed   bool
	outcome  string
	queue    []bridge.PortMessage

	wake chan struct{}
	quit chan struct{}
}

func (s *session) run() {
	log := s.p.log.With(logging.Session(s.id))
	defer func() {
		if r := recover(); r != nil {
			log.Error("session worker panicked", zap.Any("panic", r))
			s.Fail(fmt.Errorf("panic: %v", r))
		}
	}()

	task, err := s.p.cfg.Processor.Open(s)
	if err != nil {
		s.Fail(err)
		return
	}
	defer func() {
		if err := task.Close(); err != nil {
			log.Warn("failed to close task", zap.Error(err))
		}
	}()

	src, err := s.p.cfg.NewSource()
	if err != nil {
		s.Fail(err)
		return
	}
	if !s.attach(src) {
		return
	}

	if !s.halted() {
		if err := src.Start(); err != nil {
			s.Fail(err)
			return
		}
		if err := s.pump(src, task); err != nil {
			s.Fail(err)
			return
		}
	}

	if s.isClosed() {
		return
	}
	if !s.isFinal() {
		if err := task.Process(Chunk{Status: StatusEnd}); err != nil {
			s.Fail(err)
			return
		}
	}
	if !s.isFinal() {
		s.Finish(s.p.cfg.EndMessage)
	}
}

// pump reads chunks until the source ends or the session is halted.
func (s *session) pump(src Source, task Task) error {
	buf := make([]byte, s.p.cfg.ChunkSize)
	status := StatusBegin
	for !s.halted() {
		n, err := src.Read(buf)
		if n > 0 && !s.halted() {
			data := make([]byte, n)
			copy(data, buf[:n])
			if perr := task.Process(Chunk{Data: data, Status: status}); perr != nil {
				return perr
			}
			status = StatusContinue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrStopped) {
				return nil
			}
			return fmt.Errorf("read source: %w", err)
		}
	}
	return nil
}

func (s *session) attach(src Source) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = src.Stop()
		return false
	}
	s.src = src
	s.mu.Unlock()
	return true
}

// halted reports whether reading should stop: the session was stopped,
// finished, or released.
func (s *session) halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping || s.final || s.closed
}

func (s *session) isFinal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) Emit(msg bridge.PortMessage) { s.enqueue(msg, "") }

func (s *session) Finish(msg bridge.PortMessage) { s.enqueue(msg, OutcomeCompleted) }

func (s *session) Fail(err error) {
	if err == nil {
		err = bridge.ErrNativeCall
	}
	s.p.log.Warn("session failed", logging.Session(s.id), zap.Error(err))
	s.enqueue(bridge.ErrorMessage(err), OutcomeFailed)
}

// enqueue appends msg for the sender. A non-empty outcome marks it final:
// nothing is accepted afterwards and the source is stopped.
func (s *session) enqueue(msg bridge.PortMessage, outcome string) {
	s.mu.Lock()
	if s.final || s.closed {
		s.mu.Unlock()
		return
	}
	if msg.Type != "" {
		s.queue = append(s.queue, msg)
	}
	var src Source
	if outcome != "" {
		s.final = true
		s.outcome = outcome
		src = s.src
	}
	s.mu.Unlock()

	if src != nil {
		_ = src.Stop()
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// send posts queued messages in order. After the final message it releases
// the session and disconnects the port.
func (s *session) send() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		final, closed, outcome := s.final, s.closed, s.outcome
		s.mu.Unlock()

		if closed {
			return
		}
		for _, msg := range batch {
			if err := s.port.Post(msg); err != nil {
				s.p.log.Debug("failed to post port message", zap.Error(err))
				continue
			}
			s.p.rec.PortMessage(s.p.cfg.Channel, DirectionOut)
		}
		if final {
			if s.release(outcome) {
				s.port.Disconnect()
			}
			return
		}

		select {
		case <-s.wake:
		case <-s.quit:
		}
	}
}

// release frees the session's resources once. It reports whether this call
// did the release.
func (s *session) release(outcome string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	src := s.src
	s.mu.Unlock()

	close(s.quit)
	if src != nil {
		_ = src.Stop()
	}

	s.p.mu.Lock()
	if s.p.cur == s {
		s.p.cur = nil
	}
	s.p.mu.Unlock()

	s.p.rec.SessionClosed(s.p.cfg.Channel, outcome)
	s.p.log.Info("session ended", logging.Session(s.id), zap.String("outcome", outcome))
	return true
}

// OnPortMessage forwards script messages to the configured hook.
func (s *session) OnPortMessage(msg bridge.Value) {
	s.p.rec.PortMessage(s.p.cfg.Channel, DirectionIn)
	if s.p.cfg.OnMessage != nil {
		s.p.cfg.OnMessage(msg)
	}
}

// OnDisconnect handles a script-side close: the session is released without
// disconnecting the port again.
func (s *session) OnDisconnect() {
	s.release(OutcomeDisconnected)
}
