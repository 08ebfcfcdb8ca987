package speech

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/stream"
)

// Config configures the speech handler.
type Config struct {
	// WorkDir holds the engine's model and custom text files.
	WorkDir string
	// AssetDir is copied into WorkDir on init when set.
	AssetDir      string
	AssetPatterns []string
	ChunkSize     int
	NewSource     func() (stream.Source, error)
	Logger        *logging.Logger
	Recorder      bridge.Recorder
}

// Iflytek is registered as "iflytek". One-shot actions prepare the engine;
// a port connection runs one dictation session.
type Iflytek struct {
	engine   Engine
	cfg      Config
	pipeline *stream.Pipeline
	log      *logging.Logger

	mu     sync.Mutex
	sink   stream.Sink
	handle Handle
	loaded bool
}

// New creates the handler over engine and registers itself as its listener.
func New(engine Engine, cfg Config) (*Iflytek, error) {
	if engine == nil {
		return nil, errors.New("speech: engine is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewNop()
	}
	r := &Iflytek{engine: engine, cfg: cfg, log: log.Named("speech")}

	p, err := stream.New(stream.Config{
		Channel:   "iflytek",
		ChunkSize: cfg.ChunkSize,
		NewSource: cfg.NewSource,
		Processor: r,
		OnMessage: func(msg bridge.Value) {
			r.log.Debug("ignoring port message", zap.Stringer("message", msg))
		},
		Logger:   log,
		Recorder: cfg.Recorder,
	})
	if err != nil {
		return nil, err
	}
	r.pipeline = p
	engine.SetListener(r)
	return r, nil
}

// Actions implements bridge.Handler.
func (r *Iflytek) Actions() []bridge.Action {
	return []bridge.Action{
		bridge.Async3("init", [3]string{"appId", "apiKey", "apiSecret"}, r.Init),
		bridge.Method0("loadCustomText", r.LoadCustomText),
		bridge.Proc0("unloadCustomText", r.UnloadCustomText),
		bridge.Method0("stopListening", r.StopListening),
	}
}

// Accept implements bridge.Streamer.
func (r *Iflytek) Accept(port bridge.Port) {
	r.pipeline.Accept(port)
}

// State reports whether a dictation session is running.
func (r *Iflytek) State() stream.State {
	return r.pipeline.State()
}

// Init prepares the work directory and initialises the engine on a worker.
// The future completes with 0.
func (r *Iflytek) Init(appID, apiKey, apiSecret string) *bridge.Future {
	return bridge.Go(func() (any, error) {
		if r.cfg.AssetDir != "" {
			n, err := CopyAssets(r.cfg.AssetDir, r.cfg.WorkDir, r.cfg.AssetPatterns...)
			if err != nil {
				r.log.Warn("failed to copy engine assets", zap.String("from", r.cfg.AssetDir), zap.Error(err))
			} else {
				r.log.Debug("engine assets copied", zap.Int("files", n))
			}
		}

		err := r.engine.Init(Credentials{
			AppID:     appID,
			APIKey:    apiKey,
			APISecret: apiSecret,
			WorkDir:   r.cfg.WorkDir,
			Ability:   AbilityID,
		})
		if err != nil {
			r.log.Error("engine init failed", zap.Error(err))
			var ce *CodeError
			if !errors.As(err, &ce) {
				err = &CodeError{Stage: "INIT", Code: -1}
			}
			return nil, err
		}

		if ok, _ := r.LoadCustomText(); !ok {
			r.log.Warn("custom text not loaded")
		}
		return 0, nil
	})
}

// LoadCustomText loads the post-processing resources from the work dir.
func (r *Iflytek) LoadCustomText() (bool, error) {
	texts := CustomTexts(r.cfg.WorkDir)
	for _, t := range texts {
		if changed, err := NormalizeCustomText(t.Path); err != nil {
			r.log.Debug("custom text not normalised", zap.String("key", t.Key), zap.Error(err))
		} else if changed {
			r.log.Info("custom text converted to GBK", zap.String("key", t.Key))
		}
	}

	ok := r.engine.LoadData(texts) == 0
	r.mu.Lock()
	if ok {
		r.loaded = true
	}
	r.mu.Unlock()
	return ok, nil
}

// UnloadCustomText releases the post-processing resources.
func (r *Iflytek) UnloadCustomText() error {
	if code := r.engine.UnloadData(CustomNotReplace, 0); code != 0 {
		r.log.Warn("unload failed", zap.String("key", CustomNotReplace), zap.Int("code", code))
	}
	if code := r.engine.UnloadData(CustomReplace, 1); code != 0 {
		r.log.Warn("unload failed", zap.String("key", CustomReplace), zap.Int("code", code))
	}
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
	return nil
}

// CustomTextLoaded reports whether the last load succeeded.
func (r *Iflytek) CustomTextLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// StopListening ends the active session. Returns false if none is running.
func (r *Iflytek) StopListening() (bool, error) {
	return r.pipeline.Stop(), nil
}

// Open implements stream.Processor: it starts one engine session.
func (r *Iflytek) Open(sink stream.Sink) (stream.Task, error) {
	h, code := r.engine.Start(StartParams())
	if code != 0 {
		return nil, fmt.Errorf("listening failed: %d", code)
	}
	r.mu.Lock()
	r.sink, r.handle = sink, h
	r.mu.Unlock()
	return &task{r: r, sink: sink, h: h}, nil
}

func (r *Iflytek) detach(t *task) {
	r.mu.Lock()
	if r.handle == t.h {
		r.sink = nil
		r.handle = 0
	}
	r.mu.Unlock()
}

func (r *Iflytek) current(h Handle) stream.Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil || h != r.handle {
		return nil
	}
	return r.sink
}

// OnResult implements Listener.
func (r *Iflytek) OnResult(h Handle, out []Response) {
	sink := r.current(h)
	if sink == nil {
		return
	}
	data := make(map[string]any, len(out)+1)
	end := false
	for _, resp := range out {
		if resp.Status == stream.StatusEnd {
			end = true
		}
		if resp.Key != "" {
			data[resp.Key] = DecodeGBK(resp.Value)
		}
	}
	data["end"] = end
	sink.Emit(bridge.ResultMessage(data))
}

// OnEvent implements Listener. Terminal events end the session.
func (r *Iflytek) OnEvent(h Handle, event int, eventData []Response) {
	sink := r.current(h)
	if sink == nil {
		return
	}
	fields := make(map[string]any, len(eventData))
	for _, resp := range eventData {
		if resp.Key != "" {
			fields[resp.Key] = DecodeGBK(resp.Value)
		}
	}
	msg := bridge.EventMessage(map[string]any{
		"event":     event,
		"eventData": []any{fields},
	})
	if TerminalEvent(event) {
		sink.Finish(msg)
		return
	}
	sink.Emit(msg)
}

// OnError implements Listener.
func (r *Iflytek) OnError(h Handle, code int, msg string) {
	sink := r.current(h)
	if sink == nil {
		return
	}
	sink.Fail(fmt.Errorf("errorCode: %d, msg: %s,", code, msg))
}

// task feeds one session's chunks to the engine.
type task struct {
	r     *Iflytek
	sink  stream.Sink
	h     Handle
	ended bool
}

func (t *task) Process(c stream.Chunk) error {
	eng := t.r.engine
	if c.Status == stream.StatusEnd {
		defer t.end()
	}
	// a native code fails the session; the pipeline posts one error and tears down
	if code := eng.Write(t.h, c); code != 0 {
		return fmt.Errorf("failed to write recorded data: %d", code)
	}
	if code := eng.Read(t.h); code != 0 {
		return fmt.Errorf("failed to read response data: %d", code)
	}
	return nil
}

func (t *task) end() {
	if t.ended {
		return
	}
	t.ended = true
	if code := t.r.engine.End(t.h); code != 0 {
		t.r.log.Debug("engine end failed", zap.Int("code", code))
	}
}

func (t *task) Close() error {
	t.end()
	t.r.detach(t)
	return nil
}
