package speech

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/stream"
)

// Error codes returned by LineEngine.
const (
	LineErrCredentials = 10001
	LineErrNotInit     = 10002
	LineErrHandle      = 10003
	LineErrLoad        = 10004
)

// EventEnd is the terminal event LineEngine raises when a session ends.
const EventEnd = 0

// LineEngine "recognizes" newline-separated UTF-8 text: every complete line
// written to a session becomes one result. It lets the streaming path run
// without the vendor engine. A loaded replace list ("from=to" per line) is
// applied to the recognized text.
type LineEngine struct {
	mu       sync.Mutex
	listener Listener
	creds    *Credentials
	next     Handle
	sessions map[Handle]*lineSession
	replacer *strings.Replacer
	loaded   map[string]bool
	log      *logging.Logger
}

type lineSession struct {
	buf     []byte
	pending []Response
}

// NewLineEngine creates an uninitialised engine.
func NewLineEngine(log *logging.Logger) *LineEngine {
	if log == nil {
		log = logging.NewNop()
	}
	return &LineEngine{
		sessions: make(map[Handle]*lineSession),
		loaded:   make(map[string]bool),
		log:      log.Named("line-engine"),
	}
}

func (e *LineEngine) Init(creds Credentials) error {
	if creds.AppID == "" || creds.APIKey == "" || creds.APISecret == "" {
		return &CodeError{Stage: "AUTH", Code: LineErrCredentials}
	}
	e.mu.Lock()
	e.creds = &creds
	e.mu.Unlock()
	e.log.Info("engine initialised", zap.String("app_id", creds.AppID), zap.String("work_dir", creds.WorkDir))
	return nil
}

func (e *LineEngine) SetListener(l Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

func (e *LineEngine) LoadData(texts []CustomText) int {
	var pairs []string
	for _, t := range texts {
		data, err := os.ReadFile(t.Path)
		if err != nil {
			e.log.Warn("custom text unavailable", zap.String("key", t.Key), zap.Error(err))
			return LineErrLoad
		}
		if t.Key == CustomReplace {
			pairs = append(pairs, parseReplaceList(DecodeGBK(data))...)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range texts {
		e.loaded[t.Key] = true
	}
	if len(pairs) > 0 {
		e.replacer = strings.NewReplacer(pairs...)
	}
	return 0
}

func (e *LineEngine) UnloadData(key string, _ int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.loaded, key)
	if key == CustomReplace {
		e.replacer = nil
	}
	return 0
}

// Loaded reports whether the custom text key is loaded.
func (e *LineEngine) Loaded(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded[key]
}

func (e *LineEngine) Start(Params) (Handle, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.creds == nil {
		return 0, LineErrNotInit
	}
	e.next++
	e.sessions[e.next] = &lineSession{}
	return e.next, 0
}

func (e *LineEngine) Write(h Handle, c stream.Chunk) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[h]
	if !ok {
		return LineErrHandle
	}

	s.buf = append(s.buf, c.Data...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(s.buf[:i]))
		s.buf = s.buf[i+1:]
		if line != "" {
			s.pending = append(s.pending, e.response(line, stream.StatusContinue))
		}
	}
	if c.Status == stream.StatusEnd {
		rest := strings.TrimSpace(string(s.buf))
		s.buf = nil
		s.pending = append(s.pending, e.response(rest, stream.StatusEnd))
	}
	return 0
}

func (e *LineEngine) response(text string, status stream.Status) Response {
	if e.replacer != nil {
		text = e.replacer.Replace(text)
	}
	return Response{Key: "plain", Value: EncodeGBK(text), Status: status}
}

func (e *LineEngine) Read(h Handle) int {
	e.mu.Lock()
	s, ok := e.sessions[h]
	if !ok {
		e.mu.Unlock()
		return LineErrHandle
	}
	pending := s.pending
	s.pending = nil
	l := e.listener
	e.mu.Unlock()

	if l == nil {
		return 0
	}
	for _, r := range pending {
		l.OnResult(h, []Response{r})
	}
	return 0
}

func (e *LineEngine) End(h Handle) int {
	e.mu.Lock()
	_, ok := e.sessions[h]
	delete(e.sessions, h)
	l := e.listener
	e.mu.Unlock()
	if !ok {
		return LineErrHandle
	}
	if l != nil {
		l.OnEvent(h, EventEnd, []Response{{Key: "reason", Value: []byte("end")}})
	}
	return 0
}

func parseReplaceList(text string) []string {
	var pairs []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		from, to, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || from == "" {
			continue
		}
		pairs = append(pairs, from, to)
	}
	return pairs
}
