package system

import (
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
)

const (
	defaultLogLimit = 100
	journalSize     = 1000
)

var errEmptyMessage = errors.New("message required")

// System exposes shell information and a journal of script log lines.
type System struct {
	started time.Time
	version string
	entries *journal[LogEntry]
	log     *logging.Logger
	now     func() time.Time
}

// LogEntry is one message logged from script.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Info describes the running shell.
type Info struct {
	Version       string  `json:"version"`
	GoVersion     string  `json:"go_version"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	CPUs          int     `json:"cpus"`
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB uint64  `json:"memory_alloc"`
	MemorySysMB   uint64  `json:"memory_sys"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Clock is the reply to time().
type Clock struct {
	Timestamp int64  `json:"timestamp"`
	ISO       string `json:"iso"`
	UnixMS    int64  `json:"unix_ms"`
}

// Pong is the reply to ping().
type Pong struct {
	Pong      bool  `json:"pong"`
	Timestamp int64 `json:"timestamp"`
}

// New creates the system handler. Script log lines go to log under "script".
func New(version string, log *logging.Logger) *System {
	if log == nil {
		log = logging.NewNop()
	}
	return &System{
		started: time.Now(),
		version: version,
		entries: newJournal[LogEntry](journalSize),
		log:     log.Named("script"),
		now:     time.Now,
	}
}

func (s *System) Actions() []bridge.Action {
	return []bridge.Action{
		bridge.Method0("info", s.Info),
		bridge.Method0("time", s.Time),
		bridge.Method0("ping", s.Ping),
		bridge.Method2("log", [2]string{"message", "level"}, s.Log),
		bridge.Method2("getLogs", [2]string{"limit", "level"}, s.GetLogs),
	}
}

func (s *System) Info() (Info, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	const mb = 1 << 20
	return Info{
		Version:       s.version,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CPUs:          runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: m.Alloc / mb,
		MemorySysMB:   m.Sys / mb,
		UptimeSeconds: time.Since(s.started).Seconds(),
	}, nil
}

func (s *System) Time() (Clock, error) {
	now := s.now()
	return Clock{Timestamp: now.Unix(), ISO: now.Format(time.RFC3339), UnixMS: now.UnixMilli()}, nil
}

func (s *System) Ping() (Pong, error) {
	return Pong{Pong: true, Timestamp: s.now().Unix()}, nil
}

// Log journals a script message and forwards it to the shell log at the
// matching zap level. Unknown levels are journaled as given and logged at info.
func (s *System) Log(message string, level *string) (bool, error) {
	if message == "" {
		return false, errEmptyMessage
	}
	name := "info"
	if level != nil && *level != "" {
		name = *level
	}
	s.entries.append(LogEntry{Timestamp: s.now(), Level: name, Message: message})

	lvl, err := logging.ParseLevel(name)
	if err != nil {
		s.log.Info(message, zap.String("level", name))
		return true, nil
	}
	// scripts may not panic or exit the shell
	lvl = min(lvl, zapcore.ErrorLevel)
	if ce := s.log.Check(lvl, message); ce != nil {
		ce.Write()
	}
	return true, nil
}

// GetLogs returns up to limit journaled entries, newest first.
func (s *System) GetLogs(limit *int, level *string) ([]LogEntry, error) {
	n := defaultLogLimit
	if limit != nil && *limit > 0 {
		n = *limit
	}
	var keep func(LogEntry) bool
	if level != nil && *level != "" {
		want := *level
		keep = func(e LogEntry) bool { return e.Level == want }
	}
	return s.entries.latest(n, keep), nil
}
