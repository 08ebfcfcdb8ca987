package speech

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/nativebridge/internal/stream"
)

const (
	// sniffLen covers the gzip and zstd magic numbers. Peeking more would
	// stall live sources until that much data arrived.
	sniffLen = 4
	feedBuf  = 4096
)

// feed reads its reader on its own goroutine so a blocked read can be
// abandoned. Bytes not yet handed out stay queued for the next reader.
type feed struct {
	src  io.Reader
	data chan []byte
	done chan struct{}
	err  error // valid once data is closed

	start sync.Once
	quit  sync.Once

	mu   sync.Mutex
	rest []byte
}

func newFeed(r io.Reader) *feed {
	return &feed{src: r, data: make(chan []byte), done: make(chan struct{})}
}

// stdin is shared by every session reading "-" so a stopped session does
// not swallow input meant for the next one.
var stdin = sync.OnceValue(func() *feed { return newFeed(os.Stdin) })

func (f *feed) run() {
	defer close(f.data)
	for {
		buf := make([]byte, feedBuf)
		n, err := f.src.Read(buf)
		if n > 0 {
			select {
			case f.data <- buf[:n]:
			case <-f.done:
				return
			}
		}
		if err != nil {
			f.err = err
			return
		}
	}
}

// read blocks until data arrives, the reader fails, or stop is closed.
func (f *feed) read(p []byte, stop <-chan struct{}) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.start.Do(func() { go f.run() })

	if len(f.rest) == 0 {
		select {
		case <-stop:
			return 0, stream.ErrStopped
		case b, ok := <-f.data:
			if !ok {
				if f.err == nil {
					return 0, stream.ErrStopped
				}
				return 0, f.err
			}
			f.rest = b
		}
	}
	n := copy(p, f.rest)
	f.rest = f.rest[n:]
	return n, nil
}

func (f *feed) close() { f.quit.Do(func() { close(f.done) }) }

// ReaderSource feeds a session from a reader, such as a recorded capture
// or stdin. Gzip and zstd input is decompressed transparently.
type ReaderSource struct {
	feed   *feed
	shared bool
	closer io.Closer
	stop   chan struct{}
	halt   sync.Once

	mu      sync.Mutex
	r       io.Reader
	dec     io.Closer
	stopped bool
}

// NewReaderSource wraps r. If r is an io.Closer it is closed on Stop.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := newSource(newFeed(r), false)
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func newSource(f *feed, shared bool) *ReaderSource {
	return &ReaderSource{feed: f, shared: shared, stop: make(chan struct{})}
}

// OpenSource opens path as a source; "-" reads stdin.
func OpenSource(path string) (*ReaderSource, error) {
	if path == "" || path == "-" {
		return newSource(stdin(), true), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open speech source: %w", err)
	}
	return NewReaderSource(f), nil
}

// stopReader is the feed as seen by one source.
type stopReader struct{ s *ReaderSource }

func (r stopReader) Read(p []byte) (int, error) { return r.s.feed.read(p, r.s.stop) }

// Start sniffs the stream's format. It blocks until the first bytes arrive
// or Stop is called.
func (s *ReaderSource) Start() error {
	br := bufio.NewReader(stopReader{s})
	head, err := br.Peek(sniffLen)
	if errors.Is(err, stream.ErrStopped) {
		return stream.ErrStopped
	}
	mtype := mimetype.Detect(head)

	var (
		r   io.Reader = br
		dec io.Closer
	)
	switch {
	case mtype.Is("application/gzip"):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("gzip source: %w", err)
		}
		r, dec = gz, gz
	case mtype.Is("application/zstd"):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return fmt.Errorf("zstd source: %w", err)
		}
		rc := zr.IOReadCloser()
		r, dec = rc, rc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		if dec != nil {
			dec.Close()
		}
		return stream.ErrStopped
	}
	s.r, s.dec = r, dec
	return nil
}

func (s *ReaderSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	r, stopped := s.r, s.stopped
	s.mu.Unlock()
	if stopped {
		return 0, stream.ErrStopped
	}
	if r == nil {
		return 0, fmt.Errorf("source not started")
	}
	n, err := r.Read(p)
	if err != nil && s.isStopped() {
		return n, stream.ErrStopped
	}
	return n, err
}

func (s *ReaderSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop ends reading and unblocks a pending Read. Safe to call more than once.
func (s *ReaderSource) Stop() error {
	var err error
	s.halt.Do(func() {
		s.mu.Lock()
		s.stopped = true
		dec := s.dec
		s.mu.Unlock()

		close(s.stop)
		if dec != nil {
			dec.Close()
		}
		if s.shared {
			return
		}
		s.feed.close()
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
