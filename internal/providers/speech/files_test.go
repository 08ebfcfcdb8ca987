package speech

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nativebridge/internal/stream"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCopyAssets(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "sub", "b.bin"), "b")
	writeFile(t, filepath.Join(src, "sub", "c.txt"), "c")

	t.Run("all files", func(t *testing.T) {
		dst := t.TempDir()
		n, err := CopyAssets(src, dst)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		data, err := os.ReadFile(filepath.Join(dst, "sub", "b.bin"))
		require.NoError(t, err)
		assert.Equal(t, "b", string(data))
	})

	t.Run("filtered", func(t *testing.T) {
		dst := t.TempDir()
		n, err := CopyAssets(src, dst, "**/*.txt")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoFileExists(t, filepath.Join(dst, "sub", "b.bin"))
	})

	t.Run("nothing matches", func(t *testing.T) {
		_, err := CopyAssets(src, t.TempDir(), "*.model")
		assert.ErrorIs(t, err, ErrNoAssets)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := CopyAssets(filepath.Join(src, "missing"), t.TempDir())
		assert.ErrorIs(t, err, ErrNoAssets)
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := CopyAssets(src, t.TempDir(), "[")
		assert.Error(t, err)
	})
}

func TestGBKRoundTrip(t *testing.T) {
	encoded := EncodeGBK("你好, world")
	assert.Equal(t, []byte{0xc4, 0xe3, 0xba, 0xc3}, encoded[:4])
	assert.Equal(t, "你好, world", DecodeGBK(encoded))
}

func TestNormalizeCustomText(t *testing.T) {
	dir := t.TempDir()

	utf := filepath.Join(dir, "utf8")
	writeFile(t, utf, "世界\n")
	changed, err := NormalizeCustomText(utf)
	require.NoError(t, err)
	assert.True(t, changed)
	data, err := os.ReadFile(utf)
	require.NoError(t, err)
	assert.Equal(t, EncodeGBK("世界\n"), data)

	changed, err = NormalizeCustomText(utf)
	require.NoError(t, err)
	assert.False(t, changed, "already GBK")

	ascii := filepath.Join(dir, "ascii")
	writeFile(t, ascii, "123\n")
	changed, err = NormalizeCustomText(ascii)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = NormalizeCustomText(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func readAll(t *testing.T, s *ReaderSource) string {
	t.Helper()
	require.NoError(t, s.Start())
	var out bytes.Buffer
	buf := make([]byte, 3)
	for {
		n, err := s.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			return out.String()
		}
		require.NoError(t, err)
	}
}

func TestReaderSource(t *testing.T) {
	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write([]byte("compressed line\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "plain", input: []byte("plain line\n"), want: "plain line\n"},
		{name: "short", input: []byte("a"), want: "a"},
		{name: "zstd", input: zbuf.Bytes(), want: "compressed line\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewReaderSource(bytes.NewReader(tt.input))
			assert.Equal(t, tt.want, readAll(t, s))
		})
	}
}

func TestReaderSourceStop(t *testing.T) {
	s := NewReaderSource(bytes.NewReader([]byte("data")))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	_, err := s.Read(make([]byte, 4))
	assert.ErrorIs(t, err, stream.ErrStopped)
}

// readAsync reads once on another goroutine.
func readAsync(s *ReaderSource) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 8))
		done <- err
	}()
	return done
}

func TestReaderSourceStopUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	// no Close method, like stdin
	s := NewReaderSource(io.NopCloser(pr))

	go func() { _, _ = pw.Write([]byte("abcd")) }()
	require.NoError(t, s.Start())
	buf := make([]byte, 8)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))

	pending := readAsync(s)
	select {
	case err := <-pending:
		t.Fatalf("read returned before stop: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, s.Stop())
	select {
	case err := <-pending:
		assert.ErrorIs(t, err, stream.ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("read still blocked after stop")
	}
}

func TestReaderSourceStopDuringStart(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewReaderSource(io.NopCloser(pr))

	started := make(chan error, 1)
	go func() { started <- s.Start() }()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop())

	select {
	case err := <-started:
		assert.ErrorIs(t, err, stream.ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("start still blocked after stop")
	}
}

func TestSharedFeedKeepsInputForNextSource(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	f := newFeed(pr)

	first := newSource(f, true)
	go func() { _, _ = pw.Write([]byte("one\n")) }()
	require.NoError(t, first.Start())
	buf := make([]byte, 8)
	n, err := first.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(buf[:n]))

	pending := readAsync(first)
	require.NoError(t, first.Stop())
	assert.ErrorIs(t, <-pending, stream.ErrStopped)

	second := newSource(f, true)
	go func() { _, _ = pw.Write([]byte("two\n")) }()
	require.NoError(t, second.Start())
	n, err = second.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(buf[:n]))
}

func TestLineEngineRequiresInit(t *testing.T) {
	e := NewLineEngine(nil)
	_, code := e.Start(StartParams())
	assert.Equal(t, LineErrNotInit, code)
	assert.Equal(t, LineErrHandle, e.Write(42, stream.Chunk{}))
	assert.Equal(t, LineErrHandle, e.End(42))
}
