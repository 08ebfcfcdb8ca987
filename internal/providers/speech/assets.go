package speech

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// ErrNoAssets is returned when the asset directory has nothing to copy.
var ErrNoAssets = errors.New("no engine assets found")

// CopyAssets copies the engine resources under srcDir into destDir,
// keeping relative paths. With patterns, only files whose slash-separated
// relative path matches one of them are copied. Returns the copied count.
func CopyAssets(srcDir, destDir string, patterns ...string) (int, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return 0, fmt.Errorf("invalid asset pattern %q", p)
		}
	}
	if _, err := os.Stat(srcDir); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoAssets, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create work dir: %w", err)
	}

	var (
		mu       sync.Mutex
		copied   int
		firstErr error
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, srcDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return nil
		}
		if !matchAny(patterns, filepath.ToSlash(rel)) {
			return nil
		}

		if err := copyFile(p, filepath.Join(destDir, rel)); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return nil
		}
		mu.Lock()
		copied++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return copied, err
	}
	if firstErr != nil {
		return copied, firstErr
	}
	if copied == 0 {
		return 0, ErrNoAssets
	}
	return copied, nil
}

func matchAny(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
