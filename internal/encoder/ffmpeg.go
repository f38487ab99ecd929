// Package encoder turns rendered frames into video files using the ffmpeg
// command-line tool: a silent MJPEG intermediate first, then the final
// Matroska file with the audio muxed in.
package encoder

import (
	"errors"
	"os/exec"
	"strings"
	"sync"
)

// stderrLimit is how much of a failed command's stderr is kept.
const stderrLimit = 4096

// tailBuffer is an io.Writer that keeps only the last limit bytes written.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if len(p) >= b.limit {
		p = p[len(p)-b.limit:]
		b.buf = append(b.buf[:0], p...)
		return n, nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}

// exitCode extracts the process exit code from err, or -1 when the
// process never ran to completion.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// resolveFFmpeg returns the absolute path of the ffmpeg binary.
func resolveFFmpeg(path string) (string, error) {
	if path == "" {
		path = "ffmpeg"
	}
	return exec.LookPath(path)
}
