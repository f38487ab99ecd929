package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/linuxmatters/glowbeat/internal/errs"
)

const probeTimeout = 15 * time.Second

// Metadata describes the first audio stream of a file.
type Metadata struct {
	SampleRate int
	Channels   int
}

// ffprobePath returns the ffprobe binary that sits alongside ffmpegPath.
func ffprobePath(ffmpegPath string) string {
	dir, base := filepath.Split(ffmpegPath)
	probe := strings.Replace(base, "ffmpeg", "ffprobe", 1)
	if probe == base {
		probe = "ffprobe"
	}
	return filepath.Join(dir, probe)
}

// GetAudioMetadata probes filename with ffprobe.
func GetAudioMetadata(ctx context.Context, ffmpegPath, filename string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobePath(ffmpegPath),
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "default=noprint_wrappers=1",
		filename)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(out.String())
}

// parseProbeOutput reads ffprobe's key=value stream description.
func parseProbeOutput(s string) (*Metadata, error) {
	md := &Metadata{}
	for _, line := range strings.Split(s, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "sample_rate":
			md.SampleRate = n
		case "channels":
			md.Channels = n
		}
	}
	if md.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: no audio stream found", errs.ErrUnsupportedFormat)
	}
	return md, nil
}
