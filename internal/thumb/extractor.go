package thumb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FrameExtractor is the capability behind frame capture. Headless
// environments plug in NoopExtractor and get placeholders only.
type FrameExtractor interface {
	// ExtractFrame returns a JPEG of a representative frame plus the
	// media duration in seconds (0 when unknown).
	ExtractFrame(ctx context.Context, src string) (frame []byte, duration float64, err error)
}

// FFmpegExtractor shells out to ffprobe/ffmpeg, which read remote
// sources directly.
type FFmpegExtractor struct{}

func (FFmpegExtractor) ExtractFrame(ctx context.Context, src string) ([]byte, float64, error) {
	duration := probeDuration(ctx, src)

	// An early but non-zero offset avoids black opening frames.
	offset := 1.0
	if duration > 0 {
		offset = math.Min(duration*0.1, 10)
	}

	tmp, err := os.CreateTemp("", "reelgrid-thumb-*.jpg")
	if err != nil {
		return nil, duration, fmt.Errorf("create temp thumbnail: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(offset, 'f', 2, 64),
		"-i", src,
		"-frames:v", "1",
		"-vf", "scale=320:180:force_original_aspect_ratio=decrease,pad=320:180:(ow-iw)/2:(oh-ih)/2",
		"-q:v", "5",
		"-y",
		tmpPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, duration, fmt.Errorf("ffmpeg: %w: %s", err, string(output))
	}

	frame, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, duration, fmt.Errorf("read frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, duration, errors.New("ffmpeg produced an empty frame")
	}
	return frame, duration, nil
}

func probeDuration(ctx context.Context, src string) float64 {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil || d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return 0
	}
	return d
}

// NoopExtractor always fails, forcing the placeholder path.
type NoopExtractor struct{}

func (NoopExtractor) ExtractFrame(ctx context.Context, src string) ([]byte, float64, error) {
	return nil, 0, errors.New("frame extraction unavailable")
}
