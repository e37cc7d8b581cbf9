package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/metrics"

	"github.com/rs/zerolog/log"
)

// FFmpegRenderer runs ffmpeg for renders and ffprobe for durations.
type FFmpegRenderer struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegRenderer(ffmpegPath, ffprobePath string) *FFmpegRenderer {
	return &FFmpegRenderer{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// BuildFFmpegArgs translates a CompositionRequest into ffmpeg arguments.
func BuildFFmpegArgs(req CompositionRequest, outputPath string) []string {
	mx, my := req.Motion.Expr()
	vx, vy := req.VideoPosition()
	alpha := strconv.FormatFloat(req.Alpha, 'f', -1, 64)

	filter := fmt.Sprintf("[1:v]scale=%d:%d,format=rgba[img];", req.ImageBox.Width, req.ImageBox.Height) +
		fmt.Sprintf("[2:v]scale=%d:-1,format=rgba,colorchannelmixer=aa=%s[vid];", req.VideoWidth, alpha) +
		fmt.Sprintf("[0:v][img]overlay=x='%s':y='%s'[tmp];", mx, my) +
		fmt.Sprintf("[tmp][vid]overlay=x='%s':y='%s':shortest=1", vx, vy)

	args := []string{
		"-y",
		"-f", "lavfi", "-i", fmt.Sprintf("color=%s:s=%dx%d", req.Background, req.Canvas.Width, req.Canvas.Height),
		"-i", req.ImagePath,
		"-i", req.VideoPath,
		"-filter_complex", filter,
	}

	if req.Kind == RenderPreview {
		return append(args, "-frames:v", "1", outputPath)
	}
	return append(args,
		"-c:v", req.Encoding.VideoCodec,
		"-preset", req.Encoding.Preset,
		"-crf", strconv.Itoa(req.Encoding.CRF),
		"-r", strconv.Itoa(req.FPS),
		"-c:a", req.Encoding.AudioCodec,
		outputPath,
	)
}

func (r *FFmpegRenderer) Render(ctx context.Context, req CompositionRequest, outputPath string) error {
	kind := string(req.Kind)
	start := time.Now()
	log.Debug().Str("kind", kind).Str("output", outputPath).Msg("starting ffmpeg")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.ffmpegPath, BuildFFmpegArgs(req, outputPath)...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.RenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RendersTotal.WithLabelValues(kind, "error").Inc()
		return apperrors.NewExternalToolError("ffmpeg failed", fmt.Errorf("%w: %s", err, tail(stderr.String(), 500)))
	}
	metrics.RendersTotal.WithLabelValues(kind, "ok").Inc()
	return nil
}

// ProbeDuration asks ffprobe for the container duration. Any failure yields 0.
func (r *FFmpegRenderer) ProbeDuration(ctx context.Context, path string) float64 {
	out, err := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("ffprobe failed")
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
