package services

import (
	"fmt"
	"strconv"

	"video_uniquifier_bot/internal/models"
)

type RenderKind string

const (
	RenderPreview RenderKind = "preview"
	RenderVideo   RenderKind = "video"
)

type Size struct {
	Width  int
	Height int
}

// Motion describes how the image overlay moves over the canvas.
type Motion struct {
	Animated bool
	Duration float64
}

// Expr returns the overlay x and y expressions. An animated overlay travels
// linearly from the top-left to the bottom-right corner over Duration
// seconds; otherwise it sits in the centre.
func (m Motion) Expr() (x, y string) {
	if m.Animated && m.Duration > 0 {
		d := strconv.FormatFloat(m.Duration, 'f', -1, 64)
		return "(main_w-overlay_w)*t/" + d, "(main_h-overlay_h)*t/" + d
	}
	return "(main_w-overlay_w)/2", "(main_h-overlay_h)/2"
}

// Encoding holds the fixed output settings of a video render.
type Encoding struct {
	VideoCodec string
	Preset     string
	CRF        int
	AudioCodec string
}

var DefaultEncoding = Encoding{
	VideoCodec: "libx264",
	Preset:     "ultrafast",
	CRF:        20,
	AudioCodec: "copy",
}

// CompositionRequest is the declarative input of a Renderer: a solid canvas,
// the image overlay on it, and the alpha-blended video overlay on top.
type CompositionRequest struct {
	Kind       RenderKind
	Canvas     Size
	Background string
	ImagePath  string
	ImageBox   Size
	VideoPath  string
	VideoWidth int
	Alpha      float64
	Motion     Motion
	OffsetX    int
	OffsetY    int
	FPS        int
	Encoding   Encoding
}

// VideoPosition returns the video overlay x and y expressions: canvas centre
// plus the configured offsets.
func (r CompositionRequest) VideoPosition() (x, y string) {
	return fmt.Sprintf("(main_w-overlay_w)/2%+d", r.OffsetX), fmt.Sprintf("(main_h-overlay_h)/2%+d", r.OffsetY)
}

// PlanComposition turns settings and a chosen image into a render request.
// duration is the probed video length in seconds; 0 disables animation.
func PlanComposition(s models.ChatSettings, imagePath string, duration float64, kind RenderKind) CompositionRequest {
	s = s.Clamp()
	w, h := s.Aspect.Canvas()

	video := ""
	if s.VideoSource != nil {
		video = *s.VideoSource
	}

	return CompositionRequest{
		Kind:       kind,
		Canvas:     Size{Width: w, Height: h},
		Background: "black",
		ImagePath:  imagePath,
		ImageBox:   Size{Width: w * s.ImageScalePct / 100, Height: h * s.ImageScalePct / 100},
		VideoPath:  video,
		VideoWidth: w * s.VideoScalePct / 100,
		Alpha:      1 - float64(s.Alpha)/100,
		Motion:     Motion{Animated: s.Animate && duration > 0, Duration: duration},
		OffsetX:    s.OffsetX,
		OffsetY:    s.OffsetY,
		FPS:        s.FPS,
		Encoding:   DefaultEncoding,
	}
}
