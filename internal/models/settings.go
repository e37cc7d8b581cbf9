package models

import (
	"encoding/json"
	"fmt"
)

// Aspect is the output canvas ratio.
type Aspect string

const (
	Aspect9x16 Aspect = "9:16"
	Aspect16x9 Aspect = "16:9"
	Aspect4x3  Aspect = "4:3"
)

// Aspects lists the supported ratios in cycling order.
var Aspects = []Aspect{Aspect9x16, Aspect16x9, Aspect4x3}

// Canvas returns the fixed canvas dimensions for the ratio. Unknown values
// fall back to 9:16.
func (a Aspect) Canvas() (width, height int) {
	switch a {
	case Aspect16x9:
		return 1920, 1080
	case Aspect4x3:
		return 1024, 768
	default:
		return 1080, 1920
	}
}

// Valid reports whether a is one of the supported ratios.
func (a Aspect) Valid() bool {
	for _, v := range Aspects {
		if v == a {
			return true
		}
	}
	return false
}

// Cycle moves dir steps (usually +1 or -1) through Aspects, wrapping around.
func (a Aspect) Cycle(dir int) Aspect {
	idx := 0
	for i, v := range Aspects {
		if v == a {
			idx = i
			break
		}
	}
	n := len(Aspects)
	return Aspects[((idx+dir)%n+n)%n]
}

// Bounds for the clamped settings fields.
const (
	AlphaMin        = 0
	AlphaMax        = 100
	ScaleMin        = 10
	ScaleMax        = 300
	FPSMin          = 1
	FPSMax          = 60
	VariantCountMin = 1
	VariantCountMax = 10
)

// ChatSettings is the per-chat configuration record.
type ChatSettings struct {
	VideoSource       *string  `json:"video_source"`
	ImageSources      []string `json:"image_sources"`
	Alpha             int      `json:"alpha"`
	ImageScalePct     int      `json:"image_scale_pct"`
	VideoScalePct     int      `json:"video_scale_pct"`
	OffsetX           int      `json:"offset_x"`
	OffsetY           int      `json:"offset_y"`
	Aspect            Aspect   `json:"aspect"`
	FPS               int      `json:"fps"`
	VariantCount      int      `json:"variant_count"`
	Animate           bool     `json:"animate"`
	UseGenerationMode bool     `json:"use_generation_mode"`
}

// DefaultChatSettings returns the settings a chat starts with.
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		ImageSources:  []string{},
		Alpha:         0,
		ImageScalePct: 150,
		VideoScalePct: 100,
		Aspect:        Aspect9x16,
		FPS:           30,
		VariantCount:  1,
	}
}

// HasMedia reports whether both a video and at least one image are set.
func (s ChatSettings) HasMedia() bool {
	return s.VideoSource != nil && *s.VideoSource != "" && len(s.ImageSources) > 0
}

// Clamp forces every bounded field into its declared range.
func (s ChatSettings) Clamp() ChatSettings {
	s.Alpha = clamp(s.Alpha, AlphaMin, AlphaMax)
	s.ImageScalePct = clamp(s.ImageScalePct, ScaleMin, ScaleMax)
	s.VideoScalePct = clamp(s.VideoScalePct, ScaleMin, ScaleMax)
	s.FPS = clamp(s.FPS, FPSMin, FPSMax)
	s.VariantCount = clamp(s.VariantCount, VariantCountMin, VariantCountMax)
	if !s.Aspect.Valid() {
		s.Aspect = Aspect9x16
	}
	if s.ImageSources == nil {
		s.ImageSources = []string{}
	}
	return s
}

func (s ChatSettings) String() string {
	video := "-"
	if s.VideoSource != nil {
		video = *s.VideoSource
	}
	return fmt.Sprintf("video=%s images=%d alpha=%d img=%d%% vid=%d%% off=(%d,%d) aspect=%s fps=%d n=%d animate=%t gen=%t",
		video, len(s.ImageSources), s.Alpha, s.ImageScalePct, s.VideoScalePct,
		s.OffsetX, s.OffsetY, s.Aspect, s.FPS, s.VariantCount, s.Animate, s.UseGenerationMode)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// storedSettings mirrors ChatSettings with every field optional so that keys
// missing from an older document can be told apart from zero values.
type storedSettings struct {
	VideoSource       *string   `json:"video_source"`
	ImageSources      *[]string `json:"image_sources"`
	Alpha             *int      `json:"alpha"`
	ImageScalePct     *int      `json:"image_scale_pct"`
	VideoScalePct     *int      `json:"video_scale_pct"`
	OffsetX           *int      `json:"offset_x"`
	OffsetY           *int      `json:"offset_y"`
	Aspect            *Aspect   `json:"aspect"`
	FPS               *int      `json:"fps"`
	VariantCount      *int      `json:"variant_count"`
	Animate           *bool     `json:"animate"`
	UseGenerationMode *bool     `json:"use_generation_mode"`
}

// DecodeChatSettings parses a stored document and fills every missing field
// from DefaultChatSettings. Out-of-range values are clamped.
func DecodeChatSettings(data []byte) (ChatSettings, error) {
	s := DefaultChatSettings()
	var doc storedSettings
	if err := json.Unmarshal(data, &doc); err != nil {
		return s, fmt.Errorf("decode chat settings: %w", err)
	}

	if doc.VideoSource != nil {
		s.VideoSource = doc.VideoSource
	}
	if doc.ImageSources != nil {
		s.ImageSources = *doc.ImageSources
	}
	setInt(&s.Alpha, doc.Alpha)
	setInt(&s.ImageScalePct, doc.ImageScalePct)
	setInt(&s.VideoScalePct, doc.VideoScalePct)
	setInt(&s.OffsetX, doc.OffsetX)
	setInt(&s.OffsetY, doc.OffsetY)
	setInt(&s.FPS, doc.FPS)
	setInt(&s.VariantCount, doc.VariantCount)
	if doc.Aspect != nil {
		s.Aspect = *doc.Aspect
	}
	if doc.Animate != nil {
		s.Animate = *doc.Animate
	}
	if doc.UseGenerationMode != nil {
		s.UseGenerationMode = *doc.UseGenerationMode
	}
	return s.Clamp(), nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
