package services

import (
	"video_uniquifier_bot/internal/models"
)

// Settings panel actions.
const (
	ActionAlphaPlus     = "alpha_plus"
	ActionAlphaMinus    = "alpha_minus"
	ActionImgScalePlus  = "img_plus"
	ActionImgScaleMinus = "img_minus"
	ActionVidScalePlus  = "vid_plus"
	ActionVidScaleMinus = "vid_minus"
	ActionFPSPlus       = "fps_plus"
	ActionFPSMinus      = "fps_minus"
	ActionCountPlus     = "n_plus"
	ActionCountMinus    = "n_minus"
	ActionAspectPrev    = "aspect_prev"
	ActionAspectNext    = "aspect_next"
	ActionAnimateToggle = "animate_toggle"
)

const (
	percentStep = 5
	fpsStep     = 5
	countStep   = 1
)

// AdjustSettings applies one settings-panel action and clamps the result.
// Unknown actions leave s unchanged and report false.
func AdjustSettings(s models.ChatSettings, action string) (models.ChatSettings, bool) {
	switch action {
	case ActionAlphaPlus:
		s.Alpha += percentStep
	case ActionAlphaMinus:
		s.Alpha -= percentStep
	case ActionImgScalePlus:
		s.ImageScalePct += percentStep
	case ActionImgScaleMinus:
		s.ImageScalePct -= percentStep
	case ActionVidScalePlus:
		s.VideoScalePct += percentStep
	case ActionVidScaleMinus:
		s.VideoScalePct -= percentStep
	case ActionFPSPlus:
		s.FPS += fpsStep
	case ActionFPSMinus:
		s.FPS -= fpsStep
	case ActionCountPlus:
		s.VariantCount += countStep
	case ActionCountMinus:
		s.VariantCount -= countStep
	case ActionAspectPrev:
		s.Aspect = s.Aspect.Cycle(-1)
	case ActionAspectNext:
		s.Aspect = s.Aspect.Cycle(1)
	case ActionAnimateToggle:
		s.Animate = !s.Animate
	default:
		return s, false
	}
	return s.Clamp(), true
}

// IsSettingsAction reports whether action is a settings-panel action.
func IsSettingsAction(action string) bool {
	_, ok := AdjustSettings(models.DefaultChatSettings(), action)
	return ok
}
