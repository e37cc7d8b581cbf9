package services

import (
	"context"
	"fmt"
)

// ConversationState is the dialogue state of one chat.
type ConversationState int

const (
	StateNone ConversationState = iota
	StateMenu
	StateAwaitingGenerationPrompt
	StateAwaitingGenerationCount
	StateAwaitingVideoUpload
	StateAwaitingImageUpload
	StateAwaitingOffsetX
	StateAwaitingOffsetY
)

func (s ConversationState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateMenu:
		return "menu"
	case StateAwaitingGenerationPrompt:
		return "awaiting_generation_prompt"
	case StateAwaitingGenerationCount:
		return "awaiting_generation_count"
	case StateAwaitingVideoUpload:
		return "awaiting_video_upload"
	case StateAwaitingImageUpload:
		return "awaiting_image_upload"
	case StateAwaitingOffsetX:
		return "awaiting_offset_x"
	case StateAwaitingOffsetY:
		return "awaiting_offset_y"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Menu actions.
const (
	ActionToggleGeneration = "toggle_generation_mode"
	ActionAddImages        = "add_images"
	ActionAddVideo         = "add_video"
	ActionOffsetX          = "adjust_offset_x"
	ActionOffsetY          = "adjust_offset_y"
	ActionPreview          = "preview"
	ActionStart            = "start"
	ActionSettings         = "settings"
	ActionStats            = "stats"
	ActionAdminPanel       = "admin_panel"
	ActionBackMain         = "back_main"

	userCardPrefix = "user_"
)

// Admin side-channel callback prefixes.
const (
	approvePrefix = "approve_"
	declinePrefix = "decline_"
	revokePrefix  = "revoke_"
)

// turn is one event being handled together with the chat's current session.
type turn struct {
	ev      Event
	session ChatSession
}

// stateHandler handles an event in one state and returns the next session.
type stateHandler func(c *SessionController, ctx context.Context, t *turn) ChatSession

// stateTable is the state machine. Callbacks arriving in a non-menu state are
// routed back to the menu first, so only StateMenu handles callbacks.
func stateTable() map[ConversationState]stateHandler {
	return map[ConversationState]stateHandler{
		StateMenu:                     (*SessionController).onMenu,
		StateAwaitingGenerationPrompt: (*SessionController).onGenerationPrompt,
		StateAwaitingGenerationCount:  (*SessionController).onGenerationCount,
		StateAwaitingVideoUpload:      (*SessionController).onVideoUpload,
		StateAwaitingImageUpload:      (*SessionController).onImageUpload,
		StateAwaitingOffsetX:          (*SessionController).onOffsetX,
		StateAwaitingOffsetY:          (*SessionController).onOffsetY,
	}
}
