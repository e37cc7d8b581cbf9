package services

import "fmt"

type EventKind int

const (
	EventCommand EventKind = iota
	EventText
	EventFile
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventFile:
		return "file"
	case EventCallback:
		return "callback"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FileRef points at a file held by the transport.
type FileRef struct {
	ID   string
	Name string
	Size int64
}

// Event is one inbound chat event, already decoded by the transport.
type Event struct {
	Kind       EventKind
	ChatID     int64
	SenderID   int64
	SenderName string
	Command    string
	Text       string
	Callback   string
	CallbackID string
	MessageID  int
	File       *FileRef
}

type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Keyboard is a grid of inline buttons, one slice per row.
type Keyboard [][]Button

func Row(buttons ...Button) []Button {
	return buttons
}
