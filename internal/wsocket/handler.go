package wsocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"video_uniquifier_bot/internal/services"
	"video_uniquifier_bot/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Frame types.
const (
	TypeCommand  = "command"
	TypeText     = "text"
	TypeCallback = "callback"
	TypeFile     = "file"
	TypeEdit     = "edit"
	TypePhoto    = "photo"
	TypeDocument = "document"
	TypeSticker  = "sticker"
	TypeError    = "error"
)

// Message is one websocket frame in either direction. Data carries base64
// file content.
type Message struct {
	Type      string            `json:"type"`
	ChatID    int64             `json:"chatId,omitempty"`
	MessageID int               `json:"messageId,omitempty"`
	Content   string            `json:"content,omitempty"`
	Name      string            `json:"name,omitempty"`
	Data      string            `json:"data,omitempty"`
	Keyboard  services.Keyboard `json:"keyboard,omitempty"`
}

// Handler is a development chat transport: each connection acts as one chat
// identified by the chat_id query parameter.
type Handler struct {
	ctx            context.Context
	events         services.EventHandler
	messenger      *Messenger
	broker         *broker.Broker
	upgrader       websocket.Upgrader
	maxUploadBytes int64
}

// NewHandler creates the transport. Events are handled under ctx so that a
// closed connection does not abort work already started for its chat.
func NewHandler(ctx context.Context, events services.EventHandler, messenger *Messenger, b *broker.Broker, upgrader websocket.Upgrader, maxUploadBytes int64) *Handler {
	return &Handler{
		ctx:            ctx,
		events:         events,
		messenger:      messenger,
		broker:         b,
		upgrader:       upgrader,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		http.Error(w, "chat_id query parameter is required", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	h.messenger.setName(chatID, name)
	logger := log.With().Int64("chat_id", chatID).Logger()
	logger.Info().Msg("websocket client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topic := broker.ChatTopic(chatID)
	outbound := h.broker.Subscribe(topic)
	defer h.broker.Unsubscribe(topic, outbound)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					logger.Warn().Err(err).Msg("websocket write failed")
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info().Err(err).Msg("websocket client disconnected")
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("malformed websocket frame")
			continue
		}
		ev, err := h.toEvent(chatID, name, msg)
		if err != nil {
			h.broker.Publish(topic, Message{Type: TypeError, ChatID: chatID, Content: err.Error()})
			continue
		}
		h.events.Handle(h.ctx, ev)
	}
}

type frameError string

func (e frameError) Error() string { return string(e) }

// toEvent converts an inbound frame into a chat event.
func (h *Handler) toEvent(chatID int64, name string, msg Message) (services.Event, error) {
	ev := services.Event{ChatID: chatID, SenderID: chatID, SenderName: name, MessageID: msg.MessageID}
	switch msg.Type {
	case TypeCommand:
		ev.Kind = services.EventCommand
		ev.Command = strings.TrimPrefix(strings.TrimSpace(msg.Content), "/")
	case TypeText:
		if cmd, ok := strings.CutPrefix(strings.TrimSpace(msg.Content), "/"); ok && cmd != "" {
			ev.Kind = services.EventCommand
			ev.Command = strings.Fields(cmd)[0]
			return ev, nil
		}
		ev.Kind = services.EventText
		ev.Text = msg.Content
	case TypeCallback:
		ev.Kind = services.EventCallback
		ev.Callback = msg.Content
	case TypeFile:
		if int64(base64.StdEncoding.DecodedLen(len(msg.Data))) > h.maxUploadBytes+3 {
			return ev, frameError("file too large")
		}
		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return ev, frameError("file data must be base64")
		}
		ref, err := h.messenger.stage(msg.Name, data)
		if err != nil {
			return ev, err
		}
		ev.Kind = services.EventFile
		ev.File = &ref
	default:
		return ev, frameError("unknown frame type " + msg.Type)
	}
	return ev, nil
}
