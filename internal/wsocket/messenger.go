package wsocket

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"video_uniquifier_bot/internal/services"
	"video_uniquifier_bot/internal/utils/broker"

	"github.com/google/uuid"
)

var ErrNoConnection = errors.New("chat has no open connection")

// Messenger delivers outbound messages to websocket clients through the
// broker. Uploaded files are staged on disk until the bot downloads them.
type Messenger struct {
	broker     *broker.Broker
	stagingDir string
	nextID     atomic.Int64

	mu    sync.RWMutex
	names map[int64]string
}

func NewMessenger(b *broker.Broker, stagingDir string) (*Messenger, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Messenger{broker: b, stagingDir: stagingDir, names: make(map[int64]string)}, nil
}

func (m *Messenger) publish(chatID int64, msg Message) error {
	msg.ChatID = chatID
	if m.broker.Publish(broker.ChatTopic(chatID), msg) == 0 {
		return ErrNoConnection
	}
	return nil
}

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string, kb services.Keyboard) (int, error) {
	id := int(m.nextID.Add(1))
	return id, m.publish(chatID, Message{Type: TypeText, MessageID: id, Content: text, Keyboard: kb})
}

func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string, kb services.Keyboard) error {
	return m.publish(chatID, Message{Type: TypeEdit, MessageID: messageID, Content: text, Keyboard: kb})
}

func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error {
	return m.publish(chatID, Message{Type: TypePhoto, Name: name, Data: base64.StdEncoding.EncodeToString(data)})
}

func (m *Messenger) SendDocument(ctx context.Context, chatID int64, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.publish(chatID, Message{Type: TypeDocument, Name: filepath.Base(path), Data: base64.StdEncoding.EncodeToString(data)})
}

func (m *Messenger) SendSticker(ctx context.Context, chatID int64, stickerID string) error {
	return m.publish(chatID, Message{Type: TypeSticker, Content: stickerID})
}

func (m *Messenger) AnswerCallback(ctx context.Context, callbackID string) error {
	return nil
}

// DownloadFile moves a staged upload to dst.
func (m *Messenger) DownloadFile(ctx context.Context, file services.FileRef, dst string) error {
	src := filepath.Join(m.stagingDir, filepath.Base(file.ID))
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("staged file %s: %w", file.ID, err)
	}
	defer os.Remove(src)
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (m *Messenger) ChatName(ctx context.Context, chatID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[chatID]
	if !ok {
		return "", ErrNoConnection
	}
	return name, nil
}

func (m *Messenger) setName(chatID int64, name string) {
	if name == "" {
		return
	}
	m.mu.Lock()
	m.names[chatID] = name
	m.mu.Unlock()
}

// stage writes an inbound upload and returns its reference.
func (m *Messenger) stage(name string, data []byte) (services.FileRef, error) {
	id := uuid.New().String() + filepath.Ext(name)
	if err := os.WriteFile(filepath.Join(m.stagingDir, id), data, 0o644); err != nil {
		return services.FileRef{}, err
	}
	return services.FileRef{ID: id, Name: filepath.Base(name), Size: int64(len(data))}, nil
}
