package services

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	args := m.Called(ctx, chatID, text, kb)
	return args.Int(0), args.Error(1)
}

func (m *MockMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	args := m.Called(ctx, chatID, messageID, text, kb)
	return args.Error(0)
}

func (m *MockMessenger) SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error {
	args := m.Called(ctx, chatID, name, data)
	return args.Error(0)
}

func (m *MockMessenger) SendDocument(ctx context.Context, chatID int64, path string) error {
	args := m.Called(ctx, chatID, path)
	return args.Error(0)
}

func (m *MockMessenger) SendSticker(ctx context.Context, chatID int64, stickerID string) error {
	args := m.Called(ctx, chatID, stickerID)
	return args.Error(0)
}

func (m *MockMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	args := m.Called(ctx, callbackID)
	return args.Error(0)
}

func (m *MockMessenger) DownloadFile(ctx context.Context, file FileRef, dst string) error {
	args := m.Called(ctx, file, dst)
	return args.Error(0)
}

func (m *MockMessenger) ChatName(ctx context.Context, chatID int64) (string, error) {
	args := m.Called(ctx, chatID)
	return args.String(0), args.Error(1)
}

// texts returns every text sent to chatID, in order.
func (m *MockMessenger) texts(chatID int64) []string {
	var out []string
	for _, call := range m.Calls {
		if call.Method == "SendText" && call.Arguments.Get(1).(int64) == chatID {
			out = append(out, call.Arguments.String(2))
		}
	}
	return out
}

// lastKeyboard returns the keyboard of the last text sent to chatID.
func (m *MockMessenger) lastKeyboard(chatID int64) Keyboard {
	var kb Keyboard
	for _, call := range m.Calls {
		if call.Method == "SendText" && call.Arguments.Get(1).(int64) == chatID {
			kb, _ = call.Arguments.Get(3).(Keyboard)
		}
	}
	return kb
}

// newLenientMessenger accepts every outbound call.
func newLenientMessenger() *MockMessenger {
	m := new(MockMessenger)
	m.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(1, nil).Maybe()
	m.On("EditText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("SendPhoto", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("SendDocument", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("SendSticker", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("AnswerCallback", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("ChatName", mock.Anything, mock.Anything).Return("", nil).Maybe()
	return m
}

type MockGenerationClient struct {
	mock.Mock
}

func (m *MockGenerationClient) DiscoverPipeline(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGenerationClient) Submit(ctx context.Context, prompt, pipelineID string, count, width, height int) (string, error) {
	args := m.Called(ctx, prompt, pipelineID, count, width, height)
	return args.String(0), args.Error(1)
}

func (m *MockGenerationClient) Poll(ctx context.Context, jobUUID string, maxAttempts int, delay time.Duration) ([]string, error) {
	args := m.Called(ctx, jobUUID, maxAttempts, delay)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGenerationClient) DecodeResult(ctx context.Context, item string) ([]byte, error) {
	args := m.Called(ctx, item)
	return args.Get(0).([]byte), args.Error(1)
}

type MockPromptRefiner struct {
	mock.Mock
}

func (m *MockPromptRefiner) Refine(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockImageGenerator struct {
	mock.Mock
}

// Generate reports the items configured with Run through onItem.
func (m *MockImageGenerator) Generate(ctx context.Context, chatID int64, prompt string, count int, onItem func(GenerationItem)) ([]string, error) {
	args := m.Called(ctx, chatID, prompt, count, onItem)
	return args.Get(0).([]string), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, req CompositionRequest, outputPath string) error {
	args := m.Called(ctx, req, outputPath)
	return args.Error(0)
}

// writeOutput makes a Render expectation create its output file.
func writeOutput(args mock.Arguments) {
	_ = os.WriteFile(args.String(2), []byte("rendered"), 0o644)
}

type MockProber struct {
	mock.Mock
}

func (m *MockProber) ProbeDuration(ctx context.Context, path string) float64 {
	args := m.Called(ctx, path)
	return args.Get(0).(float64)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	args := m.Called(ctx, objectName, content)
	return args.Error(0)
}

type MockAccessRegistry struct {
	mock.Mock
}

func (m *MockAccessRegistry) IsApproved(ctx context.Context, chatID int64) (bool, error) {
	args := m.Called(ctx, chatID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccessRegistry) Approve(ctx context.Context, chatID int64) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *MockAccessRegistry) Revoke(ctx context.Context, chatID int64) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *MockAccessRegistry) List(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).([]int64), args.Error(1)
}

type recordingHandler struct {
	mock.Mock
}

func (h *recordingHandler) Handle(ctx context.Context, ev Event) {
	h.Called(ctx, ev)
}
