package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"video_uniquifier_bot/internal/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ChatSession is the in-memory dialogue state of one chat.
type ChatSession struct {
	State        ConversationState
	Prompt       string
	LastAccessed time.Time
}

var ErrSessionNotFound = errors.New("session not found")

type TerminationReason int

const (
	UserInitiated TerminationReason = iota
	SessionTimeout
	AccessRevoked
)

func (r TerminationReason) String() string {
	switch r {
	case UserInitiated:
		return "user_initiated"
	case SessionTimeout:
		return "session_timeout"
	case AccessRevoked:
		return "access_revoked"
	default:
		return "unknown"
	}
}

// ChatSessionService keeps the active dialogue state per chat. A chat with no
// entry has no active flow.
type ChatSessionService struct {
	sessions        sync.Map
	clock           clockwork.Clock
	sessionTimeout  time.Duration
	cleanupInterval time.Duration
}

func NewChatSessionService(clock clockwork.Clock, sessionTimeout time.Duration) *ChatSessionService {
	return &ChatSessionService{
		clock:           clock,
		sessionTimeout:  sessionTimeout,
		cleanupInterval: time.Minute,
	}
}

// Get returns the chat's session and touches its access time.
func (css *ChatSessionService) Get(chatID int64) (ChatSession, bool) {
	v, ok := css.sessions.Load(chatID)
	if !ok {
		return ChatSession{}, false
	}
	sess := v.(ChatSession)
	sess.LastAccessed = css.clock.Now()
	// A session terminated meanwhile stays terminated.
	css.sessions.CompareAndSwap(chatID, v, sess)
	return sess, true
}

// Set stores the chat's session. StateNone removes it.
func (css *ChatSessionService) Set(chatID int64, sess ChatSession) {
	if sess.State == StateNone {
		css.remove(chatID)
		return
	}
	sess.LastAccessed = css.clock.Now()
	if _, loaded := css.sessions.Swap(chatID, sess); !loaded {
		metrics.ActiveConversations.Inc()
	}
}

func (css *ChatSessionService) remove(chatID int64) bool {
	if _, loaded := css.sessions.LoadAndDelete(chatID); loaded {
		metrics.ActiveConversations.Dec()
		return true
	}
	return false
}

func (css *ChatSessionService) TerminateSession(chatID int64, reason TerminationReason) error {
	if !css.remove(chatID) {
		return ErrSessionNotFound
	}
	log.Info().Int64("chat_id", chatID).Str("reason", reason.String()).Msg("session terminated")
	return nil
}

// CleanupExpiredSessions drops sessions idle for longer than the session
// timeout and returns how many were dropped.
func (css *ChatSessionService) CleanupExpiredSessions() int {
	now := css.clock.Now()
	dropped := 0
	css.sessions.Range(func(key, value interface{}) bool {
		chatID := key.(int64)
		sess := value.(ChatSession)
		if now.Sub(sess.LastAccessed) > css.sessionTimeout {
			if err := css.TerminateSession(chatID, SessionTimeout); err == nil {
				dropped++
			}
		}
		return true
	})
	return dropped
}

// Run cleans up idle sessions every minute until ctx is done.
func (css *ChatSessionService) Run(ctx context.Context) {
	ticker := css.clock.NewTicker(css.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := css.CleanupExpiredSessions(); n > 0 {
				log.Debug().Int("dropped", n).Msg("idle sessions cleaned up")
			}
		}
	}
}

func (css *ChatSessionService) Count() int {
	n := 0
	css.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
