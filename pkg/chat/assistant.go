// pkg/chat/assistant.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/config"
)

// Replies used when there is nothing better to say
const (
	NoContextData = "No training data found."
	FallbackReply = "I couldn't process that."
)

// DefaultMaxSessions bounds the number of conversations kept in memory
const DefaultMaxSessions = 1024

// ErrDisabled is returned when no API key is configured
var ErrDisabled = errors.New("chat assistant is not configured")

// ErrEmptyMessage is returned for a blank question
var ErrEmptyMessage = errors.New("message cannot be empty")

// Message is one turn of a conversation
type Message struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Reply is the assistant's answer within a session
type Reply struct {
	SessionID string `json:"session_id"`
	Text      string `json:"reply"`
}

type session struct {
	mu      sync.Mutex
	history []Message
}

// Assistant answers questions about the dashboard data with a language model.
// The context file is read once, on first use.
type Assistant struct {
	cfg      *config.ChatConfig
	logger   *zap.Logger
	client   *geminiClient
	sessions *lru.Cache[string, *session]

	contextOnce sync.Once
	contextText string
}

// NewAssistant creates an assistant. httpClient may be nil.
func NewAssistant(cfg *config.ChatConfig, logger *zap.Logger, httpClient *http.Client) (*Assistant, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	sessions, err := lru.New[string, *session](DefaultMaxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Assistant{
		cfg:      cfg,
		logger:   logger.Named("chat"),
		client:   newGeminiClient(httpClient, cfg.BaseURL, cfg.Model, cfg.APIKey),
		sessions: sessions,
	}, nil
}

// BuildPrompt prepends the context data to the question
func BuildPrompt(contextData, question string) string {
	return fmt.Sprintf("Here is important data extracted from various graphs:\n%s\n\nBased on this information, answer the following question:\n%s",
		contextData, question)
}

// Ask sends a question within a session. An empty sessionID starts a new
// session whose id is returned in the reply.
func (a *Assistant) Ask(ctx context.Context, sessionID, question string) (Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Reply{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	asked := time.Now()
	text, err := a.client.generate(ctx, BuildPrompt(a.contextData(), question))
	if err != nil {
		a.logger.Error("Model request failed",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return Reply{}, fmt.Errorf("failed to get a reply: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		text = FallbackReply
	}

	// a failed exchange leaves no trace in the history
	a.session(sessionID).append(
		Message{Role: "user", Text: question, At: asked},
		Message{Role: "assistant", Text: text, At: time.Now()},
	)
	a.logger.Debug("Answered chat message",
		zap.String("sessionID", sessionID),
		zap.Int("replyLength", len(text)))

	return Reply{SessionID: sessionID, Text: text}, nil
}

// History returns a copy of a session's messages, nil for an unknown session
func (a *Assistant) History(sessionID string) []Message {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Message(nil), sess.history...)
}

func (a *Assistant) session(id string) *session {
	sess := &session{}
	if existing, ok, _ := a.sessions.PeekOrAdd(id, sess); ok {
		// Get marks the session as recently used
		a.sessions.Get(id)
		return existing
	}
	return sess
}

func (s *session) append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
}

func (a *Assistant) contextData() string {
	a.contextOnce.Do(func() {
		data, err := os.ReadFile(a.cfg.ContextFile)
		switch {
		case err == nil:
			a.contextText = string(data)
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Warn("Chat context file not found", zap.String("path", a.cfg.ContextFile))
			a.contextText = NoContextData
		default:
			a.logger.Error("Failed to read chat context file",
				zap.String("path", a.cfg.ContextFile),
				zap.Error(err))
			a.contextText = NoContextData
		}
	})
	return a.contextText
}
