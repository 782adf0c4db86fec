// Package chat holds the conversation state between the terminal UI and the
// model server: message history, sampling parameters and reasoning handling.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/osschat/termchat/internal/logger"
	"github.com/osschat/termchat/internal/ollama"
)

// Client is the part of the Ollama client a session needs.
type Client interface {
	Chat(ctx context.Context, req *ollama.ChatRequest, fn func(ollama.ChatChunk) error) error
}

// Delta is one streamed slice of the assistant reply.
type Delta struct {
	Content  string
	Thinking string
}

// Stats summarises a completed turn from the final stream chunk.
type Stats struct {
	Duration        time.Duration
	PromptEvalCount int
	EvalCount       int
	EvalRate        float64
}

// Turn is a finished exchange: the split reply plus its stats.
type Turn struct {
	Reasoning string
	Answer    string
	Stats     Stats
}

// Session carries one conversation. Safe for a single in-flight turn; the UI
// disables input while a generation runs.
type Session struct {
	client Client
	log    *logger.Logger

	mu          sync.Mutex
	model       string
	temperature float64
	effort      Effort
	system      string
	history     []ollama.Message
}

// NewSession creates a conversation. An empty system prompt means the
// effort-keyed default applies, recomputed on every turn so /effort changes
// take hold immediately.
func NewSession(client Client, model string, system string) *Session {
	return &Session{
		client:      client,
		log:         logger.New("chat session"),
		model:       model,
		temperature: 1.0,
		effort:      EffortMedium,
		system:      system,
	}
}

// systemMessage must be called with the mutex held.
func (s *Session) systemMessage() ollama.Message {
	content := s.system
	if content == "" {
		content = s.effort.SystemPrompt()
	}
	return ollama.Message{Role: ollama.RoleSystem, Content: content}
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

func (s *Session) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature
}

func (s *Session) SetTemperature(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = t
}

func (s *Session) Effort() Effort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effort
}

func (s *Session) SetEffort(e Effort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effort = e
}

// Reset drops the conversation; the system prompt is rebuilt per turn and
// survives.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Len reports the number of user and assistant messages in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Send runs one conversation turn. The full history is sent so the model
// keeps context; deltas stream to fn as they arrive and the accumulated reply
// is appended to the history before returning. A callback error aborts the
// turn and leaves the history without the assistant reply.
func (s *Session) Send(ctx context.Context, prompt string, fn func(Delta) error) (*Turn, error) {
	s.mu.Lock()
	s.history = append(s.history, ollama.Message{Role: ollama.RoleUser, Content: prompt})
	temp, topP := s.effort.sampling(s.temperature)
	messages := make([]ollama.Message, 0, len(s.history)+1)
	messages = append(messages, s.systemMessage())
	messages = append(messages, s.history...)
	req := &ollama.ChatRequest{
		Model:    s.model,
		Messages: messages,
		Options:  &ollama.Options{Temperature: temp, TopP: topP},
	}
	s.mu.Unlock()

	s.log.Info("Sending turn, model=", req.Model, " messages=", len(req.Messages))

	var content, thinking strings.Builder
	var last ollama.ChatChunk
	start := time.Now()

	err := s.client.Chat(ctx, req, func(chunk ollama.ChatChunk) error {
		last = chunk
		if chunk.Message.Content == "" && chunk.Message.Thinking == "" {
			return nil
		}
		content.WriteString(chunk.Message.Content)
		thinking.WriteString(chunk.Message.Thinking)
		if fn != nil {
			return fn(Delta{Content: chunk.Message.Content, Thinking: chunk.Message.Thinking})
		}
		return nil
	})
	if err != nil {
		s.mu.Lock()
		s.history = s.history[:len(s.history)-1]
		s.mu.Unlock()
		return nil, err
	}

	turn := &Turn{
		Stats: Stats{
			Duration:        time.Since(start),
			PromptEvalCount: last.PromptEvalCount,
			EvalCount:       last.EvalCount,
			EvalRate:        last.EvalRate(),
		},
	}

	// Reasoning models separate their chain-of-thought on the wire; for the
	// rest, fall back to marker detection in the accumulated text.
	if thinking.Len() > 0 {
		turn.Reasoning = strings.TrimSpace(thinking.String())
		turn.Answer = strings.TrimSpace(content.String())
	} else {
		parsed := SplitReasoning(content.String())
		turn.Reasoning = parsed.Reasoning
		turn.Answer = parsed.Answer
	}

	s.mu.Lock()
	s.history = append(s.history, ollama.Message{Role: ollama.RoleAssistant, Content: content.String()})
	s.mu.Unlock()

	return turn, nil
}
