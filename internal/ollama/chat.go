package ollama

import (
	"context"
	"encoding/json"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Thinking is populated by reasoning models (gpt-oss, deepseek-r1, ...)
	// when the server separates chain-of-thought from the answer.
	Thinking string `json:"thinking,omitempty"`
}

// Options are the sampling parameters forwarded verbatim to the server.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// ChatChunk is one NDJSON line of a streamed /api/chat response. The final
// chunk (Done) carries the evaluation counters.
type ChatChunk struct {
	Model              string  `json:"model"`
	CreatedAt          string  `json:"created_at"`
	Message            Message `json:"message"`
	Done               bool    `json:"done"`
	DoneReason         string  `json:"done_reason,omitempty"`
	TotalDuration      int64   `json:"total_duration,omitempty"`
	LoadDuration       int64   `json:"load_duration,omitempty"`
	PromptEvalCount    int     `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64   `json:"prompt_eval_duration,omitempty"`
	EvalCount          int     `json:"eval_count,omitempty"`
	EvalDuration       int64   `json:"eval_duration,omitempty"`
}

// EvalRate is the generation speed in tokens per second, 0 when unknown.
func (c ChatChunk) EvalRate() float64 {
	if c.EvalDuration <= 0 {
		return 0
	}
	return float64(c.EvalCount) / (float64(c.EvalDuration) / float64(time.Second))
}

// Chat streams a conversation turn, invoking fn for every chunk. Streaming is
// forced on; slow hardware otherwise looks like a hung request.
func (c *Client) Chat(ctx context.Context, req *ChatRequest, fn func(ChatChunk) error) error {
	req.Stream = true
	return c.stream(ctx, chatPath, req, func(bts []byte) error {
		var chunk ChatChunk
		if err := json.Unmarshal(bts, &chunk); err != nil {
			return err
		}
		return fn(chunk)
	})
}
