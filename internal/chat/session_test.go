package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osschat/termchat/internal/ollama"
)

type MockClient struct {
	mock.Mock

	// chunks are replayed to the callback on every Chat call.
	chunks []ollama.ChatChunk
	err    error

	lastReq *ollama.ChatRequest
}

func (m *MockClient) Chat(ctx context.Context, req *ollama.ChatRequest, fn func(ollama.ChatChunk) error) error {
	m.Called()
	m.lastReq = req
	if m.err != nil {
		return m.err
	}
	for _, chunk := range m.chunks {
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

func chunksFor(parts ...string) []ollama.ChatChunk {
	chunks := make([]ollama.ChatChunk, 0, len(parts)+1)
	for _, part := range parts {
		chunks = append(chunks, ollama.ChatChunk{
			Message: ollama.Message{Role: ollama.RoleAssistant, Content: part},
		})
	}
	chunks = append(chunks, ollama.ChatChunk{
		Done:         true,
		EvalCount:    7,
		EvalDuration: 2_000_000_000,
	})
	return chunks
}

func TestSendStreamsAndRecordsHistory(t *testing.T) {
	client := &MockClient{chunks: chunksFor("Hello", " there")}
	client.On("Chat").Return()

	session := NewSession(client, "gpt-oss:20b", "be brief")

	var streamed string
	turn, err := session.Send(context.Background(), "hi", func(d Delta) error {
		streamed += d.Content
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", streamed)
	assert.Equal(t, "Hello there", turn.Answer)
	assert.Empty(t, turn.Reasoning)
	assert.Equal(t, 7, turn.Stats.EvalCount)
	assert.InDelta(t, 3.5, turn.Stats.EvalRate, 0.01)

	// user + assistant; the system prompt is prepended per request.
	assert.Equal(t, 2, session.Len())

	// The request carries the system prompt, the history and the
	// effort-mapped options.
	require.NotNil(t, client.lastReq)
	assert.Equal(t, "gpt-oss:20b", client.lastReq.Model)
	require.Len(t, client.lastReq.Messages, 2)
	assert.Equal(t, ollama.RoleSystem, client.lastReq.Messages[0].Role)
	assert.Equal(t, "be brief", client.lastReq.Messages[0].Content)
	assert.Equal(t, "hi", client.lastReq.Messages[1].Content)
	require.NotNil(t, client.lastReq.Options)
	assert.InDelta(t, 1.0, client.lastReq.Options.Temperature, 0.001)
	assert.InDelta(t, 0.95, client.lastReq.Options.TopP, 0.001)
}

func TestSendAppliesEffortSampling(t *testing.T) {
	client := &MockClient{chunks: chunksFor("ok")}
	client.On("Chat").Return()

	session := NewSession(client, "m", "")
	session.SetEffort(EffortLow)

	_, err := session.Send(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, client.lastReq.Options.Temperature, 0.001)
	assert.InDelta(t, 0.9, client.lastReq.Options.TopP, 0.001)
}

func TestSendSeparatesWireThinking(t *testing.T) {
	client := &MockClient{chunks: []ollama.ChatChunk{
		{Message: ollama.Message{Thinking: "let me count"}},
		{Message: ollama.Message{Content: "Three."}},
		{Done: true},
	}}
	client.On("Chat").Return()

	session := NewSession(client, "m", "")
	turn, err := session.Send(context.Background(), "how many?", nil)
	require.NoError(t, err)
	assert.Equal(t, "let me count", turn.Reasoning)
	assert.Equal(t, "Three.", turn.Answer)
}

func TestSendErrorLeavesHistoryClean(t *testing.T) {
	client := &MockClient{err: errors.New("connection refused")}
	client.On("Chat").Return()

	session := NewSession(client, "m", "")
	before := session.Len()

	_, err := session.Send(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Equal(t, before, session.Len())
}

func TestResetKeepsSystemPrompt(t *testing.T) {
	client := &MockClient{chunks: chunksFor("a")}
	client.On("Chat").Return()

	session := NewSession(client, "m", "sys")
	_, err := session.Send(context.Background(), "one", nil)
	require.NoError(t, err)
	require.Equal(t, 2, session.Len())

	session.Reset()
	assert.Equal(t, 0, session.Len())

	_, err = session.Send(context.Background(), "two", nil)
	require.NoError(t, err)
	assert.Equal(t, ollama.RoleSystem, client.lastReq.Messages[0].Role)
	assert.Equal(t, "two", client.lastReq.Messages[1].Content)
}

func TestHistoryGrowsAcrossTurns(t *testing.T) {
	client := &MockClient{chunks: chunksFor("reply")}
	client.On("Chat").Return()

	session := NewSession(client, "m", "")
	_, err := session.Send(context.Background(), "first", nil)
	require.NoError(t, err)
	_, err = session.Send(context.Background(), "second", nil)
	require.NoError(t, err)

	require.Len(t, client.lastReq.Messages, 4)
	assert.Equal(t, ollama.RoleSystem, client.lastReq.Messages[0].Role)
	assert.Equal(t, "first", client.lastReq.Messages[1].Content)
	assert.Equal(t, "reply", client.lastReq.Messages[2].Content)
	assert.Equal(t, "second", client.lastReq.Messages[3].Content)
	client.AssertNumberOfCalls(t, "Chat", 2)
}

func TestDefaultSystemPromptFollowsEffort(t *testing.T) {
	client := &MockClient{chunks: chunksFor("ok")}
	client.On("Chat").Return()

	session := NewSession(client, "m", "")
	_, err := session.Send(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, EffortMedium.SystemPrompt(), client.lastReq.Messages[0].Content)

	session.SetEffort(EffortHigh)
	_, err = session.Send(context.Background(), "q2", nil)
	require.NoError(t, err)
	assert.Equal(t, EffortHigh.SystemPrompt(), client.lastReq.Messages[0].Content)
	assert.Contains(t, client.lastReq.Messages[0].Content, "step by step")
}

func TestCustomSystemPromptWinsOverEffort(t *testing.T) {
	client := &MockClient{chunks: chunksFor("ok")}
	client.On("Chat").Return()

	session := NewSession(client, "m", "talk like a pirate")
	session.SetEffort(EffortLow)

	_, err := session.Send(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "talk like a pirate", client.lastReq.Messages[0].Content)
}
