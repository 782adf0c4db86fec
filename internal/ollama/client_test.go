package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"empty falls back to default", "", "http://localhost:11434"},
		{"bare host and port", "example.com:11434", "http://example.com:11434"},
		{"port only", ":8501", "http://localhost:8501"},
		{"full url", "http://10.0.0.5:11434", "http://10.0.0.5:11434"},
		{"https kept", "https://models.internal", "https://models.internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OLLAMA_HOST", "")
			u, err := ResolveHost(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestResolveHostFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "remote:9999")
	u, err := ResolveHost("")
	require.NoError(t, err)
	assert.Equal(t, "http://remote:9999", u.String())
}

func TestResolveHostRejectsBadScheme(t *testing.T) {
	_, err := ResolveHost("ftp://example.com")
	assert.Error(t, err)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func TestVersion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		fmt.Fprint(w, `{"version":"0.6.2"}`)
	}))

	version, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.6.2", version)
}

func TestServerErrorBodyIsSurfaced(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found"}`)
	}))

	err := client.Chat(context.Background(), &ChatRequest{Model: "nope"}, func(ChatChunk) error {
		t.Fatal("callback must not run on error")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "nope" not found`)
}

func TestChatStreamsChunks(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"m","message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"model":"m","message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"model":"m","message":{"role":"assistant","content":""},"done":true,"eval_count":2,"eval_duration":1000000000}`)
	}))

	var got string
	var final ChatChunk
	err := client.Chat(context.Background(), &ChatRequest{Model: "m"}, func(chunk ChatChunk) error {
		got += chunk.Message.Content
		if chunk.Done {
			final = chunk
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
	assert.Equal(t, 2, final.EvalCount)
	assert.InDelta(t, 2.0, final.EvalRate(), 0.01)
}

func TestChatCallbackErrorAbortsStream(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"b"},"done":false}`)
	}))

	calls := 0
	err := client.Chat(context.Background(), &ChatRequest{Model: "m"}, func(ChatChunk) error {
		calls++
		return fmt.Errorf("stop")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestChatForcesStreaming(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))

	req := &ChatRequest{Model: "m", Stream: false}
	err := client.Chat(context.Background(), req, func(ChatChunk) error { return nil })
	require.NoError(t, err)
	assert.True(t, req.Stream)
}

func TestConnectionRefusedMentionsServe(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = client.Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama serve")
}
