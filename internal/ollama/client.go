package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/osschat/termchat/internal/logger"
)

// DefaultHost is where a locally started `ollama serve` listens.
const DefaultHost = "http://localhost:11434"

const (
	versionPath = "/api/version"
	modelsPath  = "/api/tags"
	chatPath    = "/api/chat"
	pullPath    = "/api/pull"
	showPath    = "/api/show"
)

// Client talks to a single Ollama server.
type Client struct {
	base *url.URL
	http *http.Client
}

// ResolveHost normalises the various OLLAMA_HOST spellings ("host:port",
// "http://host:port", ":11434") into a base URL.
func ResolveHost(host string) (*url.URL, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = DefaultHost
	}
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid server host %q: %w", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server host %q: unsupported scheme %q", host, u.Scheme)
	}
	u.Path = ""
	return u, nil
}

// NewClient creates a client for the given host. An empty host falls back to
// OLLAMA_HOST and then to DefaultHost.
func NewClient(host string) (*Client, error) {
	base, err := ResolveHost(host)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: base,
		http: &http.Client{},
	}, nil
}

// Base returns the resolved server base URL.
func (c *Client) Base() string {
	return c.base.String()
}

func (c *Client) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

type apiError struct {
	Error string `json:"error"`
}

// statusError extracts the server's {"error": "..."} body when present so the
// user sees Ollama's own message rather than just an HTTP status line.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server: %s", apiErr.Error)
	}
	return fmt.Errorf("server: %s", resp.Status)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach %s (is `ollama serve` running?): %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stream POSTs the payload and hands every NDJSON line to fn. Callback errors
// abort the stream and are returned to the caller.
func (c *Client) stream(ctx context.Context, path string, payload interface{}, fn func([]byte) error) error {
	localLogger := logger.New("ollama stream")

	bts, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewBuffer(bts))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/x-ndjson")

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("cannot reach %s (is `ollama serve` running?): %w", c.base, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		err := statusError(response)
		localLogger.Error("Request failed: ", err)
		return err
	}

	scanner := bufio.NewScanner(response.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 512*1024)

	for scanner.Scan() {
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// Version reports the server version and doubles as the availability probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, versionPath, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}
