package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type ModelsResponse struct {
	Models []Model `json:"models"`
}

type Model struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

type Families []string

type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          Families `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// UnmarshalJSON tolerates the "families": null the server emits for
// single-family models.
func (f *Families) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Families{}
		return nil
	}
	var families []string
	if err := json.Unmarshal(data, &families); err != nil {
		return err
	}
	*f = Families(families)
	return nil
}

// ListModels returns the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var response ModelsResponse
	if err := c.get(ctx, modelsPath, &response); err != nil {
		return nil, err
	}
	return response.Models, nil
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// PullProgress is one NDJSON line of a streamed /api/pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// Percent reports download progress for layer chunks, -1 when not applicable.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return 100 * float64(p.Completed) / float64(p.Total)
}

// Pull downloads a model from the registry, streaming progress to fn.
func (c *Client) Pull(ctx context.Context, name string, fn func(PullProgress) error) error {
	if name == "" {
		return errors.New("model name is required")
	}
	req := pullRequest{Model: name, Stream: true}
	return c.stream(ctx, pullPath, req, func(bts []byte) error {
		var progress PullProgress
		if err := json.Unmarshal(bts, &progress); err != nil {
			return err
		}
		return fn(progress)
	})
}

type showRequest struct {
	Model string `json:"model"`
}

// Has reports whether the named model is installed locally, mirroring the
// `ollama show` probe used before pulling.
func (c *Client) Has(ctx context.Context, name string) (bool, error) {
	bts, err := json.Marshal(showRequest{Model: name})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(showPath), bytes.NewBuffer(bts))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("cannot reach %s (is `ollama serve` running?): %w", c.base, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp)
	}
}
