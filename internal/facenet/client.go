package facenet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/imageprocessor"
	"github.com/example/rekognizer/internal/logging"
)

type predictRequest struct {
	SignatureName string        `json:"signature_name"`
	Inputs        predictInputs `json:"inputs"`
}

type predictInputs struct {
	Images [][][][]float32 `json:"images"`
	Phase  bool            `json:"phase"`
}

type predictResponse struct {
	Outputs []Embedding `json:"outputs"`
}

// Client computes embeddings through a TensorFlow Serving predict endpoint.
type Client struct {
	url        string
	signature  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a client posting to predictURL with the given signature name.
func NewClient(predictURL, signature string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:        predictURL,
		signature:  signature,
		httpClient: httpClient,
		logger:     logger.Named("facenet"),
	}
}

// Embed sends all tensors in a single predict call and returns one embedding per tensor, in order.
func (c *Client) Embed(ctx context.Context, tensors []*imageprocessor.Tensor) ([]Embedding, error) {
	if len(tensors) == 0 {
		return nil, nil
	}

	images := make([][][][]float32, len(tensors))
	for i, t := range tensors {
		images[i] = t.Nested()
	}
	payload, err := json.Marshal(predictRequest{
		SignatureName: c.signature,
		Inputs:        predictInputs{Images: images, Phase: false},
	})
	if err != nil {
		return nil, c.fail(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(fmt.Errorf("model server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.fail(fmt.Errorf("decode response: %w", err))
	}
	if len(result.Outputs) != len(tensors) {
		return nil, c.fail(fmt.Errorf("expected %d embeddings, got %d", len(tensors), len(result.Outputs)))
	}
	dim := len(result.Outputs[0])
	for i, e := range result.Outputs {
		if len(e) == 0 || len(e) != dim {
			return nil, c.fail(fmt.Errorf("%w: output %d has %d values", ErrDimensionMismatch, i, len(e)))
		}
	}

	c.logger.Debug("computed embeddings", zap.Int("count", len(result.Outputs)), zap.Int("dim", dim))
	return result.Outputs, nil
}

func (c *Client) fail(err error) error {
	wrapped := logging.NewOperationError("facenet.embed", "", err)
	c.logger.Error("embedding call failed", zap.Error(wrapped), zap.String("url", c.url))
	return wrapped
}
