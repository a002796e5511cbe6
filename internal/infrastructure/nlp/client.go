// Package nlp is the HTTP client for the external entity-recognition model
// service. The model itself is hosted elsewhere; this adapter only moves text
// out and predicted spans back.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/config"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

const defaultTimeout = 60 * time.Second

// Client implements pipeline.NLPClient over the model service's REST API.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient builds a client from configuration. Returns nil when no URL is
// configured, which disables the NLP overlay entirely.
func NewClient(cfg config.NLPConfig, log logging.Logger) *Client {
	if cfg.URL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{
		url:        cfg.URL,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("nlp"),
	}
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Predictions []struct {
		Type string `json:"type"`
		Lo   int    `json:"lo"`
		Hi   int    `json:"hi"`
	} `json:"predictions"`
}

// Predict sends document text to the model and returns the predicted entity
// spans in the text's inclusive char-offset coordinates.
func (c *Client) Predict(ctx context.Context, text string) ([]pipeline.Prediction, error) {
	body, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal nlp request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build nlp request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "nlp service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.New(errors.ErrCodeServiceUnavailable,
			fmt.Sprintf("nlp service returned %d: %s", resp.StatusCode, raw))
	}

	var decoded predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode nlp response")
	}

	predictions := make([]pipeline.Prediction, len(decoded.Predictions))
	for i, p := range decoded.Predictions {
		predictions[i] = pipeline.Prediction{Type: p.Type, Lo: p.Lo, Hi: p.Hi}
	}

	c.logger.Debug("nlp prediction finished",
		logging.Int("text_len", len(text)),
		logging.Int("predictions", len(predictions)),
		logging.Duration("elapsed", time.Since(start)))
	return predictions, nil
}
