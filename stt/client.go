package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vetvoice/audio"
)

// Client talks to the recognition sidecar over HTTP. The sidecar loads the
// acoustic model once at startup; this process holds a single shared Client
// for its whole lifetime.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	ready    atomic.Bool
}

func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (c *Client) Transcribe(ctx context.Context, wave *audio.Waveform) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/transcribe", bytes.NewReader(wave.WAV()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Recognition engine returned error status",
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: engine status %d", ErrRecognitionFailed, resp.StatusCode)
	}

	var body transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed engine output: %v", ErrRecognitionFailed, err)
	}

	confidence := body.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return &Result{Transcript: body.Text, Confidence: confidence}, nil
}

// healthProbeTimeout bounds a single readiness probe. The engine timeout
// covers transcription calls; a hung sidecar must not stall health checks
// that long.
const healthProbeTimeout = 2 * time.Second

// Ready probes the sidecar's health endpoint. A successful probe is cached:
// the model loads once per sidecar lifetime, so readiness does not regress.
func (c *Client) Ready(ctx context.Context) bool {
	if c.ready.Load() {
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		c.ready.Store(true)
		return true
	}
	return false
}
