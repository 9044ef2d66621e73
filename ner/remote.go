package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RemoteEngine calls a biomedical language-model sidecar over HTTP, for
// deployments that run a real NER model instead of the dictionary rules.
type RemoteEngine struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	ready    atomic.Bool
}

func NewRemoteEngine(endpoint string, timeout time.Duration, logger *zap.Logger) *RemoteEngine {
	return &RemoteEngine{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Diagnoses  []string `json:"diagnoses"`
	Treatments []string `json:"treatments"`
}

func (e *RemoteEngine) Extract(ctx context.Context, transcript string) (*Entities, error) {
	payload, err := json.Marshal(extractRequest{Text: transcript})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("Extraction engine returned error status",
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: engine status %d", ErrExtractionFailed, resp.StatusCode)
	}

	var body extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed engine output: %v", ErrExtractionFailed, err)
	}

	ents := &Entities{Diagnoses: body.Diagnoses, Treatments: body.Treatments}
	if ents.Diagnoses == nil {
		ents.Diagnoses = []string{}
	}
	if ents.Treatments == nil {
		ents.Treatments = []string{}
	}

	return ents, nil
}

// healthProbeTimeout bounds a single readiness probe, independent of the
// engine call timeout.
const healthProbeTimeout = 2 * time.Second

func (e *RemoteEngine) Ready(ctx context.Context) bool {
	if e.ready.Load() {
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, e.endpoint+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		e.ready.Store(true)
		return true
	}
	return false
}
