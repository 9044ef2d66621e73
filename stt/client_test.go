package stt

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"vetvoice/audio"
)

func testWaveform() *audio.Waveform {
	return &audio.Waveform{
		PCM:        bytes.Repeat([]byte{0x00, 0x10}, 16000),
		SampleRate: audio.CanonicalSampleRate,
	}
}

func TestClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcribe" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("Expected audio/wav content type, got %s", ct)
		}
		w.Write([]byte(`{"text": "dog presents with fever", "confidence": 0.87}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	got, err := c.Transcribe(context.Background(), testWaveform())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got.Transcript != "dog presents with fever" {
		t.Errorf("Unexpected transcript: %q", got.Transcript)
	}
	if got.Confidence != 0.87 {
		t.Errorf("Expected confidence 0.87, got %f", got.Confidence)
	}
}

func TestClient_Transcribe_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	_, err := c.Transcribe(context.Background(), testWaveform())
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Errorf("Expected ErrRecognitionFailed, got %v", err)
	}
}

func TestClient_Transcribe_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	_, err := c.Transcribe(context.Background(), testWaveform())
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Errorf("Expected ErrRecognitionFailed, got %v", err)
	}
}

func TestClient_Transcribe_ClampsConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "x", "confidence": 1.7}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	got, err := c.Transcribe(context.Background(), testWaveform())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got.Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %f", got.Confidence)
	}
}

func TestClient_Transcribe_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, zaptest.NewLogger(t))

	_, err := c.Transcribe(context.Background(), testWaveform())
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Errorf("Expected ErrRecognitionFailed, got %v", err)
	}
}

func TestClient_Ready_CachesSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	if !c.Ready(context.Background()) {
		t.Fatal("Expected ready")
	}
	if !c.Ready(context.Background()) {
		t.Fatal("Expected ready on second probe")
	}
	if calls != 1 {
		t.Errorf("Expected one health probe, got %d", calls)
	}
}

func TestClient_Ready_ProbeIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	// The engine timeout is deliberately huge; the probe must not inherit it.
	c := NewClient(srv.URL, 10*time.Minute, zaptest.NewLogger(t))

	start := time.Now()
	if c.Ready(context.Background()) {
		t.Error("Expected not ready from a hung engine")
	}
	if elapsed := time.Since(start); elapsed > healthProbeTimeout+3*time.Second {
		t.Errorf("Probe took %v, expected it bounded near %v", elapsed, healthProbeTimeout)
	}
}

func TestClient_Ready_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	if c.Ready(context.Background()) {
		t.Error("Expected not ready while engine reports unavailable")
	}
}
