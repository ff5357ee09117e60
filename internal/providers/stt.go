package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Transcriber converts a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioBase64 string) (string, error)
}

// WhisperTranscriber calls the OpenAI-compatible audio transcription
// endpoint. WhatsApp voice notes arrive as base64 OGG/Opus.
type WhisperTranscriber struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
}

// NewWhisperTranscriber creates a transcriber against apiBase.
func NewWhisperTranscriber(apiKey, apiBase string) *WhisperTranscriber {
	return &WhisperTranscriber{
		apiKey:  apiKey,
		apiBase: strings.TrimSuffix(apiBase, "/"),
		model:   "whisper-1",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Transcribe uploads the decoded audio and returns the transcript text.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioBase64 string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "voice.ogg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", w.model); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiBase+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Status: resp.StatusCode, Body: string(data)}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
