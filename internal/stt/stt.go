package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Result is a transcription plus a confidence in [0,1]. Confidence must be
// usable even when the engine only estimates it; a missing value is replaced
// with a conservative heuristic, never zero for non-empty text.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognizer is the speech-to-text collaborator for recorded audio
// (voicemail, recordings). Live turns arrive pre-transcribed on the webhook.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte, format string) (Result, error)
}

// The floor applied when an engine returns text without a confidence.
const estimatedConfidence = 0.6

var ErrEmptyAudio = errors.New("stt: empty audio")

// HTTPRecognizer posts an audio buffer to an external transcription service.
type HTTPRecognizer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPRecognizer(baseURL, apiKey string, timeout time.Duration) *HTTPRecognizer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPRecognizer{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type transcribeResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

func (r *HTTPRecognizer) Transcribe(ctx context.Context, audio []byte, format string) (Result, error) {
	if len(audio) == 0 {
		return Result{}, ErrEmptyAudio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "audio."+format)
	if err != nil {
		return Result{}, err
	}
	if _, err := fw.Write(audio); err != nil {
		return Result{}, err
	}
	if err := mw.WriteField("format", format); err != nil {
		return Result{}, err
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/transcribe", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("stt: transcription status %d: %s", resp.StatusCode, b)
	}
	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}
	return normalize(out), nil
}

func normalize(resp transcribeResponse) Result {
	res := Result{Text: resp.Text}
	switch {
	case resp.Confidence != nil:
		res.Confidence = clamp01(*resp.Confidence)
	case resp.Text != "":
		res.Confidence = estimatedConfidence
	}
	return res
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
