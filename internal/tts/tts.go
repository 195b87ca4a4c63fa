package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voicedesk/internal/config"

	"github.com/redis/go-redis/v9"
)

// Synthesizer converts text into a retrievable audio URL.
// Failures must be caught by callers and degraded to the provider's native
// voice markup; they are never fatal for a turn.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

var ErrDisabled = errors.New("tts: synthesis disabled")

// HTTPSynthesizer posts text to an external synthesis service and expects a
// JSON body carrying the playable audio URL.
type HTTPSynthesizer struct {
	baseURL string
	apiKey  string
	voice   string
	client  *http.Client
}

func NewHTTPSynthesizer(cfg config.TTSConfig) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		voice:   cfg.Voice,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audio_url"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	if s.baseURL == "" {
		return "", ErrDisabled
	}
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: s.voice})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("tts: synthesis status %d: %s", resp.StatusCode, b)
	}
	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AudioURL == "" {
		return "", errors.New("tts: empty audio url")
	}
	return out.AudioURL, nil
}

// Resolver picks per utterance between a cached pre-synthesized audio asset
// and synthesizing new audio on demand. The cache lives in redis so repeated
// greetings and prompts are rendered once.
type Resolver struct {
	synth Synthesizer
	rdb   *redis.Client
	voice string
	ttl   time.Duration
}

func NewResolver(synth Synthesizer, rdb *redis.Client, voice string) *Resolver {
	return &Resolver{synth: synth, rdb: rdb, voice: voice, ttl: 24 * time.Hour}
}

func audioKey(text, voice string) string {
	sum := sha256.Sum256([]byte(voice + "|" + text))
	return "tts:audio:" + hex.EncodeToString(sum[:])
}

// Resolve returns an audio URL for the message, or an error when the caller
// should fall back to provider-voiced markup.
func (r *Resolver) Resolve(ctx context.Context, text string) (string, error) {
	if r.synth == nil {
		return "", ErrDisabled
	}
	key := audioKey(text, r.voice)

	if r.rdb != nil {
		url, err := r.rdb.Get(ctx, key).Result()
		if err == nil && url != "" {
			return url, nil
		}
		// Cache misses and cache errors both fall through to synthesis.
	}

	url, err := r.synth.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	if r.rdb != nil {
		// Best effort; a failed cache write only costs a re-synthesis.
		_ = r.rdb.Set(ctx, key, url, r.ttl).Err()
	}
	return url, nil
}
