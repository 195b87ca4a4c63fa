package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"voicedesk/internal/calls"
	"voicedesk/internal/stt"
	"voicedesk/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RecordingForm is the provider's recording status callback payload.
type RecordingForm struct {
	CallSid           string
	RecordingSid      string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration int
}

func ParseRecordingForm(r *http.Request) (RecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingForm{}, err
	}
	f := RecordingForm{
		CallSid:         r.PostFormValue("CallSid"),
		RecordingSid:    r.PostFormValue("RecordingSid"),
		RecordingURL:    r.PostFormValue("RecordingUrl"),
		RecordingStatus: r.PostFormValue("RecordingStatus"),
	}
	if v := r.PostFormValue("RecordingDuration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return RecordingForm{}, fmt.Errorf("telephony: bad RecordingDuration %q", v)
		}
		f.RecordingDuration = n
	}
	return f, nil
}

// VoicemailEvent is pushed to the dashboard feed once a recording has been
// transcribed.
type VoicemailEvent struct {
	CallSid    string    `json:"call_sid"`
	Transcript string    `json:"transcript"`
	Confidence float64   `json:"confidence"`
	Duration   int       `json:"duration_seconds"`
	At         time.Time `json:"at"`
}

const maxRecordingBytes = 10 << 20

// RecordingHandler transcribes completed call recordings and attaches the
// text to the already-flushed call record. The recording callback arrives
// independently of call-status, often after it.
type RecordingHandler struct {
	recognizer stt.Recognizer
	records    calls.Repository
	live       Broadcaster

	// fetch downloads the recording audio; swappable for tests.
	fetch func(ctx context.Context, url string) ([]byte, error)

	clock func() time.Time
}

func NewRecordingHandler(recognizer stt.Recognizer, records calls.Repository, live Broadcaster) *RecordingHandler {
	return &RecordingHandler{
		recognizer: recognizer,
		records:    records,
		live:       live,
		fetch:      fetchAudio,
		clock:      time.Now,
	}
}

// HandleRecordingStatus processes one recording callback. The provider only
// needs a 200; there is no markup to return on this route.
func (h *RecordingHandler) HandleRecordingStatus(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	form, err := ParseRecordingForm(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("recording webhook parse failed", "err", err)
		c.Status(http.StatusOK)
		return
	}
	if form.RecordingStatus != "completed" || form.RecordingURL == "" {
		c.Status(http.StatusOK)
		return
	}
	ctx = logger.WithCall(ctx, form.CallSid)

	// The provider serves recordings as mp3 when the extension is appended.
	audio, err := h.fetch(ctx, form.RecordingURL+".mp3")
	if err != nil {
		log.Error("recording fetch failed", "call_sid", form.CallSid, "err", err)
		c.Status(http.StatusOK)
		return
	}

	res, err := h.recognizer.Transcribe(ctx, audio, "mp3")
	if err != nil {
		log.Error("recording transcription failed", "call_sid", form.CallSid, "err", err)
		c.Status(http.StatusOK)
		return
	}
	if res.Text == "" {
		log.Info("recording transcribed empty", "call_sid", form.CallSid)
		c.Status(http.StatusOK)
		return
	}

	if err := h.records.AttachVoicemail(ctx, form.CallSid, res.Text); err != nil {
		log.Error("voicemail attach failed", "call_sid", form.CallSid, "err", err)
	}
	if h.live != nil {
		h.live.Broadcast(form.CallSid, VoicemailEvent{
			CallSid:    form.CallSid,
			Transcript: res.Text,
			Confidence: res.Confidence,
			Duration:   form.RecordingDuration,
			At:         h.clock().UTC(),
		})
	}

	log.Info("voicemail transcribed",
		"call_sid", form.CallSid,
		"duration_seconds", form.RecordingDuration,
		"confidence", res.Confidence,
	)
	c.Status(http.StatusOK)
}

func fetchAudio(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telephony: recording fetch status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes))
}
