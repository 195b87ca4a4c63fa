package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// VoiceForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
//
// Keep it minimal and provider-adapter-only; conversation decisions are not
// made here.
type VoiceForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string

	// Speech-result fields, present only on gather callbacks.
	SpeechResult string
	Confidence   float64

	// CallDuration is present on status callbacks, in seconds.
	CallDuration int
}

func ParseVoiceForm(r *http.Request) (VoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceForm{}, err
	}
	f := VoiceForm{
		CallSid:      r.PostFormValue("CallSid"),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         normalizeNumber(r.PostFormValue("From")),
		To:           normalizeNumber(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   r.PostFormValue("CallStatus"),
		SpeechResult: strings.TrimSpace(r.PostFormValue("SpeechResult")),
	}
	if v := r.PostFormValue("Confidence"); v != "" {
		if conf, err := strconv.ParseFloat(v, 64); err == nil {
			f.Confidence = conf
		}
	}
	if v := r.PostFormValue("CallDuration"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			f.CallDuration = d
		}
	}
	return f, nil
}

func normalizeNumber(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}
