package telephony

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"voicedesk/internal/callstate"
	"voicedesk/internal/tts"

	"voicedesk/pkg/logger"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary. Text embedded as
// chardata is escaped by the encoder, so caller speech and model output are
// safe to pass through directly.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Timeout       int      `xml:"timeout,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Verbs         []any    `xml:",any"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Renderer turns a decided message plus a continue/end flag into provider
// markup, choosing per utterance between a cached pre-rendered audio asset
// and the provider's built-in voice.
type Renderer struct {
	audio *tts.Resolver
	voice string

	// resolveTimeout bounds the audio lookup; past it we degrade to Say.
	resolveTimeout time.Duration
}

func NewRenderer(audio *tts.Resolver, voice string) *Renderer {
	if voice == "" {
		voice = "Polly.Joanna"
	}
	return &Renderer{audio: audio, voice: voice, resolveTimeout: 3 * time.Second}
}

// RenderInput is one decided turn ready to be spoken.
type RenderInput struct {
	Message         string
	ExpectsResponse bool
	Step            callstate.Step
	CallbackURL     string
}

const (
	retryPrompt       = "Sorry, I didn't catch that. Could you say it again?"
	goodbyeLine       = "Thanks for calling. Goodbye!"
	errorLine         = "I'm sorry, we're having a technical issue. Please call back in a few minutes."
	maxSilenceSecs    = 3
	defaultGatherSecs = 6
)

// gatherTimeout returns the per-step listen ceiling in seconds. Greeting
// answers come fast; booking turns need room for a spelled-out phone number.
func gatherTimeout(step callstate.Step) int {
	switch step {
	case callstate.StepGreeting:
		return 5
	case callstate.StepCollectingInfo:
		return 8
	case callstate.StepBooking:
		return 10
	default:
		return defaultGatherSecs
	}
}

// Render produces validated markup for the turn. It never returns an error:
// a failed validation yields the minimal safe error document instead, so the
// provider always receives a well-formed body.
func (r *Renderer) Render(ctx context.Context, in RenderInput) string {
	log := logger.From(ctx)

	voice := r.speak(ctx, in.Message)

	var doc twimlResponse
	if in.ExpectsResponse {
		g := twimlGather{
			Input:         "speech",
			Action:        in.CallbackURL,
			Method:        "POST",
			Timeout:       gatherTimeout(in.Step),
			SpeechTimeout: strconv.Itoa(maxSilenceSecs),
			Verbs:         []any{voice},
		}
		doc.Verbs = append(doc.Verbs, g)
		// A caller who times out gets a retry prompt and another gather pass
		// instead of dead air.
		doc.Verbs = append(doc.Verbs,
			twimlSay{Voice: r.voice, Text: retryPrompt},
			twimlRedirect{Method: "POST", URL: in.CallbackURL},
		)
	} else {
		doc.Verbs = append(doc.Verbs, voice)
		doc.Verbs = append(doc.Verbs,
			twimlSay{Voice: r.voice, Text: goodbyeLine},
			twimlHangup{},
		)
	}

	out, err := encodeTwiML(doc)
	if err == nil {
		err = ValidateTwiML(out)
	}
	if err != nil {
		log.Error("markup generation failed, sending safe error document", "err", err)
		return r.SafeErrorDocument()
	}
	return out
}

// speak resolves the message to a Play verb when pre-synthesized audio is
// available, degrading to the provider's voice on any failure.
func (r *Renderer) speak(ctx context.Context, message string) any {
	if r.audio == nil {
		return twimlSay{Voice: r.voice, Text: message}
	}
	rctx, cancel := context.WithTimeout(ctx, r.resolveTimeout)
	defer cancel()
	url, err := r.audio.Resolve(rctx, message)
	if err != nil {
		if !errors.Is(err, tts.ErrDisabled) {
			logger.From(ctx).Warn("audio resolution failed, using provider voice", "err", err)
		}
		return twimlSay{Voice: r.voice, Text: message}
	}
	return twimlPlay{URL: url}
}

// SafeErrorDocument is the minimal valid response used when generation or
// validation fails. Built from static text, so it cannot itself fail.
func (r *Renderer) SafeErrorDocument() string {
	doc := twimlResponse{Verbs: []any{
		twimlSay{Voice: r.voice, Text: errorLine},
		twimlHangup{},
	}}
	out, err := encodeTwiML(doc)
	if err != nil {
		// Unreachable for static input; keep a literal as the last resort.
		return xml.Header + "<Response><Say>" + errorLine + "</Say><Hangup></Hangup></Response>"
	}
	return out
}

func encodeTwiML(doc twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateTwiML checks the structural properties the provider requires:
// a document declaration, a single Response envelope, at least one spoken or
// gather directive, and balanced tags. Malformed markup must never be sent;
// the provider would fall back to its own default voice.
func ValidateTwiML(doc string) error {
	if !strings.HasPrefix(strings.TrimSpace(doc), "<?xml") {
		return errors.New("telephony: missing xml declaration")
	}

	dec := xml.NewDecoder(strings.NewReader(doc))
	depth := 0
	sawResponse := false
	sawDirective := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Local != "Response" {
					return errors.New("telephony: root element must be Response")
				}
				sawResponse = true
			}
			switch t.Name.Local {
			case "Say", "Play", "Gather":
				sawDirective = true
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if depth != 0 {
		return errors.New("telephony: unbalanced tags")
	}
	if !sawResponse {
		return errors.New("telephony: missing Response envelope")
	}
	if !sawDirective {
		return errors.New("telephony: no Say, Play or Gather directive")
	}
	return nil
}
