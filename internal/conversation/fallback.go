package conversation

import (
	"fmt"
	"strings"
)

// fallbackResponse is the deterministic keyword-to-canned-response table used
// when the language model times out or fails. The caller still hears a
// coherent answer; it is just less tailored.
func fallbackResponse(text string, business string) string {
	t := strings.ToLower(text)

	switch {
	case containsAny(t, greetingKeywords):
		return fmt.Sprintf("Hi, thanks for calling %s. How can I help you today?", business)
	case containsAny(t, bookingKeywords):
		return "I can help you book that in. Could I start with your name?"
	case containsAny(t, hoursKeywords):
		return "We're open during regular business hours. Would you like me to book something in for you?"
	case containsAny(t, servicesKeywords):
		return fmt.Sprintf("%s handles a full range of services. Is there something specific you need help with?", business)
	case containsAny(t, pricingKeywords):
		return "Pricing depends on the job, so we'd confirm an exact quote before any work. Would you like to book an inspection?"
	case containsAny(t, goodbyeKeywords):
		return "Thanks for calling. Have a great day!"
	default:
		return fmt.Sprintf("I heard you say %q. Could you tell me a bit more about what you need?", strings.TrimSpace(text))
	}
}
