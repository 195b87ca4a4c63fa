package conversation

import "strings"

// DetectIntent classifies an utterance with a deterministic keyword-priority
// table. Rules are evaluated in fixed order and earlier rules win. The
// emergency+service rule is first on purpose: an urgent service request must
// never be mis-classified as a plain inquiry just because nobody said "book".
func DetectIntent(text string) Intent {
	t := strings.ToLower(text)

	if containsAny(t, emergencyKeywords) && containsAny(t, serviceCategoryKeywords) {
		return IntentBooking
	}
	if containsAny(t, greetingKeywords) {
		return IntentGreeting
	}
	if containsAny(t, bookingKeywords) {
		return IntentBooking
	}
	if containsAny(t, hoursKeywords) {
		return IntentHours
	}
	if containsAny(t, servicesKeywords) {
		return IntentServices
	}
	if containsAny(t, pricingKeywords) {
		return IntentPricing
	}
	if containsAny(t, goodbyeKeywords) {
		return IntentGoodbye
	}
	if containsAny(t, complaintKeywords) {
		return IntentComplaint
	}
	return IntentInquiry
}

var (
	emergencyKeywords = []string{"emergency", "urgent", "urgently", "asap", "right away", "immediately"}

	serviceCategoryKeywords = []string{
		"pest", "termite", "rodent", "rat", "mice", "mouse", "cockroach", "roach",
		"ant", "spider", "wasp", "bee", "flea", "bed bug", "bedbug", "possum",
		"inspection", "treatment", "spray", "fumigation", "infestation",
	}

	greetingKeywords = []string{"hello", "hi there", "good morning", "good afternoon", "good evening"}

	bookingKeywords = []string{
		"book", "booking", "appointment", "schedule", "reserve", "come out",
		"send someone", "organise a visit", "organize a visit",
	}

	hoursKeywords = []string{"hours", "open", "close", "closing", "opening", "when are you"}

	servicesKeywords = []string{"service", "services", "offer", "do you do", "do you handle", "what do you"}

	pricingKeywords = []string{"price", "pricing", "cost", "how much", "quote", "fee", "charge"}

	goodbyeKeywords = []string{"thanks", "thank you", "goodbye", "bye", "that's all", "that is all", "no that's it"}

	complaintKeywords = []string{"complaint", "complain", "unhappy", "terrible", "awful", "refund", "disappointed", "manager"}
)

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// needsKnowledge marks intents whose responses benefit from a domain
// knowledge excerpt.
var needsKnowledge = map[Intent]bool{
	IntentHours:    true,
	IntentServices: true,
	IntentPricing:  true,
	IntentInquiry:  true,
}
