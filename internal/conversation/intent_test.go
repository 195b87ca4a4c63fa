package conversation

import "testing"

func TestDetectIntentPriorityOrder(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		// Emergency + service category wins over everything else, even
		// without a literal booking word.
		{"urgent termite emergency", IntentBooking},
		{"we have an urgent cockroach problem, how much does it cost", IntentBooking},
		{"hello there", IntentGreeting},
		{"good morning, I'd like to book an appointment", IntentGreeting}, // greeting rule precedes booking
		{"I'd like to book an appointment", IntentBooking},
		{"can you send someone out", IntentBooking},
		{"what are your hours", IntentHours},
		{"when are you open", IntentHours},
		{"what services do you offer", IntentServices},
		{"how much does a treatment cost", IntentPricing},
		{"thanks, that's all", IntentGoodbye},
		{"goodbye", IntentGoodbye},
		{"I want to make a complaint", IntentComplaint},
		{"do you work weekends", IntentInquiry},
	}

	for _, tc := range cases {
		if got := DetectIntent(tc.text); got != tc.want {
			t.Fatalf("DetectIntent(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestEmergencyAloneIsNotBooking(t *testing.T) {
	// "urgent" without a service category should fall through the table.
	if got := DetectIntent("it's urgent that I speak to the manager"); got == IntentBooking {
		t.Fatalf("expected non-booking intent, got %s", got)
	}
}
