package conversation

import (
	"regexp"
	"sort"
	"strings"
)

// Field extraction uses targeted patterns rather than the language model so
// the booking flow stays deterministic and cheap.

var (
	// "it's ..." is deliberately absent: callers use it for situations
	// ("it's urgent") far more often than introductions.
	nameIntroPattern = regexp.MustCompile(`(?i)\b(?:my name is|my name's|i'm|i am|this is|call me)\s+([a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)?)`)
	bareNamePattern  = regexp.MustCompile(`^[a-zA-Z]+(?:\s+[a-zA-Z]+){0,2}$`)

	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{6,16}\d`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	clockTimePattern   = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm)\b`)
	numericDatePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
)

// serviceVocabulary is the fixed list of service names, matched
// longest-first so "termite inspection" beats "inspection".
var serviceVocabulary = []string{
	"termite inspection",
	"termite treatment",
	"pest inspection",
	"pest control",
	"rodent control",
	"cockroach treatment",
	"spider treatment",
	"ant treatment",
	"bed bug treatment",
	"flea treatment",
	"wasp removal",
	"possum removal",
	"fumigation",
	"inspection",
}

func init() {
	sort.Slice(serviceVocabulary, func(i, j int) bool {
		return len(serviceVocabulary[i]) > len(serviceVocabulary[j])
	})
}

var timeWords = []string{"morning", "afternoon", "evening", "midday", "noon", "lunchtime"}

var dateWords = []string{
	"today", "tomorrow", "next week", "this week", "weekend",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// ExtractFields pulls structured booking fields out of free text.
// justAskedForName widens name matching to a bare reply ("Sam", "Sam Smith")
// because the caller is answering a direct question.
func ExtractFields(text string, justAskedForName bool) CustomerInfo {
	var out CustomerInfo
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if m := nameIntroPattern.FindStringSubmatch(trimmed); m != nil && !isNameStopWord(m[1]) {
		out.Name = titleCase(m[1])
	} else if justAskedForName && bareNamePattern.MatchString(trimmed) && !containsAny(lower, nonNameReplies) {
		out.Name = titleCase(trimmed)
	}

	if m := phonePattern.FindString(trimmed); m != "" {
		digits := normalizePhone(m)
		if len(digits) >= 8 {
			out.Phone = digits
		}
	}

	if m := emailPattern.FindString(trimmed); m != "" {
		out.Email = strings.ToLower(m)
	}

	for _, svc := range serviceVocabulary {
		if strings.Contains(lower, svc) {
			out.ServiceType = svc
			break
		}
	}

	if m := clockTimePattern.FindString(trimmed); m != "" {
		out.PreferredTime = strings.ToLower(strings.Join(strings.Fields(m), ""))
	} else {
		for _, w := range timeWords {
			if strings.Contains(lower, w) {
				out.PreferredTime = w
				break
			}
		}
	}

	if m := numericDatePattern.FindString(trimmed); m != "" {
		out.PreferredDate = m
	} else {
		for _, w := range dateWords {
			if strings.Contains(lower, w) {
				out.PreferredDate = w
				break
			}
		}
	}

	return out
}

// Words that look like a bare one-word reply but are never a name.
var nonNameReplies = []string{"yes", "no", "yeah", "nah", "okay", "ok", "sure", "maybe", "hello", "hi", "thanks", "thank you"}

// Words that follow "I'm ..." without introducing a name: verbs, fillers,
// and urgency adjectives ("I'm desperate, we have termites").
var nameStopWords = map[string]bool{
	"looking": true, "calling": true, "wondering": true, "trying": true,
	"hoping": true, "interested": true, "after": true, "needing": true,
	"wanting": true, "ringing": true, "chasing": true, "just": true,
	"not": true, "here": true, "going": true, "getting": true,
	"having": true, "so": true, "very": true, "really": true, "sorry": true,
	"urgent": true, "desperate": true, "worried": true, "afraid": true,
	"panicking": true, "stressed": true,
}

func isNameStopWord(captured string) bool {
	first := strings.ToLower(strings.Fields(captured)[0])
	return nameStopWords[first]
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && b.Len() == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
