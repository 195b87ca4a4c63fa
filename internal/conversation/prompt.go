package conversation

import (
	"strings"

	"voicedesk/internal/config"
)

const persona = "You are a friendly, efficient phone receptionist. " +
	"Answers are spoken aloud over the phone, so keep every reply to one or " +
	"two short sentences, never use lists or markup, and always move the " +
	"conversation toward helping the caller or booking a job."

// buildSystemPrompt assembles the persona, the business profile, an optional
// knowledge excerpt, and short running context for the current turn.
func buildSystemPrompt(biz config.BusinessConfig, excerpt string, cctx *Context) string {
	var b strings.Builder
	b.WriteString(persona)

	b.WriteString("\n\nBusiness: ")
	b.WriteString(biz.Name)
	if biz.Type != "" {
		b.WriteString(" (")
		b.WriteString(biz.Type)
		b.WriteString(")")
	}
	if biz.Services != "" {
		b.WriteString("\nServices: ")
		b.WriteString(biz.Services)
	}
	if biz.Hours != "" {
		b.WriteString("\nHours: ")
		b.WriteString(biz.Hours)
	}
	if biz.Location != "" {
		b.WriteString("\nLocation: ")
		b.WriteString(biz.Location)
	}

	if excerpt != "" {
		b.WriteString("\n\nRelevant knowledge:\n")
		b.WriteString(excerpt)
	}

	if cctx.Intent != "" {
		b.WriteString("\n\nCurrent caller intent: ")
		b.WriteString(string(cctx.Intent))
	}
	if cctx.CustomerInfo.Name != "" {
		b.WriteString("\nCaller name: ")
		b.WriteString(cctx.CustomerInfo.Name)
	}
	if cctx.CustomerInfo.ServiceType != "" {
		b.WriteString("\nService discussed: ")
		b.WriteString(cctx.CustomerInfo.ServiceType)
	}

	return b.String()
}
