package tickets

import (
	"regexp"
	"strings"
)

const leadPreamble = "You are the project lead for this repository."

// CreatePrompt asks the project lead to draft a ticket from free text.
func CreatePrompt(ticketText string) string {
	return strings.Join([]string{
		leadPreamble,
		"",
		"<INSTRUCTIONS>",
		"Generate a new ticket from the user input.",
		"Return:",
		"- <SLUG>...</SLUG> as a 3-5 word human-readable phrase.",
		"- <CONTENT>...</CONTENT> as full markdown ticket content.",
		"Return only the tags, no extra text and no <OK>.",
		"</INSTRUCTIONS>",
		"",
		"<INPUT>",
		strings.TrimSpace(ticketText),
		"</INPUT>",
		"",
	}, "\n")
}

// IngestPrompt asks the project lead to name existing ticket content.
func IngestPrompt(sourceContent string) string {
	return strings.Join([]string{
		leadPreamble,
		"",
		"<INSTRUCTIONS>",
		"Generate a 3-5 word human-readable slug for the ticket content.",
		"Return only <SLUG>...</SLUG>. Do not return <CONTENT> or <OK>.",
		"</INSTRUCTIONS>",
		"",
		"<INPUT>",
		strings.TrimSpace(sourceContent),
		"</INPUT>",
		"",
	}, "\n")
}

// AmendPrompt asks the project lead to rewrite a ticket per instructions.
func AmendPrompt(ticketID, existing, instructions string) string {
	return strings.Join([]string{
		leadPreamble,
		"",
		"<INSTRUCTIONS>",
		"Amend the existing ticket content based on the user instructions.",
		"Return only:",
		"- <CONTENT>...</CONTENT> as full markdown ticket content.",
		"Do not change the ticket id or slug.",
		"Return only the tag, no extra text and no <OK>.",
		"</INSTRUCTIONS>",
		"",
		"<TICKET_ID>" + ticketID + "</TICKET_ID>",
		"",
		"<EXISTING>",
		strings.TrimSpace(existing),
		"</EXISTING>",
		"",
		"<AMEND_INSTRUCTIONS>",
		strings.TrimSpace(instructions),
		"</AMEND_INSTRUCTIONS>",
		"",
	}, "\n")
}

// RetryPrompt repeats base with the reason the previous reply was rejected.
func RetryPrompt(base, errMessage string) string {
	return strings.Join([]string{
		strings.TrimSpace(base),
		"",
		"<RETRY>",
		"Previous response was invalid: " + errMessage,
		"Return the tags exactly as requested.",
		"</RETRY>",
		"",
	}, "\n")
}

var (
	slugTagRegex    = regexp.MustCompile(`<SLUG>\s*([\s\S]*?)\s*</SLUG>`)
	contentTagRegex = regexp.MustCompile(`<CONTENT>\s*([\s\S]*?)\s*</CONTENT>`)
)

func extractTag(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractSlug returns the <SLUG> tag's content, or "".
func ExtractSlug(text string) string { return extractTag(slugTagRegex, text) }

// ExtractContent returns the <CONTENT> tag's content, or "".
func ExtractContent(text string) string { return extractTag(contentTagRegex, text) }
