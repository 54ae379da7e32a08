package classify

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

const promptPreamble = `You are an intelligent email classifier designed to prioritize important messages.
Based on the email content, determine if it is "High Priority" or "Low Priority".

Consider:
- High Priority: Important work emails, recruiter messages, job opportunities, interviews, client or manager emails, deadlines, project updates.
- Low Priority: Newsletters, ads, social updates, automated notifications.

Respond strictly in JSON format:
{
  "priority": "<High Priority or Low Priority>",
  "reason": "<brief reason for classification>"
}`

// BuildPrompt embeds subject and body verbatim in the instructional prompt.
// The model treats the whole prompt as natural-language context, so no
// escaping is applied.
func BuildPrompt(subject, body string) string {
	return fmt.Sprintf("%s\n\nSubject: %s\nBody: %s\n", promptPreamble, subject, body)
}

// ParseLabel normalizes a raw model response into a priority label.
// The response is lowercased and tested for the substring "high" before
// "low", so a response containing both resolves to high priority. ok is
// false when neither token appears and the caller should fall back.
func ParseLabel(raw string) (p mail.Priority, ok bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(label, "high"):
		return mail.PriorityHigh, true
	case strings.Contains(label, "low"):
		return mail.PriorityLow, true
	default:
		return mail.PriorityUnclassified, false
	}
}
