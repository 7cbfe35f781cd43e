// Package render formats operation results as the markdown text
// returned to the tool caller.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/filter"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/mailops"
)

const (
	previewLimit  = 100
	bodyPeekLimit = 300
)

var roleEmoji = map[string]string{
	"inbox":   "📥",
	"drafts":  "📝",
	"sent":    "📤",
	"trash":   "🗑️",
	"archive": "📦",
	"junk":    "🚫",
}

func mailboxEmoji(role string) string {
	if e, ok := roleEmoji[role]; ok {
		return e
	}
	return "📁"
}

// Truncate cuts s to at most limit runes after NFC normalization,
// appending an ellipsis when anything was removed. Counting runes on
// the normalized form keeps combining sequences intact.
func Truncate(s string, limit int) string {
	s = norm.NFC.String(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Configured renders the configure confirmation.
func Configured(accountID, username string) string {
	if username == "" {
		username = "N/A"
	}
	return fmt.Sprintf("✅ FastMail configured successfully!\nAccount ID: %s\nUsername: %s", accountID, username)
}

// Mailboxes renders the mailbox listing.
func Mailboxes(mailboxes []mailops.Mailbox) string {
	lines := []string{"📁 **FastMail Mailboxes**\n"}
	lines = append(lines, mailboxLines(mailboxes)...)
	return strings.Join(lines, "\n")
}

// FoundMailboxes renders a find_mailbox result.
func FoundMailboxes(mailboxes []mailops.Mailbox) string {
	lines := []string{fmt.Sprintf("🔍 **Found %d mailbox(es)**\n", len(mailboxes))}
	lines = append(lines, mailboxLines(mailboxes)...)
	return strings.Join(lines, "\n")
}

func mailboxLines(mailboxes []mailops.Mailbox) []string {
	var lines []string
	for _, mb := range mailboxes {
		role := mb.Role
		if role == "" {
			role = "folder"
		}
		lines = append(lines,
			fmt.Sprintf("%s **%s** (%s)", mailboxEmoji(role), mb.Name, role),
			fmt.Sprintf("   ID: `%s`", mb.ID),
			fmt.Sprintf("   Emails: %d total, %d unread\n", mb.TotalEmails, mb.UnreadEmails),
		)
	}
	return lines
}

// EmailList renders a get_emails result.
func EmailList(emails []mailops.Email, includeBody bool) string {
	if len(emails) == 0 {
		return "📭 No emails found in this mailbox."
	}

	lines := []string{fmt.Sprintf("📧 **Found %d email(s)**\n", len(emails))}
	for _, email := range emails {
		lines = append(lines, emailHeadline(email))
		lines = append(lines,
			"   From: "+email.Sender(),
			"   Date: "+email.ReceivedDate(),
			fmt.Sprintf("   ID: `%s`", email.ID),
		)
		if email.Preview != "" {
			lines = append(lines, fmt.Sprintf("   Preview: _%s_", Truncate(email.Preview, previewLimit)))
		}
		if includeBody {
			if text := email.TextContent(); text != "" {
				lines = append(lines, "   Body: "+Truncate(text, bodyPeekLimit))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// SearchResults renders a search_emails result with the criteria that
// produced it.
func SearchResults(criteria filter.Criteria, emails []mailops.Email) string {
	var terms []string
	if criteria.Keyword != "" {
		terms = append(terms, fmt.Sprintf("keyword: '%s'", criteria.Keyword))
	}
	if criteria.From != "" {
		terms = append(terms, fmt.Sprintf("from: '%s'", criteria.From))
	}
	if criteria.Subject != "" {
		terms = append(terms, fmt.Sprintf("subject: '%s'", criteria.Subject))
	}

	lines := []string{
		fmt.Sprintf("🔍 **Search Results** (%s)", strings.Join(terms, ", ")),
		fmt.Sprintf("Found %d email(s)\n", len(emails)),
	}
	for _, email := range emails {
		lines = append(lines, emailHeadline(email))
		lines = append(lines,
			fmt.Sprintf("   From: %s | Date: %s", email.Sender(), email.ReceivedDate()),
			fmt.Sprintf("   ID: `%s`", email.ID),
		)
		if email.Preview != "" {
			lines = append(lines, fmt.Sprintf("   _%s_", Truncate(email.Preview, previewLimit)))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func emailHeadline(email mailops.Email) string {
	status := "⚪"
	if email.Unread() {
		status = "🔵"
	}
	subject := email.Subject
	if subject == "" {
		subject = "(No subject)"
	}
	attachment := ""
	if email.HasAttachment {
		attachment = "📎"
	}
	return fmt.Sprintf("%s **%s** %s", status, subject, attachment)
}

// EmailBody renders a get_email_body result.
func EmailBody(body *mailops.EmailBody) string {
	subject := body.Subject
	if subject == "" {
		subject = "(No subject)"
	}
	lines := []string{fmt.Sprintf("📧 **Email Body: %s**\n", subject)}
	if body.Text != "" {
		lines = append(lines, "**Text Body:**", body.Text, "")
	}
	if body.HTML != "" {
		lines = append(lines, "**HTML Body:**", fmt.Sprintf("```html\n%s\n```", body.HTML))
	}
	return strings.Join(lines, "\n")
}

// SendConfirmation renders a successful send.
func SendConfirmation(result *mailops.SendResult) string {
	return "✅ Email sent successfully! Submission ID: " + result.SubmissionID
}
