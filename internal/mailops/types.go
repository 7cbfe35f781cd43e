// Package mailops implements the bridge's mail operations against a
// remote JMAP server: each operation composes one batch, sends it in a
// single round trip, and correlates the reply.
package mailops

import "strings"

// EmailAddress is a mailbox address with an optional display name.
type EmailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Mailbox is a JMAP mailbox as returned by Mailbox/get.
type Mailbox struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	SortOrder    int    `json:"sortOrder"`
	TotalEmails  int    `json:"totalEmails"`
	UnreadEmails int    `json:"unreadEmails"`
}

// BodyValue is decoded body content keyed by part id.
type BodyValue struct {
	Value       string `json:"value"`
	IsTruncated bool   `json:"isTruncated,omitempty"`
}

// BodyPart references a body part of an email.
type BodyPart struct {
	PartID string `json:"partId"`
	Type   string `json:"type"`
}

// Email is a JMAP email with the properties this bridge requests.
type Email struct {
	ID            string               `json:"id"`
	ThreadID      string               `json:"threadId,omitempty"`
	MailboxIDs    map[string]bool      `json:"mailboxIds,omitempty"`
	Keywords      map[string]bool      `json:"keywords,omitempty"`
	From          []EmailAddress       `json:"from,omitempty"`
	To            []EmailAddress       `json:"to,omitempty"`
	CC            []EmailAddress       `json:"cc,omitempty"`
	BCC           []EmailAddress       `json:"bcc,omitempty"`
	Subject       string               `json:"subject"`
	ReceivedAt    string               `json:"receivedAt,omitempty"`
	Preview       string               `json:"preview,omitempty"`
	HasAttachment bool                 `json:"hasAttachment"`
	BodyValues    map[string]BodyValue `json:"bodyValues,omitempty"`
	TextBody      []BodyPart           `json:"textBody,omitempty"`
	HTMLBody      []BodyPart           `json:"htmlBody,omitempty"`
}

// Unread reports whether the email lacks the $seen keyword.
func (e *Email) Unread() bool {
	return !e.Keywords["$seen"]
}

// Sender returns the display name of the first From address, falling
// back to its address.
func (e *Email) Sender() string {
	if len(e.From) == 0 {
		return "Unknown"
	}
	if e.From[0].Name != "" {
		return e.From[0].Name
	}
	if e.From[0].Email != "" {
		return e.From[0].Email
	}
	return "Unknown"
}

// ReceivedDate returns the date portion of ReceivedAt.
func (e *Email) ReceivedDate() string {
	if e.ReceivedAt == "" {
		return "Unknown"
	}
	date, _, _ := strings.Cut(e.ReceivedAt, "T")
	return date
}

// TextContent returns the first text body value, or "" when the email
// carries none.
func (e *Email) TextContent() string {
	return e.bodyContent(e.TextBody)
}

// HTMLContent returns the first HTML body value, or "" when the email
// carries none.
func (e *Email) HTMLContent() string {
	return e.bodyContent(e.HTMLBody)
}

func (e *Email) bodyContent(parts []BodyPart) string {
	for _, part := range parts {
		if value, ok := e.BodyValues[part.PartID]; ok {
			return value.Value
		}
	}
	return ""
}
