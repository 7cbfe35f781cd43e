package mailops

import (
	"context"
	"log/slog"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/batch"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/correlate"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/filter"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/htmlstrip"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// summaryProperties are the Email/get properties fetched for listings.
var summaryProperties = []string{
	"id", "threadId", "subject", "from", "to", "receivedAt",
	"preview", "hasAttachment", "keywords",
}

// bodyProperties extend summaryProperties with body content.
var bodyProperties = append(append([]string{}, summaryProperties...),
	"bodyValues", "textBody", "htmlBody")

// GetEmailsParams selects a mailbox by id or name.
type GetEmailsParams struct {
	MailboxID   string
	MailboxName string
	Limit       int
	IncludeBody bool
}

// GetEmails lists the most recent emails of one mailbox.
func (c *Client) GetEmails(ctx context.Context, params GetEmailsParams) ([]Email, error) {
	mailboxID, err := c.ResolveMailboxID(ctx, params.MailboxID, params.MailboxName)
	if err != nil {
		return nil, err
	}

	criteria := filter.Criteria{MailboxID: mailboxID, Limit: params.Limit}
	return c.queryEmails(ctx, criteria, params.IncludeBody)
}

// SearchEmails runs a compiled criteria search.
func (c *Client) SearchEmails(ctx context.Context, criteria filter.Criteria, includeBody bool) ([]Email, error) {
	return c.queryEmails(ctx, criteria, includeBody)
}

// queryEmails issues the canonical two-call batch: Email/query producing
// an id list under label q, and Email/get fetching those ids through a
// back-reference to q's /ids, under label g. Both happen in one round
// trip.
func (c *Client) queryEmails(ctx context.Context, criteria filter.Criteria, includeBody bool) ([]Email, error) {
	snap, err := c.sessions.Current()
	if err != nil {
		return nil, err
	}

	compiled, err := criteria.Compile()
	if err != nil {
		return nil, err
	}

	properties := summaryProperties
	if includeBody {
		properties = bodyProperties
	}

	b := batch.New()
	if err := b.Append("Email/query", wire.Arguments{
		"accountId": snap.AccountID,
		"filter":    compiled,
		"sort":      []any{map[string]any{"property": "receivedAt", "isAscending": false}},
		"limit":     criteria.EffectiveLimit(),
	}, "q"); err != nil {
		return nil, err
	}

	getArgs := wire.Arguments{
		"accountId":  snap.AccountID,
		"ids":        batch.Reference("q", "Email/query", "/ids"),
		"properties": properties,
	}
	if includeBody {
		getArgs["fetchTextBodyValues"] = true
		getArgs["fetchHTMLBodyValues"] = true
	}
	if err := b.Append("Email/get", getArgs, "g"); err != nil {
		return nil, err
	}

	req, err := b.Finalize(snap)
	if err != nil {
		return nil, err
	}
	results, err := c.roundTrip(ctx, snap, req)
	if err != nil {
		return nil, err
	}

	qinv, err := results.Get("q")
	if err != nil {
		return nil, err
	}
	query, err := correlate.DecodeQuery(qinv)
	if err != nil {
		return nil, err
	}

	ginv, err := results.Get("g")
	if err != nil {
		return nil, err
	}
	payload, err := correlate.DecodeGet(ginv)
	if err != nil {
		return nil, err
	}
	emails, err := decodeEmails(payload)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Email query completed",
		slog.String("account_id", snap.AccountID),
		slog.Int("matched", len(query.IDs)),
		slog.Int("fetched", len(emails)),
	)
	return emails, nil
}

// BodyFormat selects which body variants GetEmailBody returns.
type BodyFormat string

// Body formats accepted by GetEmailBody.
const (
	FormatText BodyFormat = "text"
	FormatHTML BodyFormat = "html"
	FormatBoth BodyFormat = "both"
)

// EmailBody is the body content of one email. When text was requested
// but the message only carries HTML, Text holds the stripped HTML.
type EmailBody struct {
	EmailID  string
	Subject  string
	From     string
	Received string
	Text     string
	HTML     string
}

// GetEmailBody fetches one email's body in the requested format.
func (c *Client) GetEmailBody(ctx context.Context, emailID string, format BodyFormat) (*EmailBody, error) {
	email, err := c.fetchEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}

	body := &EmailBody{
		EmailID:  email.ID,
		Subject:  email.Subject,
		From:     email.Sender(),
		Received: email.ReceivedDate(),
	}
	if format == FormatText || format == FormatBoth {
		body.Text = email.TextContent()
		if body.Text == "" {
			if html := email.HTMLContent(); html != "" {
				body.Text = htmlstrip.Strip(html)
			}
		}
	}
	if format == FormatHTML || format == FormatBoth {
		body.HTML = email.HTMLContent()
	}
	return body, nil
}

// fetchEmail gets one email with its body values.
func (c *Client) fetchEmail(ctx context.Context, emailID string) (*Email, error) {
	snap, err := c.sessions.Current()
	if err != nil {
		return nil, err
	}

	b := batch.New()
	if err := b.Append("Email/get", wire.Arguments{
		"accountId":           snap.AccountID,
		"ids":                 []string{emailID},
		"properties":          bodyProperties,
		"fetchTextBodyValues": true,
		"fetchHTMLBodyValues": true,
	}, "g"); err != nil {
		return nil, err
	}
	req, err := b.Finalize(snap)
	if err != nil {
		return nil, err
	}

	results, err := c.roundTrip(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	inv, err := results.Get("g")
	if err != nil {
		return nil, err
	}
	payload, err := correlate.DecodeGet(inv)
	if err != nil {
		return nil, err
	}

	emails, err := decodeEmails(payload)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, ErrEmailNotFound
	}
	return &emails[0], nil
}
