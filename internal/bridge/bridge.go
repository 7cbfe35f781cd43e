// Package bridge dispatches the tool catalogue onto mail operations.
package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jarrod-lowe/jmap-service-libs/jmaperror"
	"github.com/jarrod-lowe/jmap-service-libs/plugincontract"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/filter"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/mailops"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/render"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/summary"
)

// Tool names in the catalogue.
const (
	ToolConfigure      = "configure_fastmail"
	ToolListMailboxes  = "list_mailboxes"
	ToolFindMailbox    = "find_mailbox"
	ToolGetEmails      = "get_emails"
	ToolSearchEmails   = "search_emails"
	ToolGetEmailBody   = "get_email_body"
	ToolSendEmail      = "send_email"
	ToolMarkEmailRead  = "mark_email_read"
	ToolMoveEmail      = "move_email"
	ToolDeleteEmail    = "delete_email"
	ToolSummarizeEmail = "summarize_email"
)

// Bridge routes named tool invocations to mail operations and renders
// their results as text.
type Bridge struct {
	mail     *mailops.Client
	digester summary.Summarizer
	logger   *slog.Logger
}

// New creates a Bridge. digester may be nil when summarization is not
// configured.
func New(mail *mailops.Client, digester summary.Summarizer, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{mail: mail, digester: digester, logger: logger}
}

// Dispatch runs one tool invocation. Failures come back as
// *jmaperror.MethodError so both entrypoints render them uniformly.
func (b *Bridge) Dispatch(ctx context.Context, tool string, args plugincontract.Args) (string, error) {
	tracer := tracing.Tracer("jmap-mail-bridge")
	ctx, span := tracer.Start(ctx, "Dispatch")
	defer span.End()

	requestID := uuid.New().String()
	logger := b.logger.With(
		slog.String("tool", tool),
		slog.String("request_id", requestID),
	)

	text, err := b.dispatch(ctx, tool, args)
	if err != nil {
		tracing.RecordError(span, err)
		logger.ErrorContext(ctx, "Tool invocation failed", slog.String("error", err.Error()))
		return "", err
	}
	logger.InfoContext(ctx, "Tool invocation completed")
	return text, nil
}

func (b *Bridge) dispatch(ctx context.Context, tool string, args plugincontract.Args) (string, error) {
	switch tool {
	case ToolConfigure:
		return b.configure(ctx, args)
	case ToolListMailboxes:
		return b.listMailboxes(ctx, args)
	case ToolFindMailbox:
		return b.findMailbox(ctx, args)
	case ToolGetEmails:
		return b.getEmails(ctx, args)
	case ToolSearchEmails:
		return b.searchEmails(ctx, args)
	case ToolGetEmailBody:
		return b.getEmailBody(ctx, args)
	case ToolSendEmail:
		return b.sendEmail(ctx, args)
	case ToolMarkEmailRead:
		return b.markEmailRead(ctx, args)
	case ToolMoveEmail:
		return b.moveEmail(ctx, args)
	case ToolDeleteEmail:
		return b.deleteEmail(ctx, args)
	case ToolSummarizeEmail:
		return b.summarizeEmail(ctx, args)
	default:
		return "", jmaperror.UnknownMethod("Unknown tool: " + tool)
	}
}

func (b *Bridge) configure(ctx context.Context, args plugincontract.Args) (string, error) {
	token, ok := args.String("apiToken")
	if !ok || token == "" {
		return "", jmaperror.InvalidArguments("apiToken argument is required")
	}
	accountID := args.StringOr("accountId", "")

	snap, err := b.mail.Sessions().Configure(ctx, token, accountID)
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return render.Configured(snap.AccountID, snap.Identity), nil
}

func (b *Bridge) listMailboxes(ctx context.Context, args plugincontract.Args) (string, error) {
	mailboxes, err := b.mail.ListMailboxes(ctx, args.StringOr("role", ""))
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return render.Mailboxes(mailboxes), nil
}

func (b *Bridge) findMailbox(ctx context.Context, args plugincontract.Args) (string, error) {
	name := args.StringOr("name", "")
	role := args.StringOr("role", "")
	if name == "" && role == "" {
		return "", jmaperror.InvalidArguments("either name or role is required")
	}

	found, err := b.mail.FindMailbox(ctx, name, role)
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return render.FoundMailboxes(found), nil
}

func (b *Bridge) getEmails(ctx context.Context, args plugincontract.Args) (string, error) {
	params := mailops.GetEmailsParams{
		MailboxID:   args.StringOr("mailboxId", ""),
		MailboxName: args.StringOr("mailboxName", ""),
		Limit:       intArg(args, "limit"),
		IncludeBody: boolArg(args, "includeBody"),
	}
	if params.MailboxID == "" && params.MailboxName == "" {
		return "", jmaperror.InvalidArguments("either mailboxId or mailboxName is required")
	}

	emails, err := b.mail.GetEmails(ctx, params)
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return render.EmailList(emails, params.IncludeBody), nil
}

func (b *Bridge) searchEmails(ctx context.Context, args plugincontract.Args) (string, error) {
	criteria := filter.Criteria{
		Keyword:   args.StringOr("keyword", ""),
		From:      args.StringOr("from_email", ""),
		To:        args.StringOr("to_email", ""),
		Subject:   args.StringOr("subject", ""),
		MailboxID: args.StringOr("mailboxId", ""),
		Before:    args.StringOr("before", ""),
		After:     args.StringOr("after", ""),
		Limit:     intArg(args, "limit"),
	}
	if has, ok := args["hasAttachment"].(bool); ok {
		criteria.HasAttachment = &has
	}

	includeBody := boolArg(args, "includeBody")
	emails, err := b.mail.SearchEmails(ctx, criteria, includeBody)
	if err != nil {
		if errors.Is(err, filter.ErrEmptyCriteria) {
			return "", jmaperror.InvalidArguments("at least one search criterion is required")
		}
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return render.SearchResults(criteria, emails), nil
}

func (b *Bridge) getEmailBody(ctx context.Context, args plugincontract.Args) (string, error) {
	emailID, ok := args.String("emailId")
	if !ok || emailID == "" {
		return "", jmaperror.InvalidArguments("emailId argument is required")
	}
	format := mailops.BodyFormat(args.StringOr("format", string(mailops.FormatText)))
	switch format {
	case mailops.FormatText, mailops.FormatHTML, mailops.FormatBoth:
	default:
		return "", jmaperror.InvalidArguments("format must be text, html, or both")
	}

	body, err := b.mail.GetEmailBody(ctx, emailID, format)
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return render.EmailBody(body), nil
}

func (b *Bridge) sendEmail(ctx context.Context, args plugincontract.Args) (string, error) {
	to, ok := args.StringSlice("to")
	if !ok || len(to) == 0 {
		return "", jmaperror.InvalidArguments("to argument is required")
	}
	subject, ok := args.String("subject")
	if !ok {
		return "", jmaperror.InvalidArguments("subject argument is required")
	}
	body, ok := args.String("body")
	if !ok {
		return "", jmaperror.InvalidArguments("body argument is required")
	}
	cc, _ := args.StringSlice("cc")
	bcc, _ := args.StringSlice("bcc")

	result, err := b.mail.SendEmail(ctx, mailops.SendParams{
		To:      to,
		CC:      cc,
		BCC:     bcc,
		Subject: subject,
		Body:    body,
		IsHTML:  boolArg(args, "isHtml"),
	})
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return render.SendConfirmation(result), nil
}

func (b *Bridge) markEmailRead(ctx context.Context, args plugincontract.Args) (string, error) {
	emailID, ok := args.String("emailId")
	if !ok || emailID == "" {
		return "", jmaperror.InvalidArguments("emailId argument is required")
	}
	read := true
	if v, ok := args["read"].(bool); ok {
		read = v
	}

	if err := b.mail.MarkEmailRead(ctx, emailID, read); err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	if read {
		return "✅ Email marked as read.", nil
	}
	return "✅ Email marked as unread.", nil
}

func (b *Bridge) moveEmail(ctx context.Context, args plugincontract.Args) (string, error) {
	emailID, ok := args.String("emailId")
	if !ok || emailID == "" {
		return "", jmaperror.InvalidArguments("emailId argument is required")
	}
	mailboxID := args.StringOr("mailboxId", "")
	mailboxName := args.StringOr("mailboxName", "")
	if mailboxID == "" && mailboxName == "" {
		return "", jmaperror.InvalidArguments("either mailboxId or mailboxName is required")
	}

	if err := b.mail.MoveEmail(ctx, emailID, mailboxID, mailboxName); err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return "✅ Email moved.", nil
}

func (b *Bridge) deleteEmail(ctx context.Context, args plugincontract.Args) (string, error) {
	emailID, ok := args.String("emailId")
	if !ok || emailID == "" {
		return "", jmaperror.InvalidArguments("emailId argument is required")
	}

	if err := b.mail.DeleteEmail(ctx, emailID); err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return "🗑️ Email deleted.", nil
}

func (b *Bridge) summarizeEmail(ctx context.Context, args plugincontract.Args) (string, error) {
	if b.digester == nil {
		return "", jmaperror.ServerFail("summarization is not configured", nil)
	}
	emailID, ok := args.String("emailId")
	if !ok || emailID == "" {
		return "", jmaperror.InvalidArguments("emailId argument is required")
	}

	body, err := b.mail.GetEmailBody(ctx, emailID, mailops.FormatText)
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	digest, err := b.digester.Summarize(ctx, summary.Input{
		Subject: body.Subject,
		Sender:  body.From,
		Date:    body.Received,
		Body:    body.Text,
	})
	if err != nil {
		return "", jmaperror.ServerFail(err.Error(), err)
	}
	return "📋 **Summary:** " + digest, nil
}

func intArg(args plugincontract.Args, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolArg(args plugincontract.Args, key string) bool {
	v, ok := args[key].(bool)
	return ok && v
}
