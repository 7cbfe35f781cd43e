// Package main implements the MCP stdio entrypoint for the mail bridge.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/plugincontract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/bridge"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/config"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/mailops"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/session"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/summary"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/transport"
)

const serverVersion = "1.0.0"

var logger = logging.New()

func main() {
	ctx := context.Background()

	cfgPath := os.Getenv("MAIL_BRIDGE_CONFIG")
	if cfgPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfgPath = filepath.Join(home, ".config", "jmap-mail-bridge", "config.yaml")
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("FATAL: Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	tc := transport.NewClient(httpClient, transport.Config{
		APIURL:            cfg.APIURL,
		SessionURL:        cfg.SessionURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
	store := session.NewStore(tc)
	mail := mailops.NewClient(tc, store, logger)

	// A stored token lets the session come up without an explicit
	// configure_fastmail call; the tool still works for rotation.
	if token, err := config.Token(); err == nil && token != "" {
		if _, err := store.Configure(ctx, token, cfg.AccountID); err != nil {
			logger.Warn("Stored token rejected, configure_fastmail required",
				slog.String("error", err.Error()))
		}
	}

	var digester summary.Summarizer
	if awsCfg, err := awsconfig.LoadDefaultConfig(ctx); err == nil {
		otelaws.AppendMiddlewares(&awsCfg.APIOptions)
		digester = summary.NewDigester(bedrockruntime.NewFromConfig(awsCfg), summary.Config{
			ModelID:   cfg.SummaryModelID,
			MaxLength: cfg.SummaryMaxLength,
		})
	} else {
		logger.Warn("Summarization disabled, AWS config unavailable",
			slog.String("error", err.Error()))
	}

	b := bridge.New(mail, digester, logger)

	s := server.NewMCPServer("fastmail", serverVersion, server.WithToolCapabilities(false))
	registerTools(s, b)

	if err := server.ServeStdio(s); err != nil {
		logger.Error("FATAL: Server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func registerTools(s *server.MCPServer, b *bridge.Bridge) {
	for _, tool := range toolDefinitions() {
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, err := b.Dispatch(ctx, req.Params.Name, plugincontract.Args(req.GetArguments()))
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(text), nil
		})
	}
}

func toolDefinitions() []mcp.Tool {
	stringItems := map[string]any{"type": "string"}

	return []mcp.Tool{
		mcp.NewTool(bridge.ToolConfigure,
			mcp.WithDescription("Configure FastMail API credentials"),
			mcp.WithString("apiToken", mcp.Required(),
				mcp.Description("FastMail API token from Settings > Privacy & Security > Integrations")),
			mcp.WithString("accountId",
				mcp.Description("Optional: FastMail account ID (will be auto-detected if not provided)")),
		),
		mcp.NewTool(bridge.ToolListMailboxes,
			mcp.WithDescription("List all mailboxes/folders in the FastMail account with names, roles, and counts"),
			mcp.WithString("role",
				mcp.Description("Filter by mailbox role: inbox, drafts, sent, trash, archive, junk")),
		),
		mcp.NewTool(bridge.ToolFindMailbox,
			mcp.WithDescription("Find a specific mailbox by name or role"),
			mcp.WithString("name",
				mcp.Description("Name of the mailbox to find (supports partial matching)")),
			mcp.WithString("role",
				mcp.Description("Mailbox role: inbox, drafts, sent, trash, archive, junk")),
		),
		mcp.NewTool(bridge.ToolGetEmails,
			mcp.WithDescription("Get emails from a specific mailbox or folder"),
			mcp.WithString("mailboxId",
				mcp.Description("ID of the mailbox (use find_mailbox or list_mailboxes to get ID)")),
			mcp.WithString("mailboxName",
				mcp.Description("Name of the mailbox (alternative to mailboxId)")),
			mcp.WithNumber("limit", mcp.DefaultNumber(20),
				mcp.Description("Maximum number of emails to retrieve")),
			mcp.WithBoolean("includeBody", mcp.DefaultBool(false),
				mcp.Description("Include email body content")),
		),
		mcp.NewTool(bridge.ToolSearchEmails,
			mcp.WithDescription("Search emails by keyword, sender, subject, or other criteria"),
			mcp.WithString("keyword",
				mcp.Description("Text to search for in email content, subject, from/to fields")),
			mcp.WithString("from_email",
				mcp.Description("Search emails from specific sender")),
			mcp.WithString("to_email",
				mcp.Description("Search emails sent to specific recipient")),
			mcp.WithString("subject",
				mcp.Description("Search emails by subject")),
			mcp.WithString("mailboxId",
				mcp.Description("Limit search to specific mailbox")),
			mcp.WithBoolean("hasAttachment",
				mcp.Description("Filter emails with/without attachments")),
			mcp.WithString("before",
				mcp.Description("Find emails before this date (YYYY-MM-DD format)")),
			mcp.WithString("after",
				mcp.Description("Find emails after this date (YYYY-MM-DD format)")),
			mcp.WithNumber("limit", mcp.DefaultNumber(20),
				mcp.Description("Maximum number of results")),
			mcp.WithBoolean("includeBody", mcp.DefaultBool(false),
				mcp.Description("Include email body content")),
		),
		mcp.NewTool(bridge.ToolGetEmailBody,
			mcp.WithDescription("Get the full body content of a specific email"),
			mcp.WithString("emailId", mcp.Required(),
				mcp.Description("ID of the email to retrieve body for")),
			mcp.WithString("format", mcp.DefaultString("text"),
				mcp.Description("Body format: text, html, or both")),
		),
		mcp.NewTool(bridge.ToolSendEmail,
			mcp.WithDescription("Send an email through FastMail"),
			mcp.WithArray("to", mcp.Required(), mcp.Items(stringItems),
				mcp.Description("Recipient email addresses")),
			mcp.WithArray("cc", mcp.Items(stringItems),
				mcp.Description("CC email addresses")),
			mcp.WithArray("bcc", mcp.Items(stringItems),
				mcp.Description("BCC email addresses")),
			mcp.WithString("subject", mcp.Required(),
				mcp.Description("Email subject")),
			mcp.WithString("body", mcp.Required(),
				mcp.Description("Email body content")),
			mcp.WithBoolean("isHtml", mcp.DefaultBool(false),
				mcp.Description("Whether the body is HTML format")),
		),
		mcp.NewTool(bridge.ToolMarkEmailRead,
			mcp.WithDescription("Mark an email as read or unread"),
			mcp.WithString("emailId", mcp.Required(),
				mcp.Description("ID of the email to update")),
			mcp.WithBoolean("read", mcp.DefaultBool(true),
				mcp.Description("true marks read, false marks unread")),
		),
		mcp.NewTool(bridge.ToolMoveEmail,
			mcp.WithDescription("Move an email to another mailbox"),
			mcp.WithString("emailId", mcp.Required(),
				mcp.Description("ID of the email to move")),
			mcp.WithString("mailboxId",
				mcp.Description("ID of the target mailbox")),
			mcp.WithString("mailboxName",
				mcp.Description("Name of the target mailbox (alternative to mailboxId)")),
		),
		mcp.NewTool(bridge.ToolDeleteEmail,
			mcp.WithDescription("Permanently delete an email"),
			mcp.WithString("emailId", mcp.Required(),
				mcp.Description("ID of the email to delete")),
		),
		mcp.NewTool(bridge.ToolSummarizeEmail,
			mcp.WithDescription("Generate a short AI summary of an email"),
			mcp.WithString("emailId", mcp.Required(),
				mcp.Description("ID of the email to summarize")),
		),
	}
}
