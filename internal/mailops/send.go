package mailops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/batch"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/correlate"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// Send failure sentinels. Neither is ever retried automatically.
var (
	ErrNoRecipients         = errors.New("no recipients")
	ErrDraftNotCreated      = errors.New("draft not created")
	ErrSubmissionNotCreated = errors.New("submission not created")
)

// SendParams describes an outgoing email.
type SendParams struct {
	To      []string
	CC      []string
	BCC     []string
	Subject string
	Body    string
	IsHTML  bool
}

// SendResult reports the server ids of a successful send.
type SendResult struct {
	SubmissionID string
	DraftID      string
}

// SendEmail creates a draft and submits it in a single batch. The
// Email/set call runs under label e and the EmailSubmission/set call
// under label s, with the submission's emailId back-referencing the
// created draft. If the draft fails the submission response is never
// examined; the failure is reported from the Email/set outcome and no
// second round trip is made.
func (c *Client) SendEmail(ctx context.Context, params SendParams) (*SendResult, error) {
	if len(params.To) == 0 {
		return nil, ErrNoRecipients
	}
	snap, err := c.sessions.Current()
	if err != nil {
		return nil, err
	}

	bodyField, mimeType := "textBody", "text/plain"
	if params.IsHTML {
		bodyField, mimeType = "htmlBody", "text/html"
	}
	draft := wire.Arguments{
		"from":    []any{map[string]any{"email": snap.Identity}},
		"to":      addressList(params.To),
		"subject": params.Subject,
		"bodyValues": map[string]any{
			"body1": map[string]any{"value": params.Body},
		},
		bodyField: []any{map[string]any{"partId": "body1", "type": mimeType}},
	}
	if len(params.CC) > 0 {
		draft["cc"] = addressList(params.CC)
	}
	if len(params.BCC) > 0 {
		draft["bcc"] = addressList(params.BCC)
	}

	b := batch.New()
	if err := b.Append("Email/set", wire.Arguments{
		"accountId": snap.AccountID,
		"create":    map[string]any{"draft": draft},
	}, "e"); err != nil {
		return nil, err
	}

	rcpts := make([]any, 0, len(params.To)+len(params.CC)+len(params.BCC))
	for _, addr := range params.To {
		rcpts = append(rcpts, map[string]any{"email": addr})
	}
	for _, addr := range params.CC {
		rcpts = append(rcpts, map[string]any{"email": addr})
	}
	for _, addr := range params.BCC {
		rcpts = append(rcpts, map[string]any{"email": addr})
	}
	if err := b.Append("EmailSubmission/set", wire.Arguments{
		"accountId": snap.AccountID,
		"create": map[string]any{
			"submission": wire.Arguments{
				"emailId": batch.Reference("e", "Email/set", "/created/draft/id"),
				"envelope": map[string]any{
					"mailFrom": map[string]any{"email": snap.Identity},
					"rcptTo":   rcpts,
				},
			},
		},
	}, "s"); err != nil {
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

	einv, err := results.Get("e")
	if err != nil {
		return nil, err
	}
	eset, err := correlate.DecodeSet(einv)
	if err != nil {
		return nil, err
	}
	draftID, ok := eset.CreatedID("draft")
	if !ok {
		if failure, present := eset.NotCreated["draft"]; present {
			return nil, fmt.Errorf("%w: %s: %s", ErrDraftNotCreated, failure.Type, failure.Description)
		}
		return nil, ErrDraftNotCreated
	}

	sinv, err := results.Get("s")
	if err != nil {
		return nil, err
	}
	sset, err := correlate.DecodeSet(sinv)
	if err != nil {
		return nil, err
	}
	submissionID, ok := sset.CreatedID("submission")
	if !ok {
		if failure, present := sset.NotCreated["submission"]; present {
			return nil, fmt.Errorf("%w: %s: %s", ErrSubmissionNotCreated, failure.Type, failure.Description)
		}
		return nil, ErrSubmissionNotCreated
	}

	c.logger.InfoContext(ctx, "Email sent",
		slog.String("account_id", snap.AccountID),
		slog.String("draft_id", draftID),
		slog.String("submission_id", submissionID),
	)
	return &SendResult{SubmissionID: submissionID, DraftID: draftID}, nil
}

func addressList(addrs []string) []any {
	out := make([]any, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, map[string]any{"email": addr})
	}
	return out
}
