package mailops

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/batch"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/correlate"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// ListMailboxes fetches every mailbox in the account, optionally
// filtered to one role client-side.
func (c *Client) ListMailboxes(ctx context.Context, role string) ([]Mailbox, error) {
	mailboxes, err := c.fetchMailboxes(ctx)
	if err != nil {
		return nil, err
	}

	if role == "" {
		return mailboxes, nil
	}
	filtered := make([]Mailbox, 0, len(mailboxes))
	for _, mb := range mailboxes {
		if mb.Role == role {
			filtered = append(filtered, mb)
		}
	}
	return filtered, nil
}

// FindMailbox returns the mailboxes matching a role exactly or a name
// substring (case-insensitive).
func (c *Client) FindMailbox(ctx context.Context, name, role string) ([]Mailbox, error) {
	mailboxes, err := c.fetchMailboxes(ctx)
	if err != nil {
		return nil, err
	}

	nameLower := strings.ToLower(name)
	var found []Mailbox
	for _, mb := range mailboxes {
		switch {
		case role != "" && mb.Role == role:
			found = append(found, mb)
		case nameLower != "" && strings.Contains(strings.ToLower(mb.Name), nameLower):
			found = append(found, mb)
		}
	}
	return found, nil
}

// ResolveMailboxID resolves either an explicit mailbox id or a mailbox
// name to an id. An id passes through untouched.
func (c *Client) ResolveMailboxID(ctx context.Context, id, name string) (string, error) {
	if id != "" {
		return id, nil
	}
	if name == "" {
		return "", fmt.Errorf("either a mailbox id or a mailbox name is required")
	}

	mailboxes, err := c.fetchMailboxes(ctx)
	if err != nil {
		return "", err
	}
	for _, mb := range mailboxes {
		if strings.EqualFold(mb.Name, name) {
			return mb.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrMailboxNotFound, name)
}

// fetchMailboxes issues the single-call Mailbox/get batch.
func (c *Client) fetchMailboxes(ctx context.Context) ([]Mailbox, error) {
	snap, err := c.sessions.Current()
	if err != nil {
		return nil, err
	}

	b := batch.New()
	if err := b.Append("Mailbox/get", wire.Arguments{"accountId": snap.AccountID}, "a"); err != nil {
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
	inv, err := results.Get("a")
	if err != nil {
		return nil, err
	}
	payload, err := correlate.DecodeGet(inv)
	if err != nil {
		return nil, err
	}

	mailboxes := make([]Mailbox, 0, len(payload.List))
	for _, raw := range payload.List {
		var mb Mailbox
		if err := json.Unmarshal(raw, &mb); err != nil {
			return nil, fmt.Errorf("decode mailbox: %w", err)
		}
		mailboxes = append(mailboxes, mb)
	}

	c.logger.InfoContext(ctx, "Fetched mailboxes",
		slog.String("account_id", snap.AccountID),
		slog.Int("count", len(mailboxes)),
	)
	return mailboxes, nil
}
