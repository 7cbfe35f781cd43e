package mailops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/batch"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/correlate"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// MarkEmailRead sets or clears the $seen keyword on one email.
func (c *Client) MarkEmailRead(ctx context.Context, emailID string, read bool) error {
	var seen any
	if read {
		seen = true
	}
	return c.updateEmail(ctx, emailID, wire.Arguments{
		"keywords/$seen": seen,
	})
}

// MoveEmail replaces the email's mailbox membership with the target
// mailbox, resolved by id or name.
func (c *Client) MoveEmail(ctx context.Context, emailID, mailboxID, mailboxName string) error {
	target, err := c.ResolveMailboxID(ctx, mailboxID, mailboxName)
	if err != nil {
		return err
	}
	return c.updateEmail(ctx, emailID, wire.Arguments{
		"mailboxIds": map[string]any{target: true},
	})
}

func (c *Client) updateEmail(ctx context.Context, emailID string, patch wire.Arguments) error {
	snap, err := c.sessions.Current()
	if err != nil {
		return err
	}

	b := batch.New()
	if err := b.Append("Email/set", wire.Arguments{
		"accountId": snap.AccountID,
		"update":    map[string]any{emailID: patch},
	}, "u"); err != nil {
		return err
	}
	req, err := b.Finalize(snap)
	if err != nil {
		return err
	}

	results, err := c.roundTrip(ctx, snap, req)
	if err != nil {
		return err
	}
	inv, err := results.Get("u")
	if err != nil {
		return err
	}
	payload, err := correlate.DecodeSet(inv)
	if err != nil {
		return err
	}
	if failure, ok := payload.NotUpdated[emailID]; ok {
		return fmt.Errorf("update email %s: %s: %s", emailID, failure.Type, failure.Description)
	}
	if _, ok := payload.Updated[emailID]; !ok {
		return fmt.Errorf("update email %s: %w", emailID, ErrEmailNotFound)
	}

	c.logger.InfoContext(ctx, "Email updated",
		slog.String("account_id", snap.AccountID),
		slog.String("email_id", emailID),
	)
	return nil
}

// DeleteEmail permanently destroys one email.
func (c *Client) DeleteEmail(ctx context.Context, emailID string) error {
	snap, err := c.sessions.Current()
	if err != nil {
		return err
	}

	b := batch.New()
	if err := b.Append("Email/set", wire.Arguments{
		"accountId": snap.AccountID,
		"destroy":   []string{emailID},
	}, "d"); err != nil {
		return err
	}
	req, err := b.Finalize(snap)
	if err != nil {
		return err
	}

	results, err := c.roundTrip(ctx, snap, req)
	if err != nil {
		return err
	}
	inv, err := results.Get("d")
	if err != nil {
		return err
	}
	payload, err := correlate.DecodeSet(inv)
	if err != nil {
		return err
	}
	if failure, ok := payload.NotDestroyed[emailID]; ok {
		return fmt.Errorf("delete email %s: %s: %s", emailID, failure.Type, failure.Description)
	}
	destroyed := false
	for _, id := range payload.Destroyed {
		if id == emailID {
			destroyed = true
			break
		}
	}
	if !destroyed {
		return fmt.Errorf("delete email %s: %w", emailID, ErrEmailNotFound)
	}

	c.logger.InfoContext(ctx, "Email deleted",
		slog.String("account_id", snap.AccountID),
		slog.String("email_id", emailID),
	)
	return nil
}
