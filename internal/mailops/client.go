package mailops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/correlate"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/session"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// Operation errors.
var (
	ErrMailboxNotFound = errors.New("mailbox not found")
	ErrEmailNotFound   = errors.New("email not found")
)

// Doer submits one finalized batch as a single round trip.
type Doer interface {
	Call(ctx context.Context, snap *session.Context, req *wire.Request) (*wire.Response, error)
}

// Client implements the mail operations. It holds no per-operation
// state; every operation reads one session snapshot and builds its own
// batch.
type Client struct {
	transport Doer
	sessions  *session.Store
	logger    *slog.Logger
}

// NewClient creates a Client.
func NewClient(transport Doer, sessions *session.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		sessions:  sessions,
		logger:    logger,
	}
}

// Sessions returns the session store the client reads.
func (c *Client) Sessions() *session.Store {
	return c.sessions
}

// roundTrip finalizes nothing; it sends an already finalized request
// and correlates the reply by label.
func (c *Client) roundTrip(ctx context.Context, snap *session.Context, req *wire.Request) (*correlate.Results, error) {
	resp, err := c.transport.Call(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	return correlate.Correlate(resp), nil
}

// decodeEmails decodes a get payload's list entries into Email values.
func decodeEmails(payload *correlate.GetPayload) ([]Email, error) {
	emails := make([]Email, 0, len(payload.List))
	for _, raw := range payload.List {
		var email Email
		if err := json.Unmarshal(raw, &email); err != nil {
			return nil, fmt.Errorf("decode email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, nil
}
