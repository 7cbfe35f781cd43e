package mailops

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

func TestSendEmail(t *testing.T) {
	doer := &fakeDoer{responses: []*wire.Response{response(
		invocation(t, "Email/set", "e", map[string]any{
			"accountId": "A1",
			"newState":  "s2",
			"created":   map[string]any{"draft": map[string]any{"id": "D1"}},
		}),
		invocation(t, "EmailSubmission/set", "s", map[string]any{
			"accountId": "A1",
			"newState":  "s3",
			"created":   map[string]any{"submission": map[string]any{"id": "SUB1"}},
		}),
	)}}
	client := newTestClient(t, doer)

	result, err := client.SendEmail(context.Background(), SendParams{
		To:      []string{"to@example.com"},
		CC:      []string{"cc@example.com"},
		Subject: "Hi",
		Body:    "Hello",
	})
	if err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	if result.DraftID != "D1" || result.SubmissionID != "SUB1" {
		t.Errorf("result = %+v, want D1/SUB1", result)
	}

	if len(doer.requests) != 1 {
		t.Fatalf("transport calls = %d, want 1", len(doer.requests))
	}
	req := doer.requests[0]
	if len(req.MethodCalls) != 2 {
		t.Fatalf("len(MethodCalls) = %d, want 2", len(req.MethodCalls))
	}
	if req.MethodCalls[0].Name != "Email/set" || req.MethodCalls[0].ID != "e" {
		t.Errorf("call 0 = (%s, %s), want (Email/set, e)", req.MethodCalls[0].Name, req.MethodCalls[0].ID)
	}
	if req.MethodCalls[1].Name != "EmailSubmission/set" || req.MethodCalls[1].ID != "s" {
		t.Errorf("call 1 = (%s, %s), want (EmailSubmission/set, s)", req.MethodCalls[1].Name, req.MethodCalls[1].ID)
	}

	hasSubmission := false
	for _, cap := range req.Using {
		if cap == wire.CapabilitySubmission {
			hasSubmission = true
		}
	}
	if !hasSubmission {
		t.Errorf("Using = %v, missing submission capability", req.Using)
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if !strings.Contains(string(raw), `"#emailId":{"resultOf":"e","name":"Email/set","path":"/created/draft/id"}`) {
		t.Errorf("request missing emailId back-reference: %s", raw)
	}
	if !strings.Contains(string(raw), `"rcptTo":[{"email":"to@example.com"},{"email":"cc@example.com"}]`) {
		t.Errorf("envelope rcptTo wrong: %s", raw)
	}
	if !strings.Contains(string(raw), `"textBody":[{"partId":"body1","type":"text/plain"}]`) {
		t.Errorf("draft missing typed textBody part: %s", raw)
	}
}

func TestSendEmailHTMLBody(t *testing.T) {
	doer := &fakeDoer{responses: []*wire.Response{response(
		invocation(t, "Email/set", "e", map[string]any{
			"accountId": "A1",
			"created":   map[string]any{"draft": map[string]any{"id": "D1"}},
		}),
		invocation(t, "EmailSubmission/set", "s", map[string]any{
			"accountId": "A1",
			"created":   map[string]any{"submission": map[string]any{"id": "SUB1"}},
		}),
	)}}
	client := newTestClient(t, doer)

	if _, err := client.SendEmail(context.Background(), SendParams{
		To:     []string{"to@example.com"},
		Body:   "<p>Hi</p>",
		IsHTML: true,
	}); err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}

	raw, err := json.Marshal(doer.requests[0])
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if !strings.Contains(string(raw), `"htmlBody":[{"partId":"body1","type":"text/html"}]`) {
		t.Errorf("draft missing typed htmlBody part: %s", raw)
	}
	if strings.Contains(string(raw), `"textBody"`) {
		t.Errorf("HTML draft should not carry textBody: %s", raw)
	}
}

func TestSendEmailNoRecipients(t *testing.T) {
	doer := &fakeDoer{}
	client := newTestClient(t, doer)

	_, err := client.SendEmail(context.Background(), SendParams{Subject: "x", Body: "y"})
	if !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("error = %v, want ErrNoRecipients", err)
	}
	if len(doer.requests) != 0 {
		t.Errorf("transport calls = %d, want 0", len(doer.requests))
	}
}

func TestSendEmailDraftRejected(t *testing.T) {
	doer := &fakeDoer{responses: []*wire.Response{response(
		invocation(t, "Email/set", "e", map[string]any{
			"accountId": "A1",
			"notCreated": map[string]any{
				"draft": map[string]any{"type": "invalidProperties", "description": "bad to address"},
			},
		}),
		invocation(t, "EmailSubmission/set", "s", map[string]any{
			"accountId": "A1",
			"notCreated": map[string]any{
				"submission": map[string]any{"type": "invalidEmail"},
			},
		}),
	)}}
	client := newTestClient(t, doer)

	_, err := client.SendEmail(context.Background(), SendParams{To: []string{"to@example.com"}, Body: "x"})
	if !errors.Is(err, ErrDraftNotCreated) {
		t.Fatalf("error = %v, want ErrDraftNotCreated", err)
	}
	if !strings.Contains(err.Error(), "bad to address") {
		t.Errorf("error = %v, want draft failure description", err)
	}
	// The draft failure is reported from the Email/set outcome; the
	// dangling submission response is never surfaced and no second
	// round trip happens.
	if strings.Contains(err.Error(), "invalidEmail") {
		t.Errorf("error = %v, leaked submission outcome", err)
	}
	if len(doer.requests) != 1 {
		t.Errorf("transport calls = %d, want exactly 1", len(doer.requests))
	}
}

func TestSendEmailSubmissionRejected(t *testing.T) {
	doer := &fakeDoer{responses: []*wire.Response{response(
		invocation(t, "Email/set", "e", map[string]any{
			"accountId": "A1",
			"created":   map[string]any{"draft": map[string]any{"id": "D1"}},
		}),
		invocation(t, "EmailSubmission/set", "s", map[string]any{
			"accountId": "A1",
			"notCreated": map[string]any{
				"submission": map[string]any{"type": "tooManyRecipients", "description": "limit is 50"},
			},
		}),
	)}}
	client := newTestClient(t, doer)

	_, err := client.SendEmail(context.Background(), SendParams{To: []string{"to@example.com"}, Body: "x"})
	if !errors.Is(err, ErrSubmissionNotCreated) {
		t.Fatalf("error = %v, want ErrSubmissionNotCreated", err)
	}
	if !strings.Contains(err.Error(), "limit is 50") {
		t.Errorf("error = %v, want submission failure description", err)
	}
	if len(doer.requests) != 1 {
		t.Errorf("transport calls = %d, want exactly 1", len(doer.requests))
	}
}
