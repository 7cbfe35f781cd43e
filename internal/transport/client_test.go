package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/session"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// fakeHTTPDoer implements HTTPDoer for testing.
type fakeHTTPDoer struct {
	doFunc func(req *http.Request) (*http.Response, error)
	calls  int
}

func (f *fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	f.calls++
	return f.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testRequest() *wire.Request {
	return &wire.Request{
		Using: []string{wire.CapabilityCore, wire.CapabilityMail},
		MethodCalls: []wire.MethodCall{
			{Name: "Mailbox/get", Args: wire.Arguments{"accountId": "A1"}, ID: "a"},
		},
	}
}

func TestCall_SendsBearerTokenAndBody(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte
	fake := &fakeHTTPDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		captured = req
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{"methodResponses":[]}`), nil
	}}
	client := NewClient(fake, Config{APIURL: "https://jmap.example.com/api/"})

	snap := &session.Context{Token: "tok-1", AccountID: "A1"}
	if _, err := client.Call(context.Background(), snap, testRequest()); err != nil {
		t.Fatalf("Call error = %v, want nil", err)
	}

	if got := captured.Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-1")
	}
	if got := captured.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if captured.URL.String() != "https://jmap.example.com/api/" {
		t.Errorf("URL = %q, want configured API URL", captured.URL)
	}

	var sent wire.Request
	if err := json.Unmarshal(capturedBody, &sent); err != nil {
		t.Fatalf("request body is not a wire request: %v", err)
	}
	if len(sent.MethodCalls) != 1 || sent.MethodCalls[0].Name != "Mailbox/get" {
		t.Errorf("sent calls = %+v, want one Mailbox/get", sent.MethodCalls)
	}
}

func TestCall_Unconfigured(t *testing.T) {
	client := NewClient(&fakeHTTPDoer{doFunc: func(*http.Request) (*http.Response, error) {
		t.Fatal("no request should be sent")
		return nil, nil
	}}, Config{})

	_, err := client.Call(context.Background(), &session.Context{Token: "tok-1"}, testRequest())
	if !errors.Is(err, session.ErrNotConfigured) {
		t.Errorf("Call error = %v, want ErrNotConfigured", err)
	}
}

func TestCall_Non2xxSurfacedWithoutRetry(t *testing.T) {
	fake := &fakeHTTPDoer{doFunc: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, "upstream unavailable"), nil
	}}
	client := NewClient(fake, Config{})

	snap := &session.Context{Token: "tok-1", AccountID: "A1"}
	_, err := client.Call(context.Background(), snap, testRequest())

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Call error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", httpErr.StatusCode)
	}
	if httpErr.Body != "upstream unavailable" {
		t.Errorf("Body = %q, want raw body", httpErr.Body)
	}
	// One round trip only: a failed request is never silently retried.
	if fake.calls != 1 {
		t.Errorf("HTTP calls = %d, want 1", fake.calls)
	}
}

func TestCall_DecodesResponse(t *testing.T) {
	fake := &fakeHTTPDoer{doFunc: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"methodResponses":[["Mailbox/get",{"list":[]},"a"]],"sessionState":"s1"}`), nil
	}}
	client := NewClient(fake, Config{})

	snap := &session.Context{Token: "tok-1", AccountID: "A1"}
	resp, err := client.Call(context.Background(), snap, testRequest())
	if err != nil {
		t.Fatalf("Call error = %v, want nil", err)
	}
	if len(resp.MethodResponses) != 1 || resp.MethodResponses[0].ID != "a" {
		t.Errorf("response = %+v, want one invocation labeled a", resp.MethodResponses)
	}
}

func TestBootstrapSession(t *testing.T) {
	var captured *http.Request
	fake := &fakeHTTPDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `{
			"username": "user@example.com",
			"primaryAccounts": {"urn:ietf:params:jmap:mail": "A42"}
		}`), nil
	}}
	client := NewClient(fake, Config{SessionURL: "https://jmap.example.com/session"})

	result, err := client.BootstrapSession(context.Background(), "tok-9")
	if err != nil {
		t.Fatalf("BootstrapSession error = %v, want nil", err)
	}
	if result.AccountID != "A42" {
		t.Errorf("AccountID = %q, want A42", result.AccountID)
	}
	if result.Identity != "user@example.com" {
		t.Errorf("Identity = %q, want user@example.com", result.Identity)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer tok-9" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-9")
	}
}

func TestBootstrapSession_AuthFailure(t *testing.T) {
	fake := &fakeHTTPDoer{doFunc: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, "bad token"), nil
	}}
	client := NewClient(fake, Config{})

	_, err := client.BootstrapSession(context.Background(), "tok-bad")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("BootstrapSession error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", httpErr.StatusCode)
	}
}
