// Package correlate maps JMAP method responses back to the calls that
// issued them and decodes the per-method payload shapes.
//
// Correlation is by call label, never by position: servers may return
// responses in any order.
package correlate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// ErrMissingLabel indicates a request/response desync: a label the batch
// issued never appeared in the response. Fatal for the operation.
var ErrMissingLabel = errors.New("no response for call label")

// MethodError is a method-level error response ("error" in place of the
// method name, RFC 8620 §3.6.2).
type MethodError struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Error implements the error interface.
func (e *MethodError) Error() string {
	if e.Description == "" {
		return "method error: " + e.Type
	}
	return fmt.Sprintf("method error %s: %s", e.Type, e.Description)
}

// Results holds a response's invocations keyed by label.
type Results struct {
	byLabel map[string]wire.Invocation
}

// Correlate indexes a response by call label. When a server returns
// multiple invocations for one label, the first is kept.
func Correlate(resp *wire.Response) *Results {
	byLabel := make(map[string]wire.Invocation, len(resp.MethodResponses))
	for _, inv := range resp.MethodResponses {
		if _, exists := byLabel[inv.ID]; !exists {
			byLabel[inv.ID] = inv
		}
	}
	return &Results{byLabel: byLabel}
}

// Get returns the invocation answering label, or ErrMissingLabel.
func (r *Results) Get(label string) (wire.Invocation, error) {
	inv, ok := r.byLabel[label]
	if !ok {
		return wire.Invocation{}, fmt.Errorf("%w: %q", ErrMissingLabel, label)
	}
	return inv, nil
}

// MethodErrorOf returns the decoded method-level error when the
// invocation is an error response.
func MethodErrorOf(inv wire.Invocation) (*MethodError, bool) {
	if inv.Name != "error" {
		return nil, false
	}
	var merr MethodError
	if err := json.Unmarshal(inv.Args, &merr); err != nil {
		return &MethodError{Type: "serverFail", Description: "undecodable error payload"}, true
	}
	return &merr, true
}

// QueryPayload is the result of a query-style call: an ordered id list
// without field data.
type QueryPayload struct {
	AccountID  string   `json:"accountId"`
	QueryState string   `json:"queryState"`
	Position   int      `json:"position"`
	IDs        []string `json:"ids"`
	Total      int      `json:"total"`
}

// GetPayload is the result of a get-style call: full field data for the
// requested ids. List entries stay raw for typed decoding by the caller.
type GetPayload struct {
	AccountID string            `json:"accountId"`
	State     string            `json:"state"`
	List      []json.RawMessage `json:"list"`
	NotFound  []string          `json:"notFound"`
}

// SetError is the per-item failure shape inside a set-style result.
type SetError struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SetPayload is the result of a set-style call. Success and failure maps
// may be populated simultaneously; partial success is the normal case.
type SetPayload struct {
	AccountID    string                     `json:"accountId"`
	OldState     string                     `json:"oldState"`
	NewState     string                     `json:"newState"`
	Created      map[string]json.RawMessage `json:"created"`
	Updated      map[string]json.RawMessage `json:"updated"`
	Destroyed    []string                   `json:"destroyed"`
	NotCreated   map[string]SetError        `json:"notCreated"`
	NotUpdated   map[string]SetError        `json:"notUpdated"`
	NotDestroyed map[string]SetError        `json:"notDestroyed"`
}

// DecodeQuery decodes a query-style payload. A method-level error
// response is returned as the *MethodError itself.
func DecodeQuery(inv wire.Invocation) (*QueryPayload, error) {
	if merr, ok := MethodErrorOf(inv); ok {
		return nil, merr
	}
	var payload QueryPayload
	if err := json.Unmarshal(inv.Args, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", inv.Name, err)
	}
	return &payload, nil
}

// DecodeGet decodes a get-style payload.
func DecodeGet(inv wire.Invocation) (*GetPayload, error) {
	if merr, ok := MethodErrorOf(inv); ok {
		return nil, merr
	}
	var payload GetPayload
	if err := json.Unmarshal(inv.Args, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", inv.Name, err)
	}
	return &payload, nil
}

// DecodeSet decodes a set-style payload.
func DecodeSet(inv wire.Invocation) (*SetPayload, error) {
	if merr, ok := MethodErrorOf(inv); ok {
		return nil, merr
	}
	var payload SetPayload
	if err := json.Unmarshal(inv.Args, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", inv.Name, err)
	}
	return &payload, nil
}

// OutcomeKind identifies the variant of an ItemOutcome.
type OutcomeKind string

// Outcome variants for set-style calls.
const (
	OutcomeCreated      OutcomeKind = "created"
	OutcomeUpdated      OutcomeKind = "updated"
	OutcomeDestroyed    OutcomeKind = "destroyed"
	OutcomeNotCreated   OutcomeKind = "notCreated"
	OutcomeNotUpdated   OutcomeKind = "notUpdated"
	OutcomeNotDestroyed OutcomeKind = "notDestroyed"
)

// ItemOutcome is one per-item result of a set-style call. Failures are
// data, not errors: callers inspect them.
type ItemOutcome struct {
	Kind        OutcomeKind
	ID          string
	ClientKey   string
	ErrorType   string
	Description string
	// Fields carries the server-assigned properties of a created item.
	Fields json.RawMessage
}

// Failed reports whether the outcome is one of the Not* variants.
func (o ItemOutcome) Failed() bool {
	switch o.Kind {
	case OutcomeNotCreated, OutcomeNotUpdated, OutcomeNotDestroyed:
		return true
	}
	return false
}

// Outcomes flattens the payload into the full list of per-item results,
// successes and failures both. Entries are ordered by variant
// (created, updated, destroyed, then the Not* variants) and by key
// within each variant so the result is deterministic.
func (p *SetPayload) Outcomes() []ItemOutcome {
	var outcomes []ItemOutcome

	for _, key := range sortedKeys(p.Created) {
		fields := p.Created[key]
		var serverProps struct {
			ID string `json:"id"`
		}
		// Undecodable server fields leave the ID empty; the entry is
		// still reported.
		_ = json.Unmarshal(fields, &serverProps)
		outcomes = append(outcomes, ItemOutcome{
			Kind:      OutcomeCreated,
			ID:        serverProps.ID,
			ClientKey: key,
			Fields:    fields,
		})
	}
	for _, id := range sortedKeys(p.Updated) {
		outcomes = append(outcomes, ItemOutcome{Kind: OutcomeUpdated, ID: id})
	}
	for _, id := range p.Destroyed {
		outcomes = append(outcomes, ItemOutcome{Kind: OutcomeDestroyed, ID: id})
	}
	for _, key := range sortedKeys(p.NotCreated) {
		serr := p.NotCreated[key]
		outcomes = append(outcomes, ItemOutcome{
			Kind:        OutcomeNotCreated,
			ClientKey:   key,
			ErrorType:   serr.Type,
			Description: serr.Description,
		})
	}
	for _, id := range sortedKeys(p.NotUpdated) {
		serr := p.NotUpdated[id]
		outcomes = append(outcomes, ItemOutcome{
			Kind:        OutcomeNotUpdated,
			ID:          id,
			ErrorType:   serr.Type,
			Description: serr.Description,
		})
	}
	for _, id := range sortedKeys(p.NotDestroyed) {
		serr := p.NotDestroyed[id]
		outcomes = append(outcomes, ItemOutcome{
			Kind:        OutcomeNotDestroyed,
			ID:          id,
			ErrorType:   serr.Type,
			Description: serr.Description,
		})
	}

	return outcomes
}

// CreatedID returns the server id assigned to the item created under
// clientKey.
func (p *SetPayload) CreatedID(clientKey string) (string, bool) {
	fields, ok := p.Created[clientKey]
	if !ok {
		return "", false
	}
	var serverProps struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(fields, &serverProps); err != nil || serverProps.ID == "" {
		return "", false
	}
	return serverProps.ID, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
