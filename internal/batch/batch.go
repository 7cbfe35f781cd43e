// Package batch assembles ordered, labeled JMAP method calls into a
// single wire request. Assembly is pure: no I/O happens here, so call
// sequences are testable without a transport.
package batch

import (
	"errors"
	"fmt"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/session"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// Composition errors, detected before any network I/O.
var (
	ErrDuplicateLabel       = errors.New("duplicate call label")
	ErrInvalidBackReference = errors.New("invalid back-reference")
	ErrEmptyBatch           = errors.New("batch has no calls")
)

// Batch is an ordered sequence of labeled method calls under
// construction.
type Batch struct {
	calls  []wire.MethodCall
	labels map[string]int
}

// New creates an empty Batch.
func New() *Batch {
	return &Batch{labels: make(map[string]int)}
}

// Reference builds a pointer to the value at path inside the result of
// the call labeled sourceLabel. The pointer is resolved by the server,
// never locally.
func Reference(sourceLabel, sourceMethod, path string) wire.ResultReference {
	return wire.ResultReference{
		ResultOf: sourceLabel,
		Name:     sourceMethod,
		Path:     path,
	}
}

// Append adds a call to the end of the batch. The label must be unique
// within the batch, and any ResultReference already present in args must
// point at a previously appended call.
func (b *Batch) Append(method string, args wire.Arguments, label string) error {
	if label == "" {
		return fmt.Errorf("call label for %s must not be empty", method)
	}
	if _, exists := b.labels[label]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
	}
	for _, ref := range findReferences(args) {
		if _, ok := b.labels[ref.ResultOf]; !ok {
			return fmt.Errorf("%w: %q does not label an earlier call", ErrInvalidBackReference, ref.ResultOf)
		}
	}

	if args == nil {
		args = wire.Arguments{}
	}
	b.labels[label] = len(b.calls)
	b.calls = append(b.calls, wire.MethodCall{Name: method, Args: args, ID: label})
	return nil
}

// Embed places ref under key in the arguments of the call labeled label.
// The reference must point at a call appearing strictly earlier in the
// batch; forward and self references fail with ErrInvalidBackReference.
func (b *Batch) Embed(label, key string, ref wire.ResultReference) error {
	idx, ok := b.labels[label]
	if !ok {
		return fmt.Errorf("no call labeled %q in batch", label)
	}
	src, ok := b.labels[ref.ResultOf]
	if !ok {
		return fmt.Errorf("%w: %q does not label any call", ErrInvalidBackReference, ref.ResultOf)
	}
	if src >= idx {
		return fmt.Errorf("%w: %q does not precede %q", ErrInvalidBackReference, ref.ResultOf, label)
	}
	b.calls[idx].Args[key] = ref
	return nil
}

// Labels returns the batch's call labels in append order.
func (b *Batch) Labels() []string {
	labels := make([]string, len(b.calls))
	for i, call := range b.calls {
		labels[i] = call.ID
	}
	return labels
}

// Finalize validates the session snapshot and produces the wire request.
// The capability set always includes core and mail, plus submission when
// an EmailSubmission call is present.
func (b *Batch) Finalize(snap *session.Context) (*wire.Request, error) {
	if !snap.Configured() {
		return nil, session.ErrNotConfigured
	}
	if len(b.calls) == 0 {
		return nil, ErrEmptyBatch
	}

	using := []string{wire.CapabilityCore, wire.CapabilityMail}
	for _, call := range b.calls {
		if len(call.Name) > len("EmailSubmission/") && call.Name[:len("EmailSubmission/")] == "EmailSubmission/" {
			using = append(using, wire.CapabilitySubmission)
			break
		}
	}

	calls := make([]wire.MethodCall, len(b.calls))
	copy(calls, b.calls)
	return &wire.Request{Using: using, MethodCalls: calls}, nil
}

// findReferences walks an argument value and collects every embedded
// ResultReference, including ones nested inside creation objects.
func findReferences(v any) []wire.ResultReference {
	switch val := v.(type) {
	case wire.ResultReference:
		return []wire.ResultReference{val}
	case *wire.ResultReference:
		if val != nil {
			return []wire.ResultReference{*val}
		}
	case wire.Arguments:
		return findReferencesInMap(map[string]any(val))
	case map[string]any:
		return findReferencesInMap(val)
	case []any:
		var refs []wire.ResultReference
		for _, item := range val {
			refs = append(refs, findReferences(item)...)
		}
		return refs
	}
	return nil
}

func findReferencesInMap(m map[string]any) []wire.ResultReference {
	var refs []wire.ResultReference
	for _, item := range m {
		refs = append(refs, findReferences(item)...)
	}
	return refs
}
