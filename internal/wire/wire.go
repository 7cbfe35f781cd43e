// Package wire defines the JMAP request and response envelope shapes
// exchanged with a remote mail server (RFC 8620 §3.3).
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Capability URNs advertised in the "using" array.
const (
	CapabilityCore       = "urn:ietf:params:jmap:core"
	CapabilityMail       = "urn:ietf:params:jmap:mail"
	CapabilitySubmission = "urn:ietf:params:jmap:submission"
)

// ResultReference points into the result of an earlier call in the same
// request (RFC 8620 §3.7). It is a placeholder resolved by the server,
// never evaluated locally.
type ResultReference struct {
	ResultOf string `json:"resultOf"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

// Arguments is the argument object of a method call. Values are either
// plain literals or ResultReference placeholders; a ResultReference is
// only converted to its "#key" wire form when the arguments are
// serialized, so in-memory code never confuses a reference with a
// literal that happens to have the same shape.
type Arguments map[string]any

// MarshalJSON encodes the arguments with keys in sorted order, prefixing
// the key of every ResultReference value with "#". The prefix is applied
// at every nesting level, so references inside creation objects held in
// plain maps or slices reach the wire in their "#key" form too.
func (a Arguments) MarshalJSON() ([]byte, error) {
	// Sort by the output key form (with the "#" prefix applied) so the
	// serialized object has its wire keys in sorted order.
	type entry struct{ outKey, bareKey string }
	entries := make([]entry, 0, len(a))
	for k, val := range a {
		outKey := k
		switch val.(type) {
		case ResultReference, *ResultReference:
			outKey = "#" + k
		}
		entries = append(entries, entry{outKey: outKey, bareKey: k})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].outKey < entries[j].outKey })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(e.outKey)
		if err != nil {
			return nil, err
		}
		valJSON, err := marshalArgumentValue(a[e.bareKey])
		if err != nil {
			return nil, fmt.Errorf("marshal argument %q: %w", e.bareKey, err)
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalArgumentValue serializes one argument value, descending into
// plain maps and slices so nested ResultReference entries get the same
// "#key" treatment as top-level ones.
func marshalArgumentValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case Arguments:
		return val.MarshalJSON()
	case map[string]any:
		return Arguments(val).MarshalJSON()
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemJSON, err := marshalArgumentValue(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemJSON)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes an argument object, converting "#key" entries
// back into ResultReference values under their bare key.
func (a *Arguments) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Arguments, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, "#") {
			var ref ResultReference
			if err := json.Unmarshal(v, &ref); err != nil {
				return fmt.Errorf("decode result reference %q: %w", k, err)
			}
			out[strings.TrimPrefix(k, "#")] = ref
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		out[k] = val
	}
	*a = out
	return nil
}

// MethodCall is one invocation in a request: [name, arguments, label].
type MethodCall struct {
	Name string
	Args Arguments
	ID   string
}

// MarshalJSON encodes the call as a three-element array.
func (c MethodCall) MarshalJSON() ([]byte, error) {
	args := c.Args
	if args == nil {
		args = Arguments{}
	}
	return json.Marshal([]any{c.Name, args, c.ID})
}

// UnmarshalJSON decodes a three-element invocation array.
func (c *MethodCall) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("invocation must have 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &c.Name); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &c.Args); err != nil {
		return err
	}
	return json.Unmarshal(parts[2], &c.ID)
}

// Invocation is one entry of a response: [name, payload, label]. The
// payload is kept raw so callers can decode it into the typed shape
// selected by the method name.
type Invocation struct {
	Name string
	Args json.RawMessage
	ID   string
}

// MarshalJSON encodes the invocation as a three-element array.
func (inv Invocation) MarshalJSON() ([]byte, error) {
	args := inv.Args
	if args == nil {
		args = json.RawMessage("{}")
	}
	return json.Marshal([]any{inv.Name, args, inv.ID})
}

// UnmarshalJSON decodes a three-element invocation array.
func (inv *Invocation) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("invocation must have 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &inv.Name); err != nil {
		return err
	}
	inv.Args = append(json.RawMessage(nil), parts[1]...)
	return json.Unmarshal(parts[2], &inv.ID)
}

// Request is the top-level JMAP request envelope.
type Request struct {
	Using       []string     `json:"using"`
	MethodCalls []MethodCall `json:"methodCalls"`
}

// Response is the top-level JMAP response envelope. Entries correlate to
// request calls by label only; their order carries no meaning.
type Response struct {
	MethodResponses []Invocation `json:"methodResponses"`
	SessionState    string       `json:"sessionState,omitempty"`
}
