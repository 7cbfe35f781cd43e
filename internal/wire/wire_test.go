package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestArguments_MarshalPrefixesResultReference(t *testing.T) {
	args := Arguments{
		"accountId": "A1",
		"ids":       ResultReference{ResultOf: "q", Name: "Email/query", Path: "/ids"},
	}

	data, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("Marshal error = %v, want nil", err)
	}

	got := string(data)
	want := `{"#ids":{"resultOf":"q","name":"Email/query","path":"/ids"},"accountId":"A1"}`
	if got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestArguments_MarshalLeavesLiteralsAlone(t *testing.T) {
	// A literal that happens to look like a reference object must not be
	// treated as one.
	args := Arguments{
		"decoy": map[string]any{"resultOf": "q", "name": "Email/query", "path": "/ids"},
	}

	data, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("Marshal error = %v, want nil", err)
	}

	if strings.Contains(string(data), "#decoy") {
		t.Errorf("Marshal = %s, literal was encoded as a reference", data)
	}
}

func TestArguments_MarshalPrefixesNestedResultReference(t *testing.T) {
	// References buried inside creation objects held in plain maps and
	// slices must reach the wire in "#key" form too.
	args := Arguments{
		"create": map[string]any{
			"submission": map[string]any{
				"emailId": ResultReference{ResultOf: "e", Name: "Email/set", Path: "/created/draft/id"},
			},
		},
		"batched": []any{
			map[string]any{
				"ids": ResultReference{ResultOf: "q", Name: "Email/query", Path: "/ids"},
			},
		},
	}

	data, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("Marshal error = %v, want nil", err)
	}

	got := string(data)
	if !strings.Contains(got, `"#emailId":{"resultOf":"e","name":"Email/set","path":"/created/draft/id"}`) {
		t.Errorf("Marshal = %s, nested map reference lost its # marker", got)
	}
	if !strings.Contains(got, `"#ids":{"resultOf":"q","name":"Email/query","path":"/ids"}`) {
		t.Errorf("Marshal = %s, reference inside slice lost its # marker", got)
	}
	if strings.Contains(got, `"emailId"`) || strings.Contains(got, `"ids"`) {
		t.Errorf("Marshal = %s, reference also serialized under its bare key", got)
	}
}

func TestArguments_UnmarshalRecoversResultReference(t *testing.T) {
	data := []byte(`{"accountId":"A1","#ids":{"resultOf":"q","name":"Email/query","path":"/ids"}}`)

	var args Arguments
	if err := json.Unmarshal(data, &args); err != nil {
		t.Fatalf("Unmarshal error = %v, want nil", err)
	}

	ref, ok := args["ids"].(ResultReference)
	if !ok {
		t.Fatalf("args[ids] = %T, want ResultReference", args["ids"])
	}
	if ref.ResultOf != "q" || ref.Name != "Email/query" || ref.Path != "/ids" {
		t.Errorf("ref = %+v, want {q Email/query /ids}", ref)
	}
	if got, _ := args["accountId"].(string); got != "A1" {
		t.Errorf("accountId = %q, want %q", got, "A1")
	}
}

func TestMethodCall_MarshalsAsTriple(t *testing.T) {
	call := MethodCall{
		Name: "Mailbox/get",
		Args: Arguments{"accountId": "A1"},
		ID:   "a",
	}

	data, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("Marshal error = %v, want nil", err)
	}

	want := `["Mailbox/get",{"accountId":"A1"},"a"]`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestMethodCall_RoundTrip(t *testing.T) {
	orig := MethodCall{
		Name: "Email/get",
		Args: Arguments{
			"accountId": "A1",
			"ids":       ResultReference{ResultOf: "q", Name: "Email/query", Path: "/ids"},
		},
		ID: "g",
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal error = %v, want nil", err)
	}

	var decoded MethodCall
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v, want nil", err)
	}

	if decoded.Name != orig.Name || decoded.ID != orig.ID {
		t.Errorf("decoded = (%q, %q), want (%q, %q)", decoded.Name, decoded.ID, orig.Name, orig.ID)
	}
	ref, ok := decoded.Args["ids"].(ResultReference)
	if !ok {
		t.Fatalf("decoded args[ids] = %T, want ResultReference", decoded.Args["ids"])
	}
	if ref != orig.Args["ids"] {
		t.Errorf("ref = %+v, want %+v", ref, orig.Args["ids"])
	}
}

func TestInvocation_UnmarshalKeepsRawPayload(t *testing.T) {
	data := []byte(`["Mailbox/get",{"list":[{"id":"M1"}]},"a"]`)

	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		t.Fatalf("Unmarshal error = %v, want nil", err)
	}

	if inv.Name != "Mailbox/get" || inv.ID != "a" {
		t.Errorf("invocation = (%q, %q), want (Mailbox/get, a)", inv.Name, inv.ID)
	}

	var payload struct {
		List []struct {
			ID string `json:"id"`
		} `json:"list"`
	}
	if err := json.Unmarshal(inv.Args, &payload); err != nil {
		t.Fatalf("payload decode error = %v, want nil", err)
	}
	if len(payload.List) != 1 || payload.List[0].ID != "M1" {
		t.Errorf("payload.List = %+v, want one entry with id M1", payload.List)
	}
}

func TestInvocation_UnmarshalRejectsWrongArity(t *testing.T) {
	var inv Invocation
	if err := json.Unmarshal([]byte(`["Mailbox/get",{}]`), &inv); err == nil {
		t.Error("Unmarshal of 2-element invocation succeeded, want error")
	}
}

func TestResponse_Unmarshal(t *testing.T) {
	data := []byte(`{"methodResponses":[["Email/query",{"ids":["e1","e2"]},"q"]],"sessionState":"s-1"}`)

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("Unmarshal error = %v, want nil", err)
	}
	if len(resp.MethodResponses) != 1 {
		t.Fatalf("len(MethodResponses) = %d, want 1", len(resp.MethodResponses))
	}
	if resp.MethodResponses[0].ID != "q" {
		t.Errorf("label = %q, want %q", resp.MethodResponses[0].ID, "q")
	}
	if resp.SessionState != "s-1" {
		t.Errorf("sessionState = %q, want %q", resp.SessionState, "s-1")
	}
}
