package filter

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

func boolPtr(b bool) *bool { return &b }

func TestCompile_ExactKeySet(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		wantKeys []string
	}{
		{
			name:     "keyword only",
			criteria: Criteria{Keyword: "invoice"},
			wantKeys: []string{"text"},
		},
		{
			name:     "sender and subject",
			criteria: Criteria{From: "a@example.com", Subject: "hello"},
			wantKeys: []string{"from", "subject"},
		},
		{
			name:     "mailbox and attachment",
			criteria: Criteria{MailboxID: "M1", HasAttachment: boolPtr(true)},
			wantKeys: []string{"hasAttachment", "inMailbox"},
		},
		{
			name:     "explicit false attachment still compiles",
			criteria: Criteria{HasAttachment: boolPtr(false)},
			wantKeys: []string{"hasAttachment"},
		},
		{
			name: "everything",
			criteria: Criteria{
				Keyword: "k", From: "f@x", To: "t@x", Subject: "s",
				MailboxID: "M1", HasAttachment: boolPtr(true),
				Before: "2024-01-10", After: "2024-01-01",
			},
			wantKeys: []string{"after", "before", "from", "hasAttachment", "inMailbox", "subject", "text", "to"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.criteria.Compile()
			if err != nil {
				t.Fatalf("Compile error = %v, want nil", err)
			}

			var gotKeys []string
			for k := range compiled {
				gotKeys = append(gotKeys, k)
			}
			sort.Strings(gotKeys)
			if !reflect.DeepEqual(gotKeys, tt.wantKeys) {
				t.Errorf("keys = %v, want %v", gotKeys, tt.wantKeys)
			}
		})
	}
}

func TestCompile_EmptyCriteria(t *testing.T) {
	_, err := Criteria{}.Compile()
	if !errors.Is(err, ErrEmptyCriteria) {
		t.Errorf("Compile error = %v, want ErrEmptyCriteria", err)
	}

	// Limit alone is not a criterion.
	_, err = Criteria{Limit: 50}.Compile()
	if !errors.Is(err, ErrEmptyCriteria) {
		t.Errorf("Compile with only limit error = %v, want ErrEmptyCriteria", err)
	}
}

func TestCompile_DateNormalization(t *testing.T) {
	compiled, err := Criteria{Before: "2024-01-10", After: "2024-01-01"}.Compile()
	if err != nil {
		t.Fatalf("Compile error = %v, want nil", err)
	}

	if got := compiled["before"]; got != "2024-01-10T23:59:59Z" {
		t.Errorf("before = %v, want 2024-01-10T23:59:59Z", got)
	}
	if got := compiled["after"]; got != "2024-01-01T00:00:00Z" {
		t.Errorf("after = %v, want 2024-01-01T00:00:00Z", got)
	}
}

func TestCompile_MalformedDatePassesThrough(t *testing.T) {
	compiled, err := Criteria{Before: "not-a-date"}.Compile()
	if err != nil {
		t.Fatalf("Compile error = %v, want nil", err)
	}
	if got := compiled["before"]; got != "not-a-dateT23:59:59Z" {
		t.Errorf("before = %v, want pass-through with suffix", got)
	}
}

func TestCompile_ValueMapping(t *testing.T) {
	compiled, err := Criteria{
		Keyword:   "report",
		From:      "boss@example.com",
		MailboxID: "M7",
	}.Compile()
	if err != nil {
		t.Fatalf("Compile error = %v, want nil", err)
	}

	want := wire.Arguments{
		"text":      "report",
		"from":      "boss@example.com",
		"inMailbox": "M7",
	}
	if !reflect.DeepEqual(compiled, want) {
		t.Errorf("compiled = %v, want %v", compiled, want)
	}
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{1, 1},
		{100, 100},
		{500, MaxLimit},
	}

	for _, tt := range tests {
		if got := (Criteria{Limit: tt.limit}).EffectiveLimit(); got != tt.want {
			t.Errorf("EffectiveLimit(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}
