package main

import "testing"

func TestToolDefinitionsComplete(t *testing.T) {
	want := map[string]bool{
		"configure_fastmail": false,
		"list_mailboxes":     false,
		"find_mailbox":       false,
		"get_emails":         false,
		"search_emails":      false,
		"get_email_body":     false,
		"send_email":         false,
		"mark_email_read":    false,
		"move_email":         false,
		"delete_email":       false,
		"summarize_email":    false,
	}

	tools := toolDefinitions()
	for _, tool := range tools {
		seen, tracked := want[tool.Name]
		if !tracked {
			t.Errorf("unexpected tool %q", tool.Name)
			continue
		}
		if seen {
			t.Errorf("tool %q defined twice", tool.Name)
		}
		want[tool.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %q missing from definitions", name)
		}
	}
}
