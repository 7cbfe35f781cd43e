// Package filter compiles optional search criteria into a flat JMAP
// FilterCondition for Email/query.
package filter

import (
	"errors"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// ErrEmptyCriteria is returned when no search criterion is set; an empty
// filter is never produced.
var ErrEmptyCriteria = errors.New("search requires at least one criterion")

// Limits for query result counts.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Criteria is the closed set of optional search fields. Zero values mean
// "not set"; HasAttachment is a pointer so an explicit false is
// distinguishable from absent.
type Criteria struct {
	Keyword       string
	From          string
	To            string
	Subject       string
	MailboxID     string
	HasAttachment *bool
	// Before and After are YYYY-MM-DD dates. They are normalized to
	// inclusive full-day boundaries and otherwise passed through
	// unparsed; a malformed date surfaces as the server's
	// invalidArguments error.
	Before string
	After  string
	Limit  int
}

// condition binds one criterion to its JMAP predicate key.
type condition struct {
	key   string
	set   bool
	value any
}

// conditions enumerates every supported predicate, so the mapping from
// criteria to filter keys stays exhaustive in one place.
func (c Criteria) conditions() []condition {
	var hasAttachment any
	if c.HasAttachment != nil {
		hasAttachment = *c.HasAttachment
	}
	return []condition{
		{"text", c.Keyword != "", c.Keyword},
		{"from", c.From != "", c.From},
		{"to", c.To != "", c.To},
		{"subject", c.Subject != "", c.Subject},
		{"inMailbox", c.MailboxID != "", c.MailboxID},
		{"hasAttachment", c.HasAttachment != nil, hasAttachment},
		{"before", c.Before != "", c.Before + "T23:59:59Z"},
		{"after", c.After != "", c.After + "T00:00:00Z"},
	}
}

// Compile produces the FilterCondition containing exactly the predicates
// for the criteria that are set. Date bounds are anchored to the end and
// start of their day so "before"/"after" behave as on-or-before and
// on-or-after in a receivedAt-ordered query.
func (c Criteria) Compile() (wire.Arguments, error) {
	compiled := wire.Arguments{}
	for _, cond := range c.conditions() {
		if cond.set {
			compiled[cond.key] = cond.value
		}
	}
	if len(compiled) == 0 {
		return nil, ErrEmptyCriteria
	}
	return compiled, nil
}

// EffectiveLimit returns the result limit with the default applied and
// the maximum clamped.
func (c Criteria) EffectiveLimit() int {
	if c.Limit <= 0 {
		return DefaultLimit
	}
	if c.Limit > MaxLimit {
		return MaxLimit
	}
	return c.Limit
}
