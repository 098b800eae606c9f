// Package migrate implements schema-migration-on-read for records stored in
// a legacy or incompatible format. Each entity declares an ordered rule table
// describing its fields; applying the table to a decoded document nulls out
// missing required fields and drops fields whose values no longer validate,
// so that as much of a legacy record as possible survives archival.
package migrate

import (
	"context"
	"log/slog"
)

// Rule describes the migration policy for one field of an entity.
type Rule struct {
	// Field is the document key as persisted (YAML tag).
	Field string
	// Required fields that are absent are nulled out explicitly instead of
	// being rejected.
	Required bool
	// Validate checks the decoded value. A nil Validate accepts anything.
	Validate func(value any) error
}

// Result reports what Apply changed.
type Result struct {
	Nulled  []string
	Dropped []string
}

// Changed reports whether the document was modified.
func (r Result) Changed() bool {
	return len(r.Nulled) > 0 || len(r.Dropped) > 0
}

// Apply runs the rule table over a decoded document in place. Field-level
// failures are logged and swallowed; the caller archives the stripped
// document afterwards and surfaces only archive-write failures.
func Apply(ctx context.Context, doc map[string]any, rules []Rule) Result {
	var res Result
	for _, rule := range rules {
		value, ok := doc[rule.Field]
		if !ok || value == nil {
			if rule.Required {
				doc[rule.Field] = nil
				res.Nulled = append(res.Nulled, rule.Field)
			}
			continue
		}
		if rule.Validate == nil {
			continue
		}
		if err := rule.Validate(value); err != nil {
			slog.WarnContext(ctx, "dropping invalid field from deprecated record",
				"field", rule.Field, "error", err)
			delete(doc, rule.Field)
			res.Dropped = append(res.Dropped, rule.Field)
		}
	}
	// Unknown fields are not part of any rule and are dropped as well.
	known := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		known[rule.Field] = struct{}{}
	}
	for key := range doc {
		if _, ok := known[key]; !ok {
			delete(doc, key)
			res.Dropped = append(res.Dropped, key)
		}
	}
	return res
}

// Validates reports whether the document passes the rule table without
// modification: every required field present and every present field valid.
func Validates(doc map[string]any, rules []Rule) bool {
	known := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		known[rule.Field] = struct{}{}
		value, ok := doc[rule.Field]
		if !ok || value == nil {
			if rule.Required {
				return false
			}
			continue
		}
		if rule.Validate != nil {
			if err := rule.Validate(value); err != nil {
				return false
			}
		}
	}
	for key := range doc {
		if _, ok := known[key]; !ok {
			return false
		}
	}
	return true
}
