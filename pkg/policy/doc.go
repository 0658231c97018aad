// Package policy decides when and over which channels an event's
// notifications fire.
//
// Rules live in a YAML table (an embedded default, or a file named by
// POLICY_RULES_FILE). Each rule matches a category and optional recipient
// roles, fires a fixed or user-configured offset before or after the event's
// anchor time, and names the channels it may use. The channels actually used
// are the rule's channels the recipient has enabled, plus the rule's "always"
// channels. SYSTEM is always enabled. A rule may be gated by a boolean user
// setting; a closed gate produces nothing.
//
// Resolve never persists anything. Invalid events fail with an error wrapping
// both ErrInvalidEvent and validator.ValidationErrors.
package policy
