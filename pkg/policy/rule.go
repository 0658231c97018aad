package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/settings"
)

//go:embed rules.yaml
var defaultRules []byte

// Anchor says on which side of the anchor time a rule fires.
type Anchor string

const (
	AnchorBefore Anchor = "before"
	AnchorAfter  Anchor = "after"
)

// Rule maps a category (and optionally recipient roles) to a fire offset and a channel set.
type Rule struct {
	Name          string                  `yaml:"name"`
	Category      notifications.Type      `yaml:"category"`
	Roles         []string                `yaml:"roles,omitempty"`
	Anchor        Anchor                  `yaml:"anchor"`
	Offset        time.Duration           `yaml:"offset,omitempty"`
	OffsetSetting string                  `yaml:"offset_setting,omitempty"`
	Gate          string                  `yaml:"gate,omitempty"`
	Channels      []notifications.Channel `yaml:"channels"`
	Always        []notifications.Channel `yaml:"always,omitempty"`
	Priority      notifications.Priority  `yaml:"priority,omitempty"`
	Message       string                  `yaml:"message,omitempty"`
}

// Table is an ordered list of rules.
type Table struct {
	Rules []Rule `yaml:"rules"`
}

var offsetSettings = map[string]func(settings.Settings) time.Duration{
	"online_lessons.before_start": func(s settings.Settings) time.Duration {
		return time.Duration(s.OnlineLessons.BeforeStart) * time.Minute
	},
	"online_lessons.after_start": func(s settings.Settings) time.Duration {
		return time.Duration(s.OnlineLessons.AfterStart) * time.Minute
	},
	"assignments.due_soon": func(s settings.Settings) time.Duration {
		return time.Duration(s.Assignments.DueSoon) * time.Hour
	},
	"events.upcoming": func(s settings.Settings) time.Duration {
		return time.Duration(s.Events.Upcoming) * time.Hour
	},
	"tasks.due_soon": func(s settings.Settings) time.Duration {
		return time.Duration(s.Tasks.DueSoon) * time.Hour
	},
}

var gates = map[string]func(settings.Settings) bool{
	"online_lessons.enabled": func(s settings.Settings) bool { return s.OnlineLessons.Enabled },
	"assignments.overdue":    func(s settings.Settings) bool { return s.Assignments.Overdue },
	"events.reminders":       func(s settings.Settings) bool { return s.Events.Reminders },
	"tasks.overdue":          func(s settings.Settings) bool { return s.Tasks.Overdue },
}

// DefaultTable returns the rule table embedded in the binary.
func DefaultTable() Table {
	t, err := ParseTable(defaultRules)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads a YAML rule table from r.
func LoadTable(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, errors.Join(ErrRulesNotLoaded, err)
	}
	return ParseTable(data)
}

// LoadFile reads a YAML rule table from path. An empty path yields the default table.
func LoadFile(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Table{}, errors.Join(ErrRulesNotLoaded, err)
	}
	defer f.Close()
	return LoadTable(f)
}

// ParseTable decodes and validates a YAML rule table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, errors.Join(ErrRulesNotLoaded, err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks every rule refers to known categories, channels and settings.
func (t Table) Validate() error {
	if len(t.Rules) == 0 {
		return fmt.Errorf("%w: table is empty", ErrInvalidRule)
	}
	var errs []error
	for i, r := range t.Rules {
		if err := r.validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, r.Name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidRule}, errs...)...)
	}
	return nil
}

func (r Rule) validate() error {
	switch {
	case r.Name == "":
		return errors.New("name is required")
	case !r.Category.Valid():
		return fmt.Errorf("unknown category %q", r.Category)
	case r.Anchor != AnchorBefore && r.Anchor != AnchorAfter:
		return fmt.Errorf("anchor must be before or after, got %q", r.Anchor)
	case r.Offset < 0:
		return errors.New("offset must not be negative")
	case len(r.Channels) == 0 && len(r.Always) == 0:
		return errors.New("at least one channel is required")
	case r.Priority != "" && !r.Priority.Valid():
		return fmt.Errorf("unknown priority %q", r.Priority)
	}
	if r.OffsetSetting != "" {
		if _, ok := offsetSettings[r.OffsetSetting]; !ok {
			return fmt.Errorf("unknown offset setting %q", r.OffsetSetting)
		}
	}
	if r.Gate != "" {
		if _, ok := gates[r.Gate]; !ok {
			return fmt.Errorf("unknown gate %q", r.Gate)
		}
	}
	for _, ch := range slices.Concat(r.Channels, r.Always) {
		if !ch.Valid() {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	return nil
}

// appliesTo reports whether the rule targets role. Rules without roles target everyone.
func (r Rule) appliesTo(role string) bool {
	return len(r.Roles) == 0 || slices.Contains(r.Roles, role)
}

func (r Rule) offset(s settings.Settings) time.Duration {
	if f, ok := offsetSettings[r.OffsetSetting]; ok {
		return f(s)
	}
	return r.Offset
}

func (r Rule) open(s settings.Settings) bool {
	if f, ok := gates[r.Gate]; ok {
		return f(s)
	}
	return true
}

// channels returns (enabled ∩ rule channels) ∪ always in canonical order.
func (r Rule) channels(s settings.Settings) []notifications.Channel {
	var out []notifications.Channel
	for _, ch := range notifications.Channels {
		if slices.Contains(r.Always, ch) || (slices.Contains(r.Channels, ch) && s.Channels.Enabled(ch)) {
			out = append(out, ch)
		}
	}
	return out
}
