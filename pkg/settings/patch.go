package settings

// Patch is a partial update. Nil fields keep their stored value, so a patch
// touching one field of a category leaves the category's other fields alone.
type Patch struct {
	Channels      *ChannelPatch      `json:"channels,omitempty"`
	OnlineLessons *OnlineLessonPatch `json:"online_lessons,omitempty"`
	Assignments   *AssignmentPatch   `json:"assignments,omitempty"`
	Events        *EventPatch        `json:"events,omitempty"`
	Tasks         *TaskPatch         `json:"tasks,omitempty"`
}

type ChannelPatch struct {
	Email *bool `json:"email,omitempty"`
	SMS   *bool `json:"sms,omitempty"`
	Push  *bool `json:"push,omitempty"`
}

type OnlineLessonPatch struct {
	Enabled     *bool `json:"enabled,omitempty"`
	BeforeStart *int  `json:"before_start,omitempty"`
	AfterStart  *int  `json:"after_start,omitempty"`
}

type AssignmentPatch struct {
	DueSoon *int  `json:"due_soon,omitempty"`
	Overdue *bool `json:"overdue,omitempty"`
}

type EventPatch struct {
	Upcoming  *int  `json:"upcoming,omitempty"`
	Reminders *bool `json:"reminders,omitempty"`
}

type TaskPatch struct {
	DueSoon *int  `json:"due_soon,omitempty"`
	Overdue *bool `json:"overdue,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Channels == nil && p.OnlineLessons == nil && p.Assignments == nil &&
		p.Events == nil && p.Tasks == nil
}

// Apply returns s with the patch merged in.
func (p Patch) Apply(s Settings) Settings {
	if c := p.Channels; c != nil {
		set(&s.Channels.Email, c.Email)
		set(&s.Channels.SMS, c.SMS)
		set(&s.Channels.Push, c.Push)
	}
	if c := p.OnlineLessons; c != nil {
		set(&s.OnlineLessons.Enabled, c.Enabled)
		set(&s.OnlineLessons.BeforeStart, c.BeforeStart)
		set(&s.OnlineLessons.AfterStart, c.AfterStart)
	}
	if c := p.Assignments; c != nil {
		set(&s.Assignments.DueSoon, c.DueSoon)
		set(&s.Assignments.Overdue, c.Overdue)
	}
	if c := p.Events; c != nil {
		set(&s.Events.Upcoming, c.Upcoming)
		set(&s.Events.Reminders, c.Reminders)
	}
	if c := p.Tasks; c != nil {
		set(&s.Tasks.DueSoon, c.DueSoon)
		set(&s.Tasks.Overdue, c.Overdue)
	}
	return s
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Ptr returns a pointer to v. Useful when building patches.
func Ptr[T any](v T) *T { return &v }
