package notifications

import (
	"context"
	"time"
)

// Storage persists per-channel notification records.
// Every read and mutation is scoped to the caller identity. Read and deleted
// state of a role broadcast is kept per caller, so one holder of the role
// never changes what another one sees.
type Storage interface {
	// Create inserts a record. A second record with the same id fails with ErrDuplicateNotification.
	Create(ctx context.Context, notif Notification) error

	// SetDeliveryStatus records the outcome of a channel send.
	SetDeliveryStatus(ctx context.Context, id string, status DeliveryStatus, attempts int, deliveryErr string) error

	// Get returns a single visible, non-deleted record.
	Get(ctx context.Context, caller Identity, id string) (*Notification, error)

	// List returns visible, non-deleted records, newest first.
	List(ctx context.Context, caller Identity, filter Filter) ([]Notification, error)

	// MarkRead marks every copy of the logical notification behind id as read.
	MarkRead(ctx context.Context, caller Identity, id string) error

	// MarkAllRead marks all visible unread records as read and returns how many logical notifications changed.
	MarkAllRead(ctx context.Context, caller Identity) (int, error)

	// Delete soft-deletes every copy of the logical notification behind id.
	Delete(ctx context.Context, caller Identity, id string) error

	// CountUnread returns the number of unread logical notifications visible to caller.
	CountUnread(ctx context.Context, caller Identity) (int, error)

	// Purge physically removes records soft-deleted before the given time.
	Purge(ctx context.Context, before time.Time) (int, error)
}

// Filter narrows List results.
type Filter struct {
	Types    []Type   // only these types
	Read     *bool    // nil = any read state
	Priority Priority // empty = any
	Channel  Channel  // empty = collapse channel copies into one entry per logical notification
	Search   string   // case-insensitive match on title or message
	Limit    int      // 0 = no limit
	Offset   int
}

// Bool returns a pointer to b, handy for Filter.Read.
func Bool(b bool) *bool { return &b }

func (f Filter) matchType(t Type) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, v := range f.Types {
		if v == t {
			return true
		}
	}
	return false
}
