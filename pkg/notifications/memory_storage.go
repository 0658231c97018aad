package notifications

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

// MemoryStorage keeps records in process memory. Used in tests and dev mode.
type MemoryStorage struct {
	mu       sync.RWMutex
	records  map[string]*Notification
	receipts map[receiptKey]*receipt
	order    []string
	now      func() time.Time
}

// receiptKey identifies one user's state for one role broadcast.
type receiptKey struct {
	logicalID string
	userID    string
}

type receipt struct {
	readAt    *time.Time
	deletedAt *time.Time
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records:  make(map[string]*Notification),
		receipts: make(map[receiptKey]*receipt),
		now:      time.Now,
	}
}

func (s *MemoryStorage) Create(ctx context.Context, notif Notification) error {
	if notif.ID == "" || notif.LogicalID == "" {
		return ErrInvalidNotification
	}
	if notif.UserID == "" && notif.UserRole == "" {
		return ErrInvalidNotification
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[notif.ID]; exists {
		return ErrDuplicateNotification
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = s.now()
	}
	if notif.DeliveryStatus == "" {
		notif.DeliveryStatus = DeliveryPending
	}

	s.records[notif.ID] = &notif
	s.order = append(s.order, notif.ID)
	return nil
}

func (s *MemoryStorage) SetDeliveryStatus(ctx context.Context, id string, status DeliveryStatus, attempts int, deliveryErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.records[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.DeliveryStatus = status
	n.Attempts = attempts
	n.DeliveryError = deliveryErr
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, caller Identity, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.lookup(caller, id)
	if !ok {
		return nil, ErrNotificationNotFound
	}
	view := s.view(n, caller)
	return &view, nil
}

func (s *MemoryStorage) List(ctx context.Context, caller Identity, filter Filter) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := ""
	caser := cases.Fold()
	if q := strings.TrimSpace(filter.Search); q != "" {
		search = caser.String(q)
	}

	var matched []Notification
	for _, id := range s.order {
		if !s.records[id].VisibleTo(caller) {
			continue
		}
		n := s.view(s.records[id], caller)
		if n.Deleted {
			continue
		}
		if !filter.matchType(n.Type) {
			continue
		}
		if filter.Read != nil && n.Read != *filter.Read {
			continue
		}
		if filter.Priority != "" && n.Priority != filter.Priority {
			continue
		}
		if filter.Channel != "" && n.Channel != filter.Channel {
			continue
		}
		if search != "" &&
			!strings.Contains(caser.String(n.Title), search) &&
			!strings.Contains(caser.String(n.Message), search) {
			continue
		}
		matched = append(matched, n)
	}

	if filter.Channel == "" {
		matched = collapse(matched)
	}

	slices.SortStableFunc(matched, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, caller Identity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.lookup(caller, id)
	if !ok {
		return ErrNotificationNotFound
	}

	now := s.now()
	if n.Broadcast() {
		s.receipt(n.LogicalID, caller).markRead(now)
		return nil
	}
	for _, c := range s.copies(n.LogicalID, caller) {
		c.MarkAsRead(now)
	}
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, caller Identity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	changed := make(map[string]struct{})
	for _, id := range s.order {
		n := s.records[id]
		if !n.VisibleTo(caller) {
			continue
		}
		if view := s.view(n, caller); view.Deleted || view.Read {
			continue
		}
		if n.Broadcast() {
			s.receipt(n.LogicalID, caller).markRead(now)
		} else {
			n.MarkAsRead(now)
		}
		changed[n.LogicalID] = struct{}{}
	}
	return len(changed), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, caller Identity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.lookup(caller, id)
	if !ok {
		return ErrNotificationNotFound
	}

	now := s.now()
	if n.Broadcast() {
		r := s.receipt(n.LogicalID, caller)
		if r.deletedAt == nil {
			r.deletedAt = &now
		}
		return nil
	}
	for _, c := range s.copies(n.LogicalID, caller) {
		c.MarkAsDeleted(now)
	}
	return nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, caller Identity) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unread := make(map[string]struct{})
	for _, id := range s.order {
		n := s.records[id]
		if !n.VisibleTo(caller) {
			continue
		}
		if view := s.view(n, caller); view.Deleted || view.Read {
			continue
		}
		unread[n.LogicalID] = struct{}{}
	}
	return len(unread), nil
}

func (s *MemoryStorage) Purge(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		n := s.records[id]
		if n.Deleted && n.DeletedAt != nil && n.DeletedAt.Before(before) {
			delete(s.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept

	live := make(map[string]struct{}, len(s.order))
	for _, id := range s.order {
		live[s.records[id].LogicalID] = struct{}{}
	}
	for k := range s.receipts {
		if _, ok := live[k.logicalID]; !ok {
			delete(s.receipts, k)
		}
	}
	return removed, nil
}

// lookup must be called with s.mu held.
func (s *MemoryStorage) lookup(caller Identity, id string) (*Notification, bool) {
	n, ok := s.records[id]
	if !ok || !n.VisibleTo(caller) || s.view(n, caller).Deleted {
		return nil, false
	}
	return n, true
}

// view returns n as caller sees it. Role broadcasts take their read and
// deleted state from the caller's receipt. Must be called with s.mu held.
func (s *MemoryStorage) view(n *Notification, caller Identity) Notification {
	v := *n
	if !n.Broadcast() {
		return v
	}
	v.Read, v.ReadAt, v.Deleted, v.DeletedAt = false, nil, false, nil
	if r, ok := s.receipts[receiptKey{n.LogicalID, caller.UserID}]; ok {
		v.Read, v.ReadAt = r.readAt != nil, r.readAt
		v.Deleted, v.DeletedAt = r.deletedAt != nil, r.deletedAt
	}
	return v
}

// receipt returns the caller's receipt for a broadcast, creating it. Must be called with s.mu held.
func (s *MemoryStorage) receipt(logicalID string, caller Identity) *receipt {
	k := receiptKey{logicalID, caller.UserID}
	r, ok := s.receipts[k]
	if !ok {
		r = &receipt{}
		s.receipts[k] = r
	}
	return r
}

func (r *receipt) markRead(now time.Time) {
	if r.readAt == nil {
		r.readAt = &now
	}
}

// copies returns every record of the logical notification visible to caller.
func (s *MemoryStorage) copies(logicalID string, caller Identity) []*Notification {
	var out []*Notification
	for _, id := range s.order {
		n := s.records[id]
		if n.LogicalID == logicalID && n.VisibleTo(caller) {
			out = append(out, n)
		}
	}
	return out
}

// collapse keeps one record per logical notification, preferring the SYSTEM copy.
func collapse(list []Notification) []Notification {
	index := make(map[string]int, len(list))
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		i, seen := index[n.LogicalID]
		if !seen {
			index[n.LogicalID] = len(out)
			out = append(out, n)
			continue
		}
		if n.Channel == ChannelSystem && out[i].Channel != ChannelSystem {
			out[i] = n
		}
	}
	return out
}

func paginate(list []Notification, limit, offset int) []Notification {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []Notification{}
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}
