package channel

import (
	"context"
	"sync"
)

// Contact holds the addresses one user can be reached at.
type Contact struct {
	UserID    string `json:"user_id" bson:"user_id"`
	Role      string `json:"role" bson:"role"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
	Phone     string `json:"phone,omitempty" bson:"phone,omitempty"`
	PushToken string `json:"push_token,omitempty" bson:"push_token,omitempty"`
}

// Directory resolves recipients to contacts.
type Directory interface {
	// Lookup returns ErrContactNotFound for unknown users.
	Lookup(ctx context.Context, userID string) (Contact, error)

	// ByRole lists every contact holding role.
	ByRole(ctx context.Context, role string) ([]Contact, error)
}

// MemoryDirectory is a map-backed Directory for tests and local runs.
type MemoryDirectory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

func NewMemoryDirectory(contacts ...Contact) *MemoryDirectory {
	d := &MemoryDirectory{contacts: make(map[string]Contact, len(contacts))}
	for _, c := range contacts {
		d.contacts[c.UserID] = c
	}
	return d
}

// Upsert adds or replaces a contact.
func (d *MemoryDirectory) Upsert(ctx context.Context, c Contact) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[c.UserID] = c
	return nil
}

func (d *MemoryDirectory) Lookup(ctx context.Context, userID string) (Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.contacts[userID]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	return c, nil
}

func (d *MemoryDirectory) ByRole(ctx context.Context, role string) ([]Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Contact
	for _, c := range d.contacts {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out, nil
}

// recipients resolves a user, or a role when userID is empty, to contacts.
func recipients(ctx context.Context, dir Directory, userID, role string) ([]Contact, error) {
	if userID != "" {
		c, err := dir.Lookup(ctx, userID)
		if err != nil {
			return nil, err
		}
		return []Contact{c}, nil
	}
	return dir.ByRole(ctx, role)
}
