// Package settings stores per-user notification preferences: which optional
// channels are on and how far before or after an anchor time each kind of
// reminder fires.
//
// Manager.Get creates and persists Defaults on first use. Manager.Update takes
// a Patch whose nil fields are left untouched, validates the merged result and
// writes it atomically through Storage.Modify. Manager.Reset restores defaults;
// settings are never deleted.
//
// MemoryStorage serves tests and local runs. RedisStorage keeps one JSON value
// per user under "notify:settings:<user id>".
package settings
