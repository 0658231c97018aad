// Package notifications stores per-recipient, per-channel notification records
// and answers the queries consumers run against them.
//
// A fired trigger produces one record per channel. Copies share a LogicalID
// (the trigger id) and each has a deterministic ID derived from the logical id
// and the channel, so a second write for the same pair fails with
// ErrDuplicateNotification.
//
// Records are addressed either to a user (UserID set) or to every holder of a
// role (UserID empty, UserRole set). Every Storage method takes the caller's
// Identity and only touches records visible to it; ids outside that scope
// behave exactly like unknown ids.
//
// List collapses channel copies into one entry per logical notification,
// preferring the SYSTEM copy, unless Filter.Channel asks for a single channel.
// MarkRead and Delete act on all copies of the logical notification. Read is
// monotonic; delete is soft and Purge removes soft-deleted rows later.
//
// Two storages are provided: MemoryStorage for tests and local runs, and
// PostgresStorage on top of pgx using the schema from pkg/pg.
package notifications
