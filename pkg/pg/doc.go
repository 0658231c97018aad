// Package pg connects to PostgreSQL through pgx/v5 and keeps the schema
// current with goose.
//
// Config is populated from environment variables (PG_CONN_URL and friends).
// Connect opens a *pgxpool.Pool with retries, Migrate applies the migrations
// embedded in the binary (or a directory given by PG_MIGRATIONS_PATH), and
// Healthcheck returns a probe for the HTTP health endpoint.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//		return err
//	}
//
// The schema holds two tables: notifications (per-channel delivery records)
// and notification_triggers (scheduled triggers that survive restarts).
package pg
