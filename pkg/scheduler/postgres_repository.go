package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// DB is the subset of *pgxpool.Pool used by PostgresRepository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores triggers in the notification_triggers table.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const triggerColumns = `id, draft, channels, fire_at, status, created_at, settled_at`

func (r *PostgresRepository) Save(ctx context.Context, t Trigger) error {
	draft, err := json.Marshal(t.Draft)
	if err != nil {
		return fmt.Errorf("encode trigger draft: %w", err)
	}
	channels := make([]string, len(t.Channels))
	for i, ch := range t.Channels {
		channels[i] = string(ch)
	}

	_, err = r.db.Exec(ctx, `INSERT INTO notification_triggers (id, related_id, draft, channels, fire_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Draft.RelatedID, draft, channels, t.FireAt, string(t.Status), t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTrigger
		}
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	if !StatusPending.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, StatusPending, status)
	}

	tag, err := r.db.Exec(ctx, `UPDATE notification_triggers SET status = $2, settled_at = $3
		WHERE id = $1 AND status = 'pending'`, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update trigger status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Trigger, error) {
	row := r.db.QueryRow(ctx, `SELECT `+triggerColumns+` FROM notification_triggers WHERE id = $1`, id)
	t, err := scanTrigger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trigger{}, ErrTriggerNotFound
	}
	if err != nil {
		return Trigger{}, fmt.Errorf("get trigger: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) ListPending(ctx context.Context) ([]Trigger, error) {
	return r.list(ctx, `SELECT `+triggerColumns+` FROM notification_triggers
		WHERE status = 'pending' ORDER BY fire_at`)
}

func (r *PostgresRepository) ListPendingRelated(ctx context.Context, relatedID string) ([]Trigger, error) {
	return r.list(ctx, `SELECT `+triggerColumns+` FROM notification_triggers
		WHERE status = 'pending' AND related_id = $1 ORDER BY fire_at`, relatedID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Trigger, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrigger(row pgx.Row) (Trigger, error) {
	var (
		t        Trigger
		draft    []byte
		channels []string
		status   string
	)
	if err := row.Scan(&t.ID, &draft, &channels, &t.FireAt, &status, &t.CreatedAt, &t.SettledAt); err != nil {
		return Trigger{}, err
	}
	if err := json.Unmarshal(draft, &t.Draft); err != nil {
		return Trigger{}, fmt.Errorf("decode trigger draft: %w", err)
	}
	t.Status = Status(status)
	t.Channels = make([]notifications.Channel, len(channels))
	for i, ch := range channels {
		t.Channels[i] = notifications.Channel(ch)
	}
	return t, nil
}
