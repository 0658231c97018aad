package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStorage.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage stores records in the notifications table created by pkg/pg migrations.
type PostgresStorage struct {
	db DB
}

// NewPostgresStorage wraps a pgx pool.
func NewPostgresStorage(db DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const notificationColumns = `id, logical_id, type, title, message, channel, priority, user_id, user_role,
	related_id, action_url, read, read_at, deleted, deleted_at, delivery_status, delivery_error, attempts, created_at`

// visibleClause expects the caller user id in $1 and role in $2.
const visibleClause = `((n.user_id <> '' AND n.user_id = $1) OR (n.user_id = '' AND n.user_role <> '' AND n.user_role = $2))`

// scopedFrom joins the caller's receipt (user id in $1) onto role broadcasts.
const scopedFrom = `notifications n LEFT JOIN notification_receipts r
	ON n.user_id = '' AND r.logical_id = n.logical_id AND r.user_id = $1`

const (
	readExpr    = `(CASE WHEN n.user_id = '' THEN r.read_at IS NOT NULL ELSE n.read END)`
	deletedExpr = `(CASE WHEN n.user_id = '' THEN r.deleted_at IS NOT NULL ELSE n.deleted END)`
)

// scopedColumns matches scanNotification, with read and deleted state seen by the caller.
const scopedColumns = `n.id, n.logical_id, n.type, n.title, n.message, n.channel, n.priority, n.user_id, n.user_role,
	n.related_id, n.action_url,
	` + readExpr + ` AS read,
	(CASE WHEN n.user_id = '' THEN r.read_at ELSE n.read_at END) AS read_at,
	` + deletedExpr + ` AS deleted,
	(CASE WHEN n.user_id = '' THEN r.deleted_at ELSE n.deleted_at END) AS deleted_at,
	n.delivery_status, n.delivery_error, n.attempts, n.created_at`

func (s *PostgresStorage) Create(ctx context.Context, n Notification) error {
	if n.ID == "" || n.LogicalID == "" || (n.UserID == "" && n.UserRole == "") {
		return ErrInvalidNotification
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.DeliveryStatus == "" {
		n.DeliveryStatus = DeliveryPending
	}

	_, err := s.db.Exec(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		n.ID, n.LogicalID, n.Type, n.Title, n.Message, n.Channel, n.Priority, n.UserID, n.UserRole,
		n.RelatedID, n.ActionURL, n.Read, n.ReadAt, n.Deleted, n.DeletedAt,
		n.DeliveryStatus, n.DeliveryError, n.Attempts, n.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateNotification
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SetDeliveryStatus(ctx context.Context, id string, status DeliveryStatus, attempts int, deliveryErr string) error {
	if !validRecordID(id) {
		return ErrNotificationNotFound
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET delivery_status = $2, attempts = $3, delivery_error = $4 WHERE id = $1`,
		id, status, attempts, deliveryErr)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, caller Identity, id string) (*Notification, error) {
	if !validRecordID(id) {
		return nil, ErrNotificationNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+scopedColumns+` FROM `+scopedFrom+`
		WHERE `+visibleClause+` AND NOT `+deletedExpr+` AND n.id = $3`, caller.UserID, caller.Role, id)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

func (s *PostgresStorage) List(ctx context.Context, caller Identity, filter Filter) ([]Notification, error) {
	args := []any{caller.UserID, caller.Role}
	where := []string{visibleClause, "NOT " + deletedExpr}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where = append(where, "n.type = ANY("+arg(types)+")")
	}
	if filter.Read != nil {
		where = append(where, readExpr+" = "+arg(*filter.Read))
	}
	if filter.Priority != "" {
		where = append(where, "n.priority = "+arg(string(filter.Priority)))
	}
	if filter.Channel != "" {
		where = append(where, "n.channel = "+arg(string(filter.Channel)))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		where = append(where, "(n.title ILIKE "+p+" OR n.message ILIKE "+p+")")
	}

	query := `SELECT * FROM (SELECT ` + scopedColumns + ` FROM ` + scopedFrom + `
		WHERE ` + strings.Join(where, " AND ") + `) visible`
	if filter.Channel == "" {
		query = `SELECT * FROM (
			SELECT DISTINCT ON (n.logical_id) ` + scopedColumns + ` FROM ` + scopedFrom + `
			WHERE ` + strings.Join(where, " AND ") + `
			ORDER BY n.logical_id, (n.channel = 'system') DESC, n.created_at
		) collapsed`
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	list := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, caller Identity, id string) error {
	rec, err := s.lookup(ctx, caller, id)
	if err != nil {
		return err
	}
	now := time.Now()
	if rec.broadcast {
		_, err = s.db.Exec(ctx, `INSERT INTO notification_receipts (logical_id, user_id, read_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (logical_id, user_id)
			DO UPDATE SET read_at = COALESCE(notification_receipts.read_at, EXCLUDED.read_at)`,
			rec.logicalID, caller.UserID, now)
	} else {
		_, err = s.db.Exec(ctx, `UPDATE notifications SET read = TRUE, read_at = $3
			WHERE logical_id = $2 AND user_id = $1 AND NOT read`,
			caller.UserID, rec.logicalID, now)
	}
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *PostgresStorage) MarkAllRead(ctx context.Context, caller Identity) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `WITH direct AS (
			UPDATE notifications SET read = TRUE, read_at = $3
			WHERE user_id <> '' AND user_id = $1 AND NOT deleted AND NOT read
			RETURNING logical_id
		), broadcast AS (
			INSERT INTO notification_receipts (logical_id, user_id, read_at)
			SELECT DISTINCT n.logical_id, $1::text, $3::timestamptz FROM `+scopedFrom+`
			WHERE n.user_id = '' AND n.user_role <> '' AND n.user_role = $2
				AND r.read_at IS NULL AND r.deleted_at IS NULL
			ON CONFLICT (logical_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at
			RETURNING logical_id
		)
		SELECT (SELECT COUNT(DISTINCT logical_id) FROM direct) + (SELECT COUNT(*) FROM broadcast)`,
		caller.UserID, caller.Role, time.Now()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, caller Identity, id string) error {
	rec, err := s.lookup(ctx, caller, id)
	if err != nil {
		return err
	}
	now := time.Now()
	if rec.broadcast {
		_, err = s.db.Exec(ctx, `INSERT INTO notification_receipts (logical_id, user_id, deleted_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (logical_id, user_id)
			DO UPDATE SET deleted_at = COALESCE(notification_receipts.deleted_at, EXCLUDED.deleted_at)`,
			rec.logicalID, caller.UserID, now)
	} else {
		_, err = s.db.Exec(ctx, `UPDATE notifications SET deleted = TRUE, deleted_at = $3
			WHERE logical_id = $2 AND user_id = $1 AND NOT deleted`,
			caller.UserID, rec.logicalID, now)
	}
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, caller Identity) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(DISTINCT n.logical_id) FROM `+scopedFrom+`
		WHERE `+visibleClause+` AND NOT `+deletedExpr+` AND NOT `+readExpr,
		caller.UserID, caller.Role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// Purge removes soft-deleted direct records and the receipts of logical
// notifications that no longer have any record.
func (s *PostgresStorage) Purge(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE deleted AND deleted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM notification_receipts r
		WHERE NOT EXISTS (SELECT 1 FROM notifications n WHERE n.logical_id = r.logical_id)`); err != nil {
		return 0, fmt.Errorf("purge notification receipts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type recordRef struct {
	logicalID string
	broadcast bool
}

func (s *PostgresStorage) lookup(ctx context.Context, caller Identity, id string) (recordRef, error) {
	if !validRecordID(id) {
		return recordRef{}, ErrNotificationNotFound
	}
	var t recordRef
	err := s.db.QueryRow(ctx, `SELECT n.logical_id, n.user_id = '' FROM `+scopedFrom+`
		WHERE `+visibleClause+` AND NOT `+deletedExpr+` AND n.id = $3`,
		caller.UserID, caller.Role, id).Scan(&t.logicalID, &t.broadcast)
	if errors.Is(err, pgx.ErrNoRows) {
		return recordRef{}, ErrNotificationNotFound
	}
	if err != nil {
		return recordRef{}, fmt.Errorf("lookup notification: %w", err)
	}
	return t, nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	var id uuid.UUID
	err := row.Scan(
		&id, &n.LogicalID, &n.Type, &n.Title, &n.Message, &n.Channel, &n.Priority, &n.UserID, &n.UserRole,
		&n.RelatedID, &n.ActionURL, &n.Read, &n.ReadAt, &n.Deleted, &n.DeletedAt,
		&n.DeliveryStatus, &n.DeliveryError, &n.Attempts, &n.CreatedAt,
	)
	n.ID = id.String()
	return n, err
}

func validRecordID(id string) bool {
	return uuid.Validate(id) == nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
