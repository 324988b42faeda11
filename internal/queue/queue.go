// Package queue is the lease-based FIFO of pending anchor jobs. All
// coordination between workers happens through LeaseOne's single atomic
// statement; a worker may only mutate items it holds a live lease on.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"craftid/backend/internal/db"
)

// Item statuses. queued and processing are transient; anchored and failed
// are terminal (failed is the dead-letter state, retained for audit).
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusAnchored   = "anchored"
	StatusFailed     = "failed"
)

type Item struct {
	PublicID    string
	PublicHash  string
	CreatedAt   time.Time
	Status      string
	Tries       int
	LockedUntil *time.Time
	LastError   *string
	LastTry     *time.Time
}

type Queue struct {
	db                *db.DB
	visibilityTimeout time.Duration
	maxRetries        int
}

func New(database *db.DB, visibilityTimeout time.Duration, maxRetries int) *Queue {
	return &Queue{db: database, visibilityTimeout: visibilityTimeout, maxRetries: maxRetries}
}

// Enqueue inserts a new job in queued state. A duplicate public_id is
// rejected by the unique constraint.
func (q *Queue) Enqueue(ctx context.Context, publicID, publicHash string) error {
	_, err := q.db.Pool.Exec(ctx, `
		INSERT INTO anchor_queue(public_id, public_hash, status, tries)
		VALUES($1, $2, $3, 0)
	`, publicID, publicHash, StatusQueued)
	return err
}

// LeaseOne atomically claims the oldest eligible job: queued, or processing
// with an expired lease. The claim sets processing, extends locked_until by
// the visibility timeout, stamps last_try and increments tries, all in one
// statement. Returns nil when nothing is eligible.
func (q *Queue) LeaseOne(ctx context.Context) (*Item, error) {
	var it Item
	err := q.db.Pool.QueryRow(ctx, `
		UPDATE anchor_queue SET
			status=$1,
			locked_until = now() + make_interval(secs => $2),
			last_try = now(),
			tries = tries + 1
		WHERE public_id = (
			SELECT public_id FROM anchor_queue
			WHERE status=$3 OR (status=$1 AND locked_until < now())
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING public_id, public_hash, created_at, status, tries, locked_until, last_error, last_try
	`, StatusProcessing, q.visibilityTimeout.Seconds(), StatusQueued).
		Scan(&it.PublicID, &it.PublicHash, &it.CreatedAt, &it.Status, &it.Tries, &it.LockedUntil, &it.LastError, &it.LastTry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

// MarkDone records terminal success. Guarded on processing, so an item that
// is already terminal or was returned to queued is left unchanged. The guard
// does not tell lease holders apart: a worker whose expired lease was
// reclaimed by another worker can still complete the item.
func (q *Queue) MarkDone(ctx context.Context, publicID, txHash, anchoredAt string) error {
	_, err := q.db.Pool.Exec(ctx, `
		UPDATE anchor_queue SET status=$2, tx_hash=$3, anchored_at=$4, locked_until=NULL
		WHERE public_id=$1 AND status=$5
	`, publicID, StatusAnchored, txHash, anchoredAt, StatusProcessing)
	return err
}

// MarkFailed releases a processing item: dead-lettered when the error is
// permanent or the retry ceiling is reached, otherwise re-queued keeping its
// tries count and original created_at (so it does not lose its place).
func (q *Queue) MarkFailed(ctx context.Context, publicID, reason string, permanent bool) error {
	_, err := q.db.Pool.Exec(ctx, `
		UPDATE anchor_queue SET
			status = CASE WHEN $3 OR tries >= $4 THEN $5 ELSE $6 END,
			last_error = $2,
			last_try = now(),
			locked_until = NULL
		WHERE public_id=$1 AND status=$7
	`, publicID, reason, permanent, q.maxRetries, StatusFailed, StatusQueued, StatusProcessing)
	return err
}

// Failed lists dead-lettered items for operator inspection, most recent first.
func (q *Queue) Failed(ctx context.Context, limit int) ([]Item, error) {
	rows, err := q.db.Pool.Query(ctx, `
		SELECT public_id, public_hash, created_at, status, tries, locked_until, last_error, last_try
		FROM anchor_queue WHERE status=$1 ORDER BY last_try DESC LIMIT $2
	`, StatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.PublicID, &it.PublicHash, &it.CreatedAt, &it.Status, &it.Tries, &it.LockedUntil, &it.LastError, &it.LastTry); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
