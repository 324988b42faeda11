// Package store is the repository over the authoritative craftids table and
// the monotonic id counter. Intake owns creation; the batcher owns terminal
// transitions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"craftid/backend/internal/attest"
	"craftid/backend/internal/canonical"
	"craftid/backend/internal/db"
)

var ErrNotFound = errors.New("craftid not found")

// CraftID is the authoritative record.
type CraftID struct {
	PublicID    string
	ArtNameNorm string
	Submission  canonical.Submission
	Timestamp   string
	Salt        string
	PublicHash  string
	Attestation attest.Attestation
	Status      Status
	TxHash      *string
	AnchoredAt  *string
	LastError   *string
	CreatedAt   time.Time
}

type CraftIDs struct {
	db *db.DB
}

func NewCraftIDs(database *db.DB) *CraftIDs {
	return &CraftIDs{db: database}
}

// NextSequence atomically advances the named counter and returns the new
// value, creating the counter on first use.
func (s *CraftIDs) NextSequence(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO counters(id, seq) VALUES($1, 1)
		ON CONFLICT (id) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq
	`, name).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("advance counter %s: %w", name, err)
	}
	return seq, nil
}

// ExistsByArtName reports whether a record with this normalized art name is
// already registered.
func (s *CraftIDs) ExistsByArtName(ctx context.Context, artNameNorm string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM craftids WHERE art_name_norm=$1)`, artNameNorm,
	).Scan(&exists)
	return exists, err
}

// Insert writes a new record in queued state.
func (s *CraftIDs) Insert(ctx context.Context, c CraftID) error {
	subRaw, err := json.Marshal(c.Submission)
	if err != nil {
		return err
	}
	attRaw, err := json.Marshal(c.Attestation)
	if err != nil {
		return err
	}
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO craftids(public_id, art_name_norm, original_submission, timestamp, salt, public_hash, attestation, status)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.PublicID, c.ArtNameNorm, subRaw, c.Timestamp, c.Salt, c.PublicHash, attRaw, string(StatusQueued))
	return err
}

func (s *CraftIDs) GetByPublicID(ctx context.Context, publicID string) (*CraftID, error) {
	var c CraftID
	var subRaw, attRaw []byte
	var status string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT public_id, art_name_norm, original_submission, timestamp, salt, public_hash, attestation, status, tx_hash, anchored_at, last_error, created_at
		FROM craftids WHERE public_id=$1
	`, publicID).Scan(&c.PublicID, &c.ArtNameNorm, &subRaw, &c.Timestamp, &c.Salt, &c.PublicHash, &attRaw, &status, &c.TxHash, &c.AnchoredAt, &c.LastError, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(subRaw, &c.Submission); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attRaw, &c.Attestation); err != nil {
		return nil, err
	}
	c.Status = Status(status)
	return &c, nil
}

// MarkAnchored records terminal success. A no-op for records already
// anchored, so reconciliation after a crashed worker stays idempotent.
func (s *CraftIDs) MarkAnchored(ctx context.Context, publicID, txHash, anchoredAt string) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE craftids SET status=$2, tx_hash=$3, anchored_at=$4, last_error=NULL
		WHERE public_id=$1 AND status <> $2
	`, publicID, string(StatusAnchored), txHash, anchoredAt)
	return err
}

// MarkFailed records terminal failure with the last error string.
func (s *CraftIDs) MarkFailed(ctx context.Context, publicID, reason string) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE craftids SET status=$2, last_error=$3
		WHERE public_id=$1 AND status <> $4
	`, publicID, string(StatusFailed), reason, string(StatusAnchored))
	return err
}
