// Package index is the best-effort similarity side-write. It never blocks or
// fails intake: writes run with a short timeout and errors are logged only.
// Anchoring semantics do not depend on anything here.
package index

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"craftid/backend/internal/canonical"
)

const writeTimeout = 2 * time.Second

type Indexer struct {
	log *zap.Logger
	rdb *redis.Client
}

// New returns a nil Indexer when addr is empty; all methods are safe on nil.
func New(logger *zap.Logger, addr string) *Indexer {
	if addr == "" {
		return nil
	}
	return &Indexer{
		log: logger,
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Add writes the searchable text fields for a new record.
func (ix *Indexer) Add(ctx context.Context, publicID string, sub canonical.Submission) {
	if ix == nil {
		return
	}
	ctxT, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	brief := strings.TrimSpace(sub.Artisan.Name + " - " + sub.Art.Name)
	pipe := ix.rdb.Pipeline()
	pipe.HSet(ctxT, "craftid:meta:"+publicID, map[string]any{
		"public_id":        publicID,
		"artisan_name":     sub.Artisan.Name,
		"artisan_location": sub.Artisan.Location,
		"art_name":         sub.Art.Name,
		"art_description":  sub.Art.Description,
		"brief":            brief,
	})
	pipe.ZAdd(ctxT, "craftid:recent", redis.Z{Score: float64(time.Now().Unix()), Member: publicID})
	if _, err := pipe.Exec(ctxT); err != nil {
		ix.log.Warn("similarity index write failed", zap.String("public_id", publicID), zap.Error(err))
	}
}
