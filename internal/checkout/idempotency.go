package checkout

import (
	"context"
	"time"

	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/redis"
)

const idempotencyScope = "checkout"

// idempotencyGuard claims client-supplied idempotency keys with SETNX so a
// retried checkout cannot split the same cart twice.
type idempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// Claim marks the key as used. A key that was already claimed means the
// checkout ran (or is running) and the caller must not repeat it.
func (g *idempotencyGuard) Claim(ctx context.Context, key string) error {
	if g == nil || g.store == nil || key == "" {
		return nil
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(idempotencyScope, key), "1", g.ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !set {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used")
	}
	return nil
}

// Release frees the key after a failed checkout so the client may retry.
func (g *idempotencyGuard) Release(ctx context.Context, key string) error {
	if g == nil || g.store == nil || key == "" {
		return nil
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(idempotencyScope, key))
}
