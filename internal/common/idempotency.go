package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/loyalty-shop/internal/obs"
)

// IdempotencyHeader carries the client-chosen key of a checkout attempt.
const IdempotencyHeader = "Idempotency-Key"

// Idem provides an Idempotency-Key middleware backed by Redis. A repeated key
// from the same customer within TTL is rejected with 409 so a double-submitted
// checkout is not credited twice. Keys are scoped by the customer id found in
// the request context, so two customers never collide on a key.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// IdempotencyKey returns the Redis key guarding key for customerID.
func IdempotencyKey(customerID, key string) string {
	sum := sha256.Sum256([]byte(customerID + ":" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(IdempotencyHeader)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		ctx := r.Context()
		customer := obs.CustomerIDFromContext(ctx)
		key := IdempotencyKey(customer, header)
		ok, err := i.R.SetNX(ctx, key, customer, ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "idempotency store error")
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "duplicate request")
			return
		}
		defer func() {
			// the key must expire even if the handler panics
			_ = i.R.Expire(context.Background(), key, ttl).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
