package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"atmledger/internal/infrastructure/lock"
	"atmledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	HeaderIdempotencyKey    = "Idempotency-Key"
	HeaderIdempotentReplay  = "X-Idempotent-Replay"
	maxIdempotencyKeyLength = 128
	inFlightLockTTL         = 30 * time.Second
)

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// IdempotencyGuard replays the stored response for a repeated
// Idempotency-Key instead of running the mutation again.
//
//  1. a stored response for (method, path, key) is replayed as is
//  2. otherwise a redis lock marks the key in flight; a concurrent
//     duplicate gets 409 REQUEST_IN_PROGRESS
//  3. the handler's response is stored for ttl unless it was a 5xx, so
//     transient failures can be retried with the same key
//
// Redis errors let the request through without the guard.
type IdempotencyGuard struct {
	rdb redis.Cmdable
	ttl time.Duration
	log *slog.Logger
}

func NewIdempotencyGuard(rdb redis.Cmdable, ttl time.Duration, log *slog.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{rdb: rdb, ttl: ttl, log: log.With("component", "idempotency")}
}

func (g *IdempotencyGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			response.ParamError(c, "Idempotency-Key is too long")
			return
		}

		ctx := c.Request.Context()
		scope := c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		respKey := "idem:resp:" + scope

		if g.replay(ctx, c, respKey) {
			return
		}

		inFlight := lock.NewDistributedLock(g.rdb, "idem:lock:"+scope, uuid.NewString(), inFlightLockTTL)
		ok, err := inFlight.TryLock(ctx)
		if err != nil {
			g.log.WarnContext(ctx, "idempotency lock unavailable, continuing without it", "error", err)
			c.Next()
			return
		}
		if !ok {
			response.Fail(c, http.StatusConflict, response.CodeRequestInProgress,
				"REQUEST_IN_PROGRESS", "a request with this Idempotency-Key is still being processed")
			return
		}
		defer func() {
			if _, err := inFlight.Unlock(context.WithoutCancel(ctx)); err != nil {
				g.log.WarnContext(ctx, "release idempotency lock failed", "error", err)
			}
		}()

		// the previous holder may have finished between the first check and the lock
		if g.replay(ctx, c, respKey) {
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		payload, err := json.Marshal(cachedResponse{Status: status, Body: rec.body.Bytes()})
		if err != nil {
			return
		}
		if err := g.rdb.Set(context.WithoutCancel(ctx), respKey, payload, g.ttl).Err(); err != nil {
			g.log.WarnContext(ctx, "store idempotent response failed", "error", err)
		}
	}
}

// replay writes the stored response if there is one.
func (g *IdempotencyGuard) replay(ctx context.Context, c *gin.Context, respKey string) bool {
	raw, err := g.rdb.Get(ctx, respKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		g.log.WarnContext(ctx, "read idempotent response failed", "error", err)
		return false
	}

	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		g.log.WarnContext(ctx, "corrupt idempotent response, ignoring", "error", err)
		return false
	}

	c.Header(HeaderIdempotentReplay, "true")
	c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
	c.Abort()
	return true
}

// bodyRecorder copies everything written to the client.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
