// Package quota decides whether a request may consume one unit of the
// user's monthly allowance. Denial is an ordinary outcome carried as
// data, never an error.
package quota

import (
	"context"
	"time"

	"github.com/arialabs/aria-backend/internal/models"
	"github.com/arialabs/aria-backend/internal/storage"
	"github.com/arialabs/aria-backend/internal/tier"
	"go.uber.org/zap"
)

// Decision is the gate outcome. When Allowed, one unit has already been
// reserved against the user's counter; the dispatcher releases it if
// the handler later faults.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
}

// Gate applies the monthly reset policy and the tier quota atomically
// through the storage layer's conditional operations.
type Gate struct {
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

func NewGate(store storage.Storage, logger *zap.Logger) *Gate {
	return &Gate{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the gate's clock. Test hook.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Check runs the monthly reset (idempotent, at most once per calendar
// month even under concurrent calls) and then reserves one unit of
// quota on the given channel. Free tier draws text and voice from a
// single shared pool; paid tiers meter each channel on its own.
func (g *Gate) Check(ctx context.Context, user *models.User, ch models.Channel) (Decision, error) {
	now := g.now()
	if err := g.store.ResetCountersIfStale(ctx, user.ID, now); err != nil {
		return Decision{}, err
	}

	q := tier.QuotaFor(user.Tier)
	limit := q.Limit(ch)

	allowed, used, err := g.store.ReserveUsage(ctx, user.ID, ch, limit, q.Combined)
	if err != nil {
		return Decision{}, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	if !allowed {
		g.logger.Info("quota exceeded",
			zap.String("user_id", user.ID),
			zap.String("tier", string(user.Tier)),
			zap.String("channel", string(ch)),
			zap.Int("limit", limit))
		return Decision{Allowed: false, Remaining: 0, Limit: limit}, nil
	}
	return Decision{Allowed: true, Remaining: remaining, Limit: limit}, nil
}

// Release hands back the unit reserved by Check after a handler fault.
func (g *Gate) Release(ctx context.Context, userID string, ch models.Channel) error {
	return g.store.ReleaseUsage(ctx, userID, ch)
}
