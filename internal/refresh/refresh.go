// Package refresh asks the backend to re-run data collection and, once the
// backend accepts, marks every cached query stale and refetches it.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/metrics"
	"github.com/infralens/infralens/internal/querycache"
)

// ErrRefreshInProgress is returned when the backend or this process is
// already running a refresh.
var ErrRefreshInProgress = errors.New("refresh is already running")

// Trigger is the backend call that starts a collection run.
type Trigger interface {
	TriggerRefresh(ctx context.Context) (backend.RefreshResult, error)
}

type Refresher struct {
	Backend Trigger
	Cache   *querycache.Cache
	Now     func() time.Time

	mu sync.Mutex
}

type Result struct {
	Backend     backend.RefreshResult
	Invalidated int
	// RefetchErr is set when some queries could not be reloaded. The refresh
	// itself still counts as successful.
	RefetchErr error
}

func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	if r == nil || r.Backend == nil {
		return Result{}, errors.New("refresher is not configured")
	}
	if !r.mu.TryLock() {
		metrics.RefreshRunsTotal.WithLabelValues("busy").Inc()
		return Result{}, ErrRefreshInProgress
	}
	defer r.mu.Unlock()

	res, err := r.Backend.TriggerRefresh(ctx)
	if err != nil {
		if backend.IsStatus(err, http.StatusConflict) {
			metrics.RefreshRunsTotal.WithLabelValues("busy").Inc()
			return Result{}, fmt.Errorf("%w: %w", ErrRefreshInProgress, err)
		}
		metrics.RefreshRunsTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}

	out := Result{Backend: res}
	if r.Cache != nil {
		keys := r.Cache.InvalidateAll()
		out.Invalidated = len(keys)
		if err := r.Cache.Refetch(ctx, keys); err != nil {
			out.RefetchErr = err
			slog.Warn("refetch after refresh incomplete", "keys", len(keys), "err", err)
		}
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	metrics.RefreshRunsTotal.WithLabelValues("success").Inc()
	metrics.RefreshLastSuccessTimestamp.Set(float64(now().Unix()))
	slog.Info("refresh triggered", "job_id", res.JobID, "status", res.Status, "invalidated", out.Invalidated)
	return out, nil
}
