package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/booth-printer/models"
)

// RetryPolicy bounds how often a load is attempted. Delays[i] is waited
// after failed attempt i+1; the last delay repeats if Attempts exceeds it.
type RetryPolicy struct {
	Attempts int
	Delays   []time.Duration
}

// DefaultRetryPolicy tries three times, backing off 2s then 4s.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	Delays:   []time.Duration{2 * time.Second, 4 * time.Second},
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt < len(p.Delays) {
		return p.Delays[attempt]
	}
	return p.Delays[len(p.Delays)-1]
}

// Loader builds print jobs from the store, retrying transient failures.
type Loader struct {
	store  Store
	policy RetryPolicy
	logger *zap.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

// NewLoader creates a loader. A zero policy means one attempt.
func NewLoader(store Store, policy RetryPolicy, logger *zap.Logger) *Loader {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Loader{store: store, policy: policy, logger: logger.Named("loader"), wait: wait}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retry[T any](ctx context.Context, l *Loader, what string, fn func() (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 0; attempt < l.policy.Attempts; attempt++ {
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return zero, err
		}
		if attempt == l.policy.Attempts-1 {
			break
		}
		d := l.policy.delay(attempt)
		l.logger.Warn("load failed, retrying",
			zap.String("what", what),
			zap.Int("attempt", attempt+1),
			zap.Int("of", l.policy.Attempts),
			zap.Duration("backoff", d),
			zap.Error(err))
		if werr := l.wait(ctx, d); werr != nil {
			return zero, werr
		}
	}
	return zero, err
}

// Load fetches voter id and, when family is set, its linked members.
func (l *Loader) Load(ctx context.Context, id string, family bool) (models.PrintJob, error) {
	primary, err := retry(ctx, l, "voter", func() (models.Voter, error) {
		return l.store.Voter(ctx, id)
	})
	if err != nil {
		return models.PrintJob{}, err
	}

	var members []models.Voter
	if family {
		members, err = retry(ctx, l, "family", func() ([]models.Voter, error) {
			return l.store.Family(ctx, id)
		})
		if err != nil {
			return models.PrintJob{}, err
		}
	}

	return models.NewPrintJob(primary, members, family), nil
}
