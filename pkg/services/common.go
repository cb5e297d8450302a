// Package services holds the business logic behind the HTTP handlers:
// data source lifecycle, sync jobs, query execution, dashboards and uploads.
// Long-running work runs as tasks on the work queue.
package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/services/workqueue"
)

const (
	// DefaultCreatedBy is recorded when no user is known.
	DefaultCreatedBy = "system"

	// InterruptedMessage is stored on jobs that were active when the process stopped.
	InterruptedMessage = "Interrupted by server restart"

	maxNameLength        = 100
	maxDescriptionLength = 500
	maxQueryTextLength   = 500
)

// TaskQueue is the part of the work queue the services use.
// *workqueue.Queue satisfies it.
type TaskQueue interface {
	Enqueue(task workqueue.Task) error
	Cancel(id string) bool
}

// TxRunner runs fn in a transaction. *database.DB satisfies it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ TaskQueue = (*workqueue.Queue)(nil)

// validateName checks a required name against the shared length limit.
func validateName(field, value string) error {
	if value == "" {
		return apperrors.Validationf("%s is required", field)
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return apperrors.Validationf("%s must be at most %d characters", field, maxNameLength)
	}
	return nil
}

func validateDescription(value *string) error {
	if value != nil && utf8.RuneCountInString(*value) > maxDescriptionLength {
		return apperrors.Validationf("Description must be at most %d characters", maxDescriptionLength)
	}
	return nil
}

// sleep waits d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cancelled reports whether err comes from a cancelled task context.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// clampLimit applies a default and an upper bound to a listing limit.
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
