package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []uint

	d := NewDepositDispatcher(2, 1, zap.NewNop())
	d.Start(func(ctx context.Context, job DepositJob) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.SubmissionID)
		return nil
	})

	d.Enqueue(DepositJob{SubmissionID: 1, ContextID: 1})
	d.Enqueue(DepositJob{SubmissionID: 2, ContextID: 1})
	d.Stop()

	assert.ElementsMatch(t, []uint{1, 2}, seen)
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	d := NewDepositDispatcher(1, 3, zap.NewNop())
	d.backoff = time.Millisecond
	d.Start(func(ctx context.Context, job DepositJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("agency unreachable")
		}
		return nil
	})

	d.Enqueue(DepositJob{SubmissionID: 1, ContextID: 1})
	d.Stop()

	require.Equal(t, 3, attempts)
}

// After the retry budget is spent the job is dropped without panicking; the
// sweep is expected to pick the submission up again.
func TestDispatcherGivesUpAfterRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	d := NewDepositDispatcher(1, 2, zap.NewNop())
	d.backoff = time.Millisecond
	d.Start(func(ctx context.Context, job DepositJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("agency unreachable")
	})

	d.Enqueue(DepositJob{SubmissionID: 1, ContextID: 1})
	d.Stop()

	require.Equal(t, 2, attempts)
}
