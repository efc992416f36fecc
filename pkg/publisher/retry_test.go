package publisher_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amplifyops/publishkit/pkg/backoff"
	"github.com/amplifyops/publishkit/pkg/publisher"
)

func TestRetryPolicy_Decide(t *testing.T) {
	t.Parallel()

	now := time.Now()
	policy := publisher.NewRetryPolicy(backoff.Fixed{Interval: time.Minute})

	t.Run("retries a transient failure with attempts remaining", func(t *testing.T) {
		t.Parallel()

		decision := policy.Decide(now, 1, 3, publisher.ErrorClassTransient)
		assert.True(t, decision.Retry)
		assert.Equal(t, now.Add(time.Minute), decision.NextAttemptAt)
	})

	t.Run("retries an unknown failure with attempts remaining", func(t *testing.T) {
		t.Parallel()

		decision := policy.Decide(now, 2, 3, publisher.ErrorClassUnknown)
		assert.True(t, decision.Retry)
	})

	t.Run("never retries a permanent failure", func(t *testing.T) {
		t.Parallel()

		decision := policy.Decide(now, 1, 3, publisher.ErrorClassPermanent)
		assert.False(t, decision.Retry)
	})

	t.Run("stops when attempts are exhausted", func(t *testing.T) {
		t.Parallel()

		decision := policy.Decide(now, 3, 3, publisher.ErrorClassTransient)
		assert.False(t, decision.Retry)
	})

	t.Run("backoff grows with the attempt number", func(t *testing.T) {
		t.Parallel()

		exp := publisher.NewRetryPolicy(backoff.Exponential{
			Initial:    30 * time.Second,
			Max:        30 * time.Minute,
			Multiplier: 2,
		})

		first := exp.Decide(now, 1, 5, publisher.ErrorClassTransient)
		second := exp.Decide(now, 2, 5, publisher.ErrorClassTransient)
		assert.Equal(t, now.Add(30*time.Second), first.NextAttemptAt)
		assert.Equal(t, now.Add(time.Minute), second.NextAttemptAt)
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want publisher.ErrorClass
	}{
		{
			name: "wrapped transient",
			err:  publisher.NewTransientError(assert.AnError),
			want: publisher.ErrorClassTransient,
		},
		{
			name: "wrapped permanent",
			err:  publisher.NewPermanentError(assert.AnError),
			want: publisher.ErrorClassPermanent,
		},
		{
			name: "deadline exceeded counts as transient",
			err:  fmt.Errorf("publish: %w", context.DeadlineExceeded),
			want: publisher.ErrorClassTransient,
		},
		{
			name: "unrecognized error is unknown",
			err:  assert.AnError,
			want: publisher.ErrorClassUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, publisher.Classify(tc.err))
		})
	}
}
