package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryManager_ShouldRetry(t *testing.T) {
	rm := NewRetryManager(3, 100*time.Millisecond)

	tests := []struct {
		name     string
		attempts int
		max      int
		err      error
		want     bool
	}{
		{"transient first attempt", 1, 3, errors.New("connection reset"), true},
		{"budget exhausted", 3, 3, errors.New("connection reset"), false},
		{"permanent", 1, 3, Permanent(errors.New("visit not found")), false},
		{"wrapped permanent", 1, 3, fmt.Errorf("handler: %w", Permanent(errors.New("bad payload"))), false},
		{"nil error", 1, 3, nil, false},
		{"task without budget uses manager default", 2, 0, errors.New("timeout"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{ID: "t", Type: TaskTypeReconcileVisit, Attempts: tt.attempts, MaxRetries: tt.max}
			retry, delay := rm.ShouldRetry(task, tt.err)
			assert.Equal(t, tt.want, retry)
			if retry {
				assert.Greater(t, delay, time.Duration(0))
				assert.LessOrEqual(t, delay, 16*100*time.Millisecond)
			}
		})
	}
}

func TestRetryManager_BackoffGrowsAndCaps(t *testing.T) {
	rm := NewRetryManager(10, time.Second)

	assert.Equal(t, time.Second, rm.calculateBackoff(0))

	for attempt := 1; attempt <= 8; attempt++ {
		d := rm.calculateBackoff(attempt)
		base := time.Second * time.Duration(1<<(attempt-1))
		if base > 16*time.Second {
			base = 16 * time.Second
		}
		assert.GreaterOrEqual(t, d, base*3/4, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 16*time.Second, "attempt %d", attempt)
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("boom")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}

func TestTask_Helpers(t *testing.T) {
	task := &Task{
		ID:   "t1",
		Type: TaskTypeReconcileVisit,
		Data: map[string]interface{}{
			"visit_id": float64(42),
			"user_id":  int64(7),
			"event_id": 3,
			"reason":   "matching_failed",
		},
	}

	assert.NoError(t, task.Validate())

	id, ok := task.GetInt64("visit_id")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok = task.GetInt64("user_id")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = task.GetInt64("event_id")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	_, ok = task.GetInt64("missing")
	assert.False(t, ok)

	_, ok = task.GetInt64("reason")
	assert.False(t, ok, "non-numeric values are rejected")

	assert.Error(t, (&Task{Type: TaskTypeNotifyMatch}).Validate())
	assert.Error(t, (&Task{ID: "x"}).Validate())
}
