package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/service"

	"github.com/stretchr/testify/assert"
)

type fakeEvents struct {
	service.EventService
	calls atomic.Int32
}

func (f *fakeEvents) CompleteStartedEvents(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 0, nil
}

func TestScheduler_CompletesOnTick(t *testing.T) {
	events := &fakeEvents{}
	s := NewScheduler(events, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return events.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
