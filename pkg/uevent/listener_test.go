package uevent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurstTimeout(t *testing.T) {
	tests := []struct {
		name    string
		events  int
		elapsed time.Duration
		want    time.Duration
	}{
		{"over accumulation cap ends burst", MaxAccumulationCount + 1, time.Second, 0},
		{"zero elapsed always continues", 1, 0, time.Millisecond},
		{"over time cap ends burst", 5, MaxAccumulationTime + time.Millisecond, 0},
		{"fast enough continues", 100, 500 * time.Millisecond, time.Millisecond},
		{"too slow ends burst", 2, 500 * time.Millisecond, 0},
		{"exactly at threshold ends burst", 5, 500 * time.Millisecond, 0}, // 5*1000 == 10*500, not strictly greater
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := burstTimeout(tt.events, tt.elapsed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListenerRun_BuildsAndQueuesEvents(t *testing.T) {
	src := NewFakeSource()
	src.Push([]EnvPair{{Key: "DEVPATH", Value: "/devices/pci0000/sda"}, {Key: "ACTION", Value: "add"}}, nil)
	src.Push([]EnvPair{{Key: "DEVPATH", Value: "/devices/pci0000/sdb"}, {Key: "ACTION", Value: "add"}}, nil)

	q := newQueue()
	l := newListener(src, q, ListenerConfig{Subsystem: "block", Devtype: "disk"}, noopMetrics{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	batch, ok := q.Drain(ctx)
	require.True(t, ok)
	require.Len(t, batch, 2)
	assert.Equal(t, "sda", batch[0].Kernel)
	assert.Equal(t, "sdb", batch[1].Kernel)

	for _, ev := range batch {
		ev.release()
	}

	cancel()
	<-done
}

// cancelAfterRecvSource cancels its context the first time Recv hands back
// an event, so the test can deterministically observe the listener's
// cancellation path with a non-empty staging slice.
type cancelAfterRecvSource struct {
	*FakeSource
	cancel context.CancelFunc
	fired  bool
}

func (s *cancelAfterRecvSource) Recv() (RawEvent, bool, error) {
	raw, ok, err := s.FakeSource.Recv()
	if ok && !s.fired {
		s.fired = true
		s.cancel()
	}
	return raw, ok, err
}

func TestListenerRun_ReleasesStagedEventsOnCancellation(t *testing.T) {
	inner := NewFakeSource()
	released := make(chan struct{}, 1)
	inner.Push([]EnvPair{
		{Key: "DEVPATH", Value: "/devices/pci0000/sda"},
		{Key: "ACTION", Value: "add"},
	}, func() { released <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	src := &cancelAfterRecvSource{FakeSource: inner}
	src.cancel = cancel

	q := newQueue()
	l := newListener(src, q, ListenerConfig{}, noopMetrics{})

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("event staged before cancellation was never released")
	}

	require.NoError(t, <-done)
	assert.False(t, q.IsBusy())
}

func TestListenerRun_DropsEventsMissingRequiredFields(t *testing.T) {
	src := NewFakeSource()
	src.Push([]EnvPair{{Key: "ACTION", Value: "add"}}, nil) // missing DEVPATH

	q := newQueue()
	l := newListener(src, q, ListenerConfig{}, noopMetrics{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx)
	assert.False(t, q.IsBusy())
}
